package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogimport"

// Collector exposes Prometheus metrics for HTTP requests and import runs.
// It implements core.Recorder.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	activeRuns    prometheus.Gauge
	rowsTotal     *prometheus.CounterVec
	chunkDuration prometheus.Histogram
	chunkRetries  prometheus.Counter
}

var _ core.Recorder = (*Collector)(nil)

// NewCollector constructs a collector on a private registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "route", "status"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Finished import runs by terminal status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished import runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "active_runs",
			Help:      "Import runs currently processing.",
		}),
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Source rows by outcome.",
		}, []string{"outcome"}),
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "chunk_write_duration_seconds",
			Help:      "Time spent writing one chunk, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		chunkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "chunk_retries_total",
			Help:      "Chunk transactions retried after a transient error.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.runsTotal, c.runDuration, c.activeRuns,
		c.rowsTotal, c.chunkDuration, c.chunkRetries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := c.registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request count and latency. Routes are labelled
// by their chi pattern so path parameters do not explode cardinality.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(rw.status)

		c.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// RunStarted implements core.Recorder.
func (c *Collector) RunStarted() {
	c.activeRuns.Inc()
}

// RunFinished implements core.Recorder.
func (c *Collector) RunFinished(status core.RunStatus, elapsed time.Duration) {
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(string(status)).Inc()
	c.runDuration.Observe(elapsed.Seconds())
}

// RowsObserved implements core.Recorder.
func (c *Collector) RowsObserved(outcome string, n int) {
	c.rowsTotal.WithLabelValues(outcome).Add(float64(n))
}

// ChunkWritten implements core.Recorder.
func (c *Collector) ChunkWritten(elapsed time.Duration, attempts int) {
	c.chunkDuration.Observe(elapsed.Seconds())
	if attempts > 1 {
		c.chunkRetries.Add(float64(attempts - 1))
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
