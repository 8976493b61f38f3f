package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector_ImportMetrics(t *testing.T) {
	c, err := NewCollector()
	require.NoError(t, err)

	c.RunStarted()
	c.RunStarted()
	c.RowsObserved(string(core.Accepted), 8)
	c.RowsObserved(string(core.Rejected), 2)
	c.ChunkWritten(120*time.Millisecond, 3)
	c.RunFinished(core.StatusCompleted, 2*time.Second)

	out := scrape(t, c)

	assert.Contains(t, out, `catalogimport_import_active_runs 1`)
	assert.Contains(t, out, `catalogimport_import_runs_total{status="completed"} 1`)
	assert.Contains(t, out, `catalogimport_import_rows_total{outcome="accepted"} 8`)
	assert.Contains(t, out, `catalogimport_import_rows_total{outcome="rejected"} 2`)
	assert.Contains(t, out, `catalogimport_import_chunk_retries_total 2`)
	assert.Contains(t, out, `catalogimport_import_chunk_write_duration_seconds_count 1`)
	assert.Contains(t, out, `catalogimport_import_run_duration_seconds_count 1`)
}

func TestCollector_InstrumentHandlerUsesRoutePattern(t *testing.T) {
	c, err := NewCollector()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(c.InstrumentHandler)
	r.Get("/api/analytics/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/analytics/"+id, nil))
	}

	out := scrape(t, c)
	assert.Contains(t, out, `catalogimport_http_requests_total{method="GET",route="/api/analytics/{id}",status="404"} 2`)
	assert.False(t, strings.Contains(out, `route="/api/analytics/a"`))
}
