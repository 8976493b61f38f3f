// Package web provides the HTTP API for catalog imports.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/metrics"
	mw "github.com/JonMunkholm/catalogimport/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Importer accepts uploaded sources and runs them.
type Importer interface {
	SaveUpload(name string, r io.Reader) (string, error)
	Submit(ctx context.Context, path, sourceName string) (string, error)
	ProcessSync(ctx context.Context, path, sourceName string) (core.RunResult, error)
	Limiter() *core.ImportLimiter
}

// RunReader reads the run ledger.
type RunReader interface {
	Get(ctx context.Context, id string) (*core.ImportRun, error)
	List(ctx context.Context, filter core.RunFilter, page, pageSize int) (*core.Page[core.ImportRun], error)
}

// LogReader reads the persisted event log.
type LogReader interface {
	List(ctx context.Context, filter core.LogFilter, page, pageSize int) (*core.Page[core.LogEntry], error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the server's collaborators. Events, DB and Metrics are optional.
type Deps struct {
	Importer Importer
	Runs     RunReader
	Logs     LogReader
	Events   core.EventSink
	DB       Pinger
	Metrics  *metrics.Collector
}

// Server is the HTTP server for the import API.
type Server struct {
	cfg     *config.Config
	deps    Deps
	router  *chi.Mux
	server  *http.Server
	limiter *ipLimiter
}

// NewServer creates a Server with its middleware and routes configured.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.InstrumentHandler)
	}

	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}).Handler)

	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.limiter = newIPLimiter(s.cfg.Rate.RequestsPerMinute)
		s.router.Use(s.limiter.middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(newIPLimiter(s.cfg.Rate.UploadLimit).middleware)
			}
			r.Post("/upload", s.handleUpload)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			r.Get("/analytics", s.handleListRuns)
			r.Get("/analytics/{id}", s.handleGetRun)
			r.Get("/logs", s.handleListLogs)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports database reachability and worker pool usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status   string              `json:"status"`
		Database string              `json:"database"`
		Imports  *core.LimiterStatus `json:"imports,omitempty"`
		Time     time.Time           `json:"time"`
	}{Status: "ok", Database: "ok", Time: time.Now().UTC()}

	status := http.StatusOK
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			slog.Warn("health check: database unreachable", "error", err)
			resp.Status, resp.Database = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	if s.deps.Importer != nil {
		st := s.deps.Importer.Limiter().Status()
		resp.Imports = &st
	}

	writeJSONStatus(w, status, resp)
}

// writeJSON encodes v as a 200 response.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v with the given status. Encoding errors are
// logged since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
