package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// resultRetention is how long a finished run's result stays available to
// Wait after the run ends.
const resultRetention = 5 * time.Minute

// ImporterConfigFrom maps application configuration onto the pipeline.
func ImporterConfigFrom(cfg config.ImportConfig) ImporterConfig {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.RetryMax
	policy.InitialBackoff = cfg.RetryInitial
	policy.MaxBackoff = cfg.RetryMaxBackoff
	return ImporterConfig{
		ChunkSize:       cfg.ChunkSize,
		DefaultCurrency: cfg.DefaultCurrency,
		Retry:           policy,
	}
}

// ServiceConfig tunes the worker pool.
type ServiceConfig struct {
	MaxConcurrent int
	QueueTimeout  time.Duration
	RunTimeout    time.Duration
	UploadDir     string
}

// ServiceConfigFrom maps application configuration onto the worker pool.
func ServiceConfigFrom(cfg config.ImportConfig) ServiceConfig {
	return ServiceConfig{
		MaxConcurrent: cfg.MaxConcurrent,
		QueueTimeout:  cfg.QueueTimeout,
		RunTimeout:    cfg.RunTimeout,
		UploadDir:     cfg.UploadDir,
	}
}

// Service dispatches import runs to a bounded pool of workers. Each run is
// processed by exactly one goroutine; distinct runs proceed in parallel.
type Service struct {
	importer *Importer
	limiter  *ImportLimiter
	cfg      ServiceConfig

	baseCtx context.Context
	stop    context.CancelFunc

	mu     sync.Mutex
	runs   map[string]*activeRun
	closed bool
}

type activeRun struct {
	Run    *ImportRun
	Result RunResult
	Done   chan struct{}
}

// NewService creates a worker pool around importer.
func NewService(importer *Importer, cfg ServiceConfig) *Service {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		importer: importer,
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.QueueTimeout),
		cfg:      cfg,
		baseCtx:  ctx,
		stop:     cancel,
		runs:     make(map[string]*activeRun),
	}
}

// Limiter exposes the concurrency limiter for health reporting.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// SaveUpload stores r under the upload directory with a unique prefix and
// returns the stored path.
func (s *Service) SaveUpload(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create upload directory")
	}

	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	path := filepath.Join(s.cfg.UploadDir, uuid.New().String()+"_"+base)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrap(err, "write upload file")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "close upload file")
	}
	return path, nil
}

// Submit starts processing path in the background and returns the run id
// immediately. It fails with ErrTooManyImports when no worker frees up
// within the queue timeout.
func (s *Service) Submit(ctx context.Context, path, sourceName string) (string, error) {
	if s.isClosed() {
		return "", ErrServiceClosed
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	run, err := s.importer.Begin(ctx, sourceName)
	if err != nil {
		s.limiter.Release()
		return "", err
	}

	ar := &activeRun{Run: run, Done: make(chan struct{})}
	s.mu.Lock()
	s.runs[run.ID] = ar
	s.mu.Unlock()

	go func() {
		defer close(ar.Done)
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import worker", "run_id", run.ID, "file", sourceName, "panic", r)
				ar.Result = RunResult{RunID: run.ID, Error: fmt.Sprintf("internal error: %v", r)}
			}
		}()

		ar.Result = s.execute(run, path)
		s.forget(run.ID, resultRetention)
	}()

	return run.ID, nil
}

// ProcessSync runs an import on the calling goroutine, still honoring the
// concurrency limit.
func (s *Service) ProcessSync(ctx context.Context, path, sourceName string) (RunResult, error) {
	if s.isClosed() {
		return RunResult{}, ErrServiceClosed
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return RunResult{}, err
	}
	defer s.limiter.Release()

	run, err := s.importer.Begin(ctx, sourceName)
	if err != nil {
		return RunResult{}, err
	}
	return s.execute(run, path), nil
}

// execute runs detached from the submitting request so a closed client
// connection does not abort the import. Shutdown and the run timeout still
// apply.
func (s *Service) execute(run *ImportRun, path string) RunResult {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.RunTimeout)
	defer cancel()
	return s.importer.Execute(ctx, run, path)
}

// Wait blocks until the background run finishes and returns its result.
func (s *Service) Wait(ctx context.Context, runID string) (RunResult, error) {
	s.mu.Lock()
	ar, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return RunResult{}, errors.Wrapf(ErrRunNotFound, "run %s", runID)
	}

	select {
	case <-ar.Done:
		return ar.Result, nil
	case <-ctx.Done():
		return RunResult{}, ctx.Err()
	}
}

// Active returns the ids of runs currently being processed.
func (s *Service) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.runs))
	for id, ar := range s.runs {
		select {
		case <-ar.Done:
		default:
			ids = append(ids, id)
		}
	}
	return ids
}

// WaitForImports stops accepting new runs and waits for running ones to
// finish. When ctx expires first the remaining runs are cancelled, which
// marks them failed in the ledger.
func (s *Service) WaitForImports(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.limiter.WaitForDrain(ctx)
	if err != nil {
		slog.Warn("cancelling unfinished imports", "active", s.limiter.ActiveCount())
		s.stop()
		return err
	}
	s.stop()
	return nil
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Service) forget(runID string, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}
