package core

// scheduler.go runs background maintenance for the run ledger.
//
// A run left in processing by a crashed worker would otherwise stay there
// forever. The reaper periodically marks such runs failed so the ledger
// reflects reality and the source can be re-imported.

import (
	"context"
	"log/slog"
	"time"
)

// StaleMarker fails runs that have been processing for too long.
type StaleMarker interface {
	MarkStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ReaperConfig controls the stale run reaper.
type ReaperConfig struct {
	StaleAfter    time.Duration // Age after which a processing run is failed (default: 2h)
	CheckInterval time.Duration // How often to check (default: 10m)
}

func (c ReaperConfig) withDefaults() ReaperConfig {
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Minute
	}
	return c
}

// RunStaleReaper checks immediately and then every CheckInterval until ctx
// is cancelled.
func RunStaleReaper(ctx context.Context, ledger StaleMarker, cfg ReaperConfig) {
	cfg = cfg.withDefaults()
	slog.Info("stale run reaper started", "stale_after", cfg.StaleAfter, "interval", cfg.CheckInterval)

	reapStaleRuns(ctx, ledger, cfg.StaleAfter)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stale run reaper stopped")
			return
		case <-ticker.C:
			reapStaleRuns(ctx, ledger, cfg.StaleAfter)
		}
	}
}

func reapStaleRuns(ctx context.Context, ledger StaleMarker, olderThan time.Duration) int64 {
	start := time.Now()
	n, err := ledger.MarkStale(ctx, olderThan)
	if err != nil {
		slog.Error("stale run check failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Warn("marked stale runs as failed", "runs", n, "duration_ms", time.Since(start).Milliseconds())
	}
	return n
}
