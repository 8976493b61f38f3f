package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/db"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/JonMunkholm/catalogimport/internal/metrics"
	"github.com/JonMunkholm/catalogimport/internal/web"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(cfg.Database.URL, db.Up); err != nil {
			return err
		}
	}

	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	collector, err := metrics.NewCollector()
	if err != nil {
		return err
	}

	ledger := core.NewLedgerStore(pool)
	events := core.NewEventLog(pool, slog.Default())
	importer := core.NewImporter(core.NewPostgresStore(pool), ledger, events, collector, core.ImporterConfigFrom(cfg.Import))
	service := core.NewService(importer, core.ServiceConfigFrom(cfg.Import))

	server := web.NewServer(cfg, web.Deps{
		Importer: service,
		Runs:     ledger,
		Logs:     events,
		Events:   events,
		DB:       pool,
		Metrics:  collector,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		core.RunStaleReaper(gctx, ledger, core.ReaperConfig{
			StaleAfter:    cfg.Maintenance.StaleAfter,
			CheckInterval: cfg.Maintenance.CheckInterval,
		})
		return nil
	})

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}

		if active := service.Active(); len(active) > 0 {
			slog.Info("waiting for imports to complete", "active", len(active))
		}
		if err := service.WaitForImports(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}
		return nil
	})

	return g.Wait()
}
