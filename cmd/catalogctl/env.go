package main

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/db"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// loadConfig reads .env and the environment. CLI output goes through pterm,
// so process logs are kept to warnings unless LOG_LEVEL says otherwise.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if level == "info" {
		level = "warn"
	}
	logging.Setup(level, cfg.Logging.Format)
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	slog.Debug("database pool ready")
	return pool, nil
}
