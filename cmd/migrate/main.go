package main

import (
	"context"
	"time"

	"inventory-tracker/internal/config"
	"inventory-tracker/internal/db"
	"inventory-tracker/internal/logging"
	"inventory-tracker/migrations"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadForCLI()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Encoding: "console"})
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := db.NewPool(connCtx, cfg.DB.URL, 2)
	cancel()
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.FS, logger)
	if err != nil {
		logger.Fatal("migrate", zap.Strings("applied", applied), zap.Error(err))
	}
	logger.Info("migrations complete", zap.Int("applied", len(applied)))
}
