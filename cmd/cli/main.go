package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"

	"inventory-tracker/internal/adapters/cli"
	"inventory-tracker/internal/app"
	"inventory-tracker/internal/config"
	"inventory-tracker/internal/core"
	"inventory-tracker/internal/db"
	"inventory-tracker/internal/logging"
	"inventory-tracker/internal/notify"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup finishes before main exits.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, cli.Usage)
		return 2
	}

	cfg, err := config.LoadForCLI()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	// CLI output goes to stdout; logs stay quiet unless something fails.
	logger, err := logging.New(logging.Options{Level: "warn", Encoding: "console", File: cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB, MaxBackups: cfg.Log.MaxBackups, MaxAgeDays: cfg.Log.MaxAgeDays})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		logger.Error("database", zap.Error(err))
		return 1
	}
	defer pool.Close()

	dispatcher, closeDispatcher, err := notify.New(cfg.Notify.Transport,
		notify.SMTPConfig{Host: cfg.SMTP.Host, Port: cfg.SMTP.Port, Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password, From: cfg.SMTP.From},
		notify.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic},
		logger,
	)
	if err != nil {
		logger.Error("notification transport", zap.Error(err))
		return 1
	}
	defer func() {
		if err := closeDispatcher(); err != nil {
			logger.Warn("close notification transport", zap.Error(err))
		}
	}()

	alertService := core.NewAlertService(core.NewAlertStore(pool), logger)
	svc := app.NewAppService(
		alertService,
		core.NewNotificationService(alertService, dispatcher, cfg.Notify.Transport, logger),
		core.NewInventoryService(pool),
		core.NewDocumentService(pool, cfg.Server.UploadDir),
		core.NewAuditService(pool),
		logger,
	)

	if err := cli.Run(ctx, svc, currentUser(), args, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, cli.ErrUsage):
		return 2
	default:
		return 1
	}
}

func currentUser() string {
	if name := os.Getenv("INVENTORY_USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "cli"
}
