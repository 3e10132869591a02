package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "inventory-tracker/internal/adapters/web"
	"inventory-tracker/internal/app"
	"inventory-tracker/internal/config"
	"inventory-tracker/internal/core"
	"inventory-tracker/internal/db"
	"inventory-tracker/internal/logging"
	"inventory-tracker/internal/notify"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Encoding:   cfg.Log.Encoding,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	dispatcher, closeDispatcher, err := notify.New(cfg.Notify.Transport,
		notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		},
		notify.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic},
		logger,
	)
	if err != nil {
		logger.Fatal("notification transport", zap.Error(err))
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

	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("server starting",
		zap.String("addr", srv.Addr),
		zap.String("notify_transport", cfg.Notify.Transport),
		zap.String("upload_dir", cfg.Server.UploadDir),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
	logger.Info("server stopped")
}
