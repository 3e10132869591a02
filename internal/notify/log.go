package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher writes messages to the log instead of delivering them. Used in development.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.Named("notify.log")}
}

func (d *LogDispatcher) Send(_ context.Context, recipient, subject, body string) error {
	d.logger.Info("notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
