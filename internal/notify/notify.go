package notify

import (
	"fmt"

	"inventory-tracker/internal/core"

	"go.uber.org/zap"
)

// Transports accepted by New.
const (
	TransportSMTP  = "smtp"
	TransportKafka = "kafka"
	TransportLog   = "log"
)

// New builds the dispatcher named by transport. The returned close func releases
// transport resources and is never nil.
func New(transport string, smtpCfg SMTPConfig, kafkaCfg KafkaConfig, logger *zap.Logger) (core.Dispatcher, func() error, error) {
	noop := func() error { return nil }
	switch transport {
	case TransportSMTP:
		return NewSMTPDispatcher(smtpCfg), noop, nil
	case TransportKafka:
		d, err := NewKafkaDispatcher(kafkaCfg)
		if err != nil {
			return nil, noop, err
		}
		return d, d.Close, nil
	case TransportLog, "":
		return NewLogDispatcher(logger), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown notification transport %q", transport)
	}
}
