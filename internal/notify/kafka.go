package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig names the brokers and topic that email tasks are published to.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// EmailTask is the message a downstream notification service consumes.
type EmailTask struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes one EmailTask per recipient, keyed by recipient.
type KafkaDispatcher struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaDispatcher(cfg KafkaConfig) (*KafkaDispatcher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka dispatcher needs brokers and a topic")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaDispatcher{writer: w, now: time.Now}, nil
}

func (d *KafkaDispatcher) Send(ctx context.Context, recipient, subject, body string) error {
	task := EmailTask{
		ID:        uuid.NewString(),
		Channel:   "email",
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		CreatedAt: d.now().UTC(),
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode email task: %w", err)
	}
	if err := d.writer.WriteMessages(ctx, kafka.Message{Key: []byte(recipient), Value: payload}); err != nil {
		return fmt.Errorf("publish email task for %s: %w", recipient, err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
