package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func TestSMTPDispatcher_ComposesMessage(t *testing.T) {
	d := NewSMTPDispatcher(SMTPConfig{Host: "mail.local", Port: 2525, Username: "u", Password: "p", From: "alerts@clinic.test"})
	d.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	d.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		if from != "alerts@clinic.test" {
			t.Errorf("from = %q", from)
		}
		return nil
	}

	if err := d.Send(context.Background(), "nurse@clinic.test", "Subject\nInjected", "line1\nline2"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "mail.local:2525" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "nurse@clinic.test" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{
		"To: nurse@clinic.test\r\n",
		"Subject: Subject Injected\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
		"\r\n\r\nline1\r\nline2\r\n",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSMTPDispatcher_Errors(t *testing.T) {
	d := NewSMTPDispatcher(SMTPConfig{Host: "mail.local", Port: 25})
	d.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay down") }

	if err := d.Send(context.Background(), "not-an-address", "s", "b"); err == nil {
		t.Error("expected invalid address error")
	}
	if err := d.Send(context.Background(), "a@b.test", "s", "b"); err == nil || !strings.Contains(err.Error(), "relay down") {
		t.Errorf("expected relay error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Send(ctx, "a@b.test", "s", "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	unconfigured := NewSMTPDispatcher(SMTPConfig{})
	if err := unconfigured.Send(context.Background(), "a@b.test", "s", "b"); err == nil {
		t.Error("expected error without relay host")
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaDispatcher_PublishesTask(t *testing.T) {
	w := &fakeWriter{}
	d := &KafkaDispatcher{writer: w, now: time.Now}

	if err := d.Send(context.Background(), "a@b.test", "subj", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("got %d messages", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "a@b.test" {
		t.Errorf("key = %q", w.msgs[0].Key)
	}
	var task EmailTask
	if err := json.Unmarshal(w.msgs[0].Value, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Channel != "email" || task.Subject != "subj" || task.Body != "body" || task.ID == "" {
		t.Errorf("unexpected task %+v", task)
	}

	w.err = errors.New("broker gone")
	if err := d.Send(context.Background(), "a@b.test", "s", "b"); err == nil {
		t.Error("expected publish error")
	}
}

func TestNew_SelectsTransport(t *testing.T) {
	logger := zap.NewNop()
	cases := []struct {
		transport string
		wantErr   bool
	}{
		{TransportLog, false},
		{TransportSMTP, false},
		{TransportKafka, true}, // no brokers configured
		{"pigeon", true},
	}
	for _, tc := range cases {
		t.Run(tc.transport, func(t *testing.T) {
			d, closeFn, err := New(tc.transport, SMTPConfig{}, KafkaConfig{}, logger)
			if closeFn == nil {
				t.Fatal("close func must never be nil")
			}
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil || d == nil {
				t.Fatalf("New: %v", err)
			}
		})
	}
}
