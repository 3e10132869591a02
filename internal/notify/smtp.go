// Package notify holds the transports that deliver rendered alert messages.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig addresses the mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher sends each message as a plain-text email.
type SMTPDispatcher struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPDispatcher{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

func (d *SMTPDispatcher) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.Contains(recipient, "@") {
		return fmt.Errorf("invalid email address: %s", recipient)
	}
	if d.cfg.Host == "" || d.cfg.Port == 0 {
		return fmt.Errorf("smtp relay is not configured")
	}

	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	msg := composeMessage(d.cfg.From, recipient, subject, body, d.now())
	if err := d.sendMail(addr, auth, d.cfg.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", recipient, err)
	}
	return nil
}

// composeMessage builds an RFC 5322 message with CRLF line endings.
func composeMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", "", "\n", " ").Replace(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
