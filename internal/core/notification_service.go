package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// summaryLineLimit caps the line items listed per severity in a summary.
const summaryLineLimit = 10

// Dispatcher delivers one rendered message to one recipient.
// Implementations live in internal/notify.
type Dispatcher interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// NotificationService renders alert summaries and fans them out to the configured recipients.
type NotificationService interface {
	// SendSummary mails the summary of alerts to every recipient. Returns ErrNotificationsDisabled
	// when email notifications are off or unaddressed, and *DispatchError when any recipient failed.
	SendSummary(ctx context.Context, alerts []Alert) (*DispatchReport, error)
	// SendTest sends a fixed test message naming sentBy.
	SendTest(ctx context.Context, sentBy string) (*DispatchReport, error)
}

// DispatchReport lists the outcome of one fan-out.
type DispatchReport struct {
	Subject   string   `json:"subject"`
	Sent      []string `json:"sent"`
	Failed    []string `json:"failed"`
	AlertsIn  int      `json:"alert_count"`
	Transport string   `json:"transport"`
}

type notificationService struct {
	alerts     AlertService
	dispatcher Dispatcher
	transport  string
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService wires settings lookup (through alerts) to dispatcher.
// transport names the dispatcher in reports and logs.
func NewNotificationService(alerts AlertService, dispatcher Dispatcher, transport string, logger *zap.Logger) NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &notificationService{
		alerts:     alerts,
		dispatcher: dispatcher,
		transport:  transport,
		logger:     logger.Named("notify"),
		now:        time.Now,
	}
}

func (s *notificationService) SendSummary(ctx context.Context, alerts []Alert) (*DispatchReport, error) {
	subject, body := Summarize(alerts, s.now())
	report, err := s.fanOut(ctx, subject, body)
	if report != nil {
		report.AlertsIn = len(alerts)
	}
	return report, err
}

func (s *notificationService) SendTest(ctx context.Context, sentBy string) (*DispatchReport, error) {
	subject, body := TestMessage(sentBy, s.now())
	return s.fanOut(ctx, subject, body)
}

func (s *notificationService) fanOut(ctx context.Context, subject, body string) (*DispatchReport, error) {
	settings := s.alerts.GetSettings(ctx)
	recipients := settings.Recipients()
	if !settings.EnableEmailNotifications || len(recipients) == 0 {
		return nil, ErrNotificationsDisabled
	}

	report := &DispatchReport{Subject: subject, Sent: []string{}, Failed: []string{}, Transport: s.transport}
	var failures []DispatchFailure
	for _, to := range recipients {
		if err := s.dispatcher.Send(ctx, to, subject, body); err != nil {
			s.logger.Warn("notification failed", zap.String("recipient", to), zap.Error(err))
			failures = append(failures, DispatchFailure{Recipient: to, Err: err})
			report.Failed = append(report.Failed, to)
			continue
		}
		report.Sent = append(report.Sent, to)
	}

	s.logger.Info("notification dispatched",
		zap.String("subject", subject),
		zap.String("transport", s.transport),
		zap.Int("sent", len(report.Sent)),
		zap.Int("failed", len(report.Failed)),
	)
	if len(failures) > 0 {
		return report, &DispatchError{Failures: failures}
	}
	return report, nil
}

// Summarize renders the alert summary message. It is deterministic for a given at.
func Summarize(alerts []Alert, at time.Time) (subject, body string) {
	subject = fmt.Sprintf("Inventory Alert Summary - %d Active Alerts", len(alerts))
	if len(alerts) == 0 {
		return subject, "Good news! There are currently no active inventory alerts."
	}

	critical, warning, _ := BySeverity(alerts)

	var b strings.Builder
	fmt.Fprintf(&b, "Inventory Alert Summary - %s\n\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Active Alerts: %d\n", len(alerts))
	fmt.Fprintf(&b, "- Critical: %d\n", len(critical))
	fmt.Fprintf(&b, "- Warnings: %d\n", len(warning))

	b.WriteString("\nCritical Alerts:\n")
	writeSummaryLines(&b, critical, "critical alerts")
	b.WriteString("\nWarning Alerts:\n")
	writeSummaryLines(&b, warning, "warnings")

	b.WriteString("\nPlease review the inventory system for detailed information.")
	return subject, b.String()
}

func writeSummaryLines(b *strings.Builder, alerts []Alert, noun string) {
	for i, a := range alerts {
		if i == summaryLineLimit {
			fmt.Fprintf(b, "... and %d more %s\n", len(alerts)-summaryLineLimit, noun)
			return
		}
		fmt.Fprintf(b, "- %s: %s (%s) - %s\n", a.Type, a.ItemName, a.PatientName, a.Message)
	}
}

// TestMessage renders the notification test message.
func TestMessage(sentBy string, at time.Time) (subject, body string) {
	subject = "Inventory Alert System - Test Notification"
	body = fmt.Sprintf("This is a test notification from the Inventory Alert System.\n\n"+
		"Test sent at: %s\n"+
		"Sent by: %s\n\n"+
		"If you receive this email, the alert notification system is working correctly.",
		at.Format("2006-01-02 15:04:05"), sentBy)
	return subject, body
}
