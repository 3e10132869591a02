package core

import (
	"fmt"
	"strings"
	"time"
)

// AlertType is the user-facing category of an alert.
type AlertType string

const (
	AlertExpired      AlertType = "Expired"
	AlertExpiringSoon AlertType = "Expiring Soon"
	AlertLowStock     AlertType = "Low Stock"
	AlertOutOfStock   AlertType = "Out of Stock"
)

// Severity orders alerts for display: Critical > Warning > Info.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
)

// Alert is a derived signal that an inventory condition currently holds.
// Alerts are recomputed on every evaluation and never stored.
type Alert struct {
	ID              string    `json:"id"`
	Type            AlertType `json:"alert_type"`
	Severity        Severity  `json:"severity"`
	RecordID        *int      `json:"record_id"` // nil for stock alerts
	Message         string    `json:"message"`
	DaysUntilExpiry *int      `json:"days_until_expiry,omitempty"` // negative once expired
	StockCount      *int      `json:"stock_count,omitempty"`
	ItemName        string    `json:"item_name"`
	PatientName     string    `json:"patient_name"`
	Location        string    `json:"location"`
	InventoryNumber string    `json:"inventory_number"`
	ExpiryDate      *Date     `json:"expiry_date,omitempty"`
}

// DaysSinceExpiry is the positive day count for Expired alerts and zero otherwise.
func (a Alert) DaysSinceExpiry() int {
	if a.Type != AlertExpired || a.DaysUntilExpiry == nil {
		return 0
	}
	return -*a.DaysUntilExpiry
}

// IsStock reports whether the alert spans a (drug, location) group rather than one record.
func (a Alert) IsStock() bool {
	return a.Type == AlertLowStock || a.Type == AlertOutOfStock
}

// NotificationFrequency is advisory; nothing schedules notifications from it.
type NotificationFrequency string

const (
	FrequencyImmediate NotificationFrequency = "Immediate"
	FrequencyDaily     NotificationFrequency = "Daily"
	FrequencyWeekly    NotificationFrequency = "Weekly"
)

// AlertSettings configures thresholds and notification targets.
// Stored as a JSON blob in alert_settings; every save appends a new row.
type AlertSettings struct {
	ExpiryWarningDays        int                   `json:"expiry_warning_days" validate:"min=1,max=365"`
	ExpiryCriticalDays       int                   `json:"expiry_critical_days" validate:"min=1,max=30,ltefield=ExpiryWarningDays"`
	LowStockThreshold        int                   `json:"low_stock_threshold" validate:"min=1,max=100"`
	EnableStockAlerts        bool                  `json:"enable_stock_alerts"`
	EnableEmailNotifications bool                  `json:"enable_email_notifications"`
	NotificationRecipients   string                `json:"notification_recipients" validate:"required_if=EnableEmailNotifications true"`
	NotificationFrequency    NotificationFrequency `json:"notification_frequency" validate:"oneof=Immediate Daily Weekly"`
}

// DefaultAlertSettings is used when no settings row exists or the store cannot be read.
func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		ExpiryWarningDays:        30,
		ExpiryCriticalDays:       7,
		LowStockThreshold:        5,
		EnableStockAlerts:        true,
		EnableEmailNotifications: false,
		NotificationRecipients:   "",
		NotificationFrequency:    FrequencyDaily,
	}
}

// Recipients splits NotificationRecipients on commas, trimming blanks.
func (s AlertSettings) Recipients() []string {
	var out []string
	for _, r := range strings.Split(s.NotificationRecipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks thresholds and recipients. Critical days above warning days is
// rejected here rather than silently reordered.
func (s AlertSettings) Validate() error {
	err := validateStruct(s)
	var problems []string
	if err != nil {
		verr, ok := err.(*ValidationError)
		if !ok {
			return err
		}
		problems = verr.Problems
	}
	for _, r := range s.Recipients() {
		if validate.Var(r, "email") != nil {
			problems = append(problems, fmt.Sprintf("notification_recipients: %q is not a valid email address", r))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// SettingsVersion is one row of the append-only settings log.
type SettingsVersion struct {
	ID        int           `json:"id"`
	Settings  AlertSettings `json:"settings"`
	UpdatedBy string        `json:"updated_by"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// AckResult reports what Acknowledge did with each id.
type AckResult struct {
	Acknowledged []string    `json:"acknowledged"`
	Skipped      []string    `json:"skipped"` // stock ids: no per-record acknowledgment exists
	Failed       []AckFailed `json:"failed"`
}

// AckFailed is an id that could not be acknowledged.
type AckFailed struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	err    error
}

// Err returns the underlying error for the failure.
func (f AckFailed) Err() error { return f.err }

// AlertCounts summarizes a set of alerts for the dashboard.
type AlertCounts struct {
	Total    int               `json:"total"`
	Critical int               `json:"critical"`
	Warning  int               `json:"warning"`
	Info     int               `json:"info"`
	Expiry   int               `json:"expiry"`
	Stock    int               `json:"stock"`
	ByType   map[AlertType]int `json:"by_type"`
}
