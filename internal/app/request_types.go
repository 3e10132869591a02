package app

import (
	"time"

	"inventory-tracker/internal/core"
)

// AlertQuery filters ListAlerts. Empty slices mean "all".
type AlertQuery struct {
	Types      []core.AlertType
	Severities []core.Severity
}

// AcknowledgeRequest is the input to AcknowledgeAlerts.
type AcknowledgeRequest struct {
	AlertIDs []string `json:"alert_ids"`
	User     string   `json:"-"`
}

// SaveSettingsRequest is the input to SaveAlertSettings.
type SaveSettingsRequest struct {
	Settings  core.AlertSettings
	UpdatedBy string
}

// InventoryRequest carries a create or update of one inventory record.
type InventoryRequest struct {
	Input core.InventoryInput
	User  string
}

// LookupRequest is one scanned code to resolve.
type LookupRequest struct {
	Code      string
	CodeType  core.CodeType
	ScannedBy string
}

// AuditStatsRequest bounds AuditStats. Zero times default to the last 30 days.
type AuditStatsRequest struct {
	From time.Time
	To   time.Time
}
