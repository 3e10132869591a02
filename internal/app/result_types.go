package app

import "inventory-tracker/internal/core"

// AlertsResult is returned by ListAlerts.
type AlertsResult struct {
	Alerts   []core.Alert       `json:"alerts"`
	Counts   core.AlertCounts   `json:"counts"`
	Settings core.AlertSettings `json:"settings"`
}

// AlertSummaryResult is returned by AlertSummary.
type AlertSummaryResult struct {
	Subject string           `json:"subject"`
	Body    string           `json:"body"`
	Counts  core.AlertCounts `json:"counts"`
}

// InventoryResult is one record with its derived expiration status.
type InventoryResult struct {
	Record *core.InventoryRecord `json:"record"`
	Status core.ExpirationStatus `json:"expiration_status"`
}

// InventoryListResult is returned by ListInventory and SearchInventory.
type InventoryListResult struct {
	Records []InventoryResult `json:"records"`
	Total   int               `json:"total"`
}

// LookupResult is returned by LookupBarcode. Parsed holds the fields extracted from
// the scanned text; Record is nil when nothing matched.
type LookupResult struct {
	Found  bool             `json:"found"`
	Record *InventoryResult `json:"record,omitempty"`
	Parsed map[string]any   `json:"parsed"`
}

// ScanHistoryResult is returned by ScanHistory.
type ScanHistoryResult struct {
	Scans []core.ScanRecord `json:"scans"`
	Stats core.ScanStats    `json:"stats"`
}

// AuditResult is returned by AuditLog.
type AuditResult struct {
	Entries []core.AuditEntry `json:"entries"`
	Total   int               `json:"total"`
}
