package app

import (
	"context"
	"io"

	"inventory-tracker/internal/core"
)

// ApplicationService is the single interface the CLI and web adapters call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// ListAlerts evaluates every alert and applies the optional type and severity filters.
	// Counts always describe the unfiltered set.
	ListAlerts(ctx context.Context, req AlertQuery) (*AlertsResult, error)

	// AlertSummary renders the notification subject and body for the current alerts.
	AlertSummary(ctx context.Context) (*AlertSummaryResult, error)

	// AcknowledgeAlerts marks the given alert ids as handled. A non-nil result is returned
	// alongside core.ErrPartialAcknowledgment so callers can report per-id outcomes.
	AcknowledgeAlerts(ctx context.Context, req AcknowledgeRequest) (*core.AckResult, error)

	// GetAlertSettings returns the effective settings (defaults if none were ever saved).
	GetAlertSettings(ctx context.Context) core.AlertSettings

	// SaveAlertSettings validates and appends a new settings version.
	SaveAlertSettings(ctx context.Context, req SaveSettingsRequest) (*core.SettingsVersion, error)

	// AlertSettingsHistory returns the most recent settings versions, newest first.
	AlertSettingsHistory(ctx context.Context, limit int) ([]core.SettingsVersion, error)

	// SendAlertNotifications evaluates alerts and mails the summary to every recipient.
	SendAlertNotifications(ctx context.Context) (*core.DispatchReport, error)

	// SendTestNotification sends the fixed test message to every recipient.
	SendTestNotification(ctx context.Context, sentBy string) (*core.DispatchReport, error)

	// CreateInventory inserts a record and returns it with its generated fields.
	CreateInventory(ctx context.Context, req InventoryRequest) (*InventoryResult, error)

	// UpdateInventory replaces the writable fields of record id.
	UpdateInventory(ctx context.Context, id int, req InventoryRequest) (*InventoryResult, error)

	// DeleteInventory removes record id. Attached documents are detached, not deleted.
	DeleteInventory(ctx context.Context, id int) error

	// GetInventory returns one record with its expiration status.
	GetInventory(ctx context.Context, id int) (*InventoryResult, error)

	// ListInventory returns records matching the filter, newest first.
	ListInventory(ctx context.Context, filter core.InventoryFilter) (*InventoryListResult, error)

	// InventoryStats returns dashboard counts for the inventory table.
	InventoryStats(ctx context.Context) (*core.InventoryStats, error)

	// LookupBarcode resolves a scanned code to a record and logs the scan.
	LookupBarcode(ctx context.Context, req LookupRequest) (*LookupResult, error)

	// SearchInventory matches value against one identifier field or all of them.
	SearchInventory(ctx context.Context, value string, field core.SearchField) (*InventoryListResult, error)

	// RecordScanAction tags the caller's latest scan of a record with the action taken.
	RecordScanAction(ctx context.Context, inventoryID int, scannedBy, action string) error

	// ScanHistory returns recent scans with overall scan counts.
	ScanHistory(ctx context.Context, filter core.ScanFilter) (*ScanHistoryResult, error)

	// UploadDocument stores a file and its metadata.
	UploadDocument(ctx context.Context, upload core.DocumentUpload) (*core.Document, error)

	// ListDocuments lists documents, optionally only those attached to inventoryID.
	ListDocuments(ctx context.Context, inventoryID *int) ([]core.Document, error)

	// OpenDocument returns a document's metadata and content. The caller closes the reader.
	OpenDocument(ctx context.Context, id int) (*core.Document, io.ReadCloser, error)

	// AuditLog returns audit entries with change summaries.
	AuditLog(ctx context.Context, filter core.AuditFilter) (*AuditResult, error)

	// AuditStats counts audit entries in a date window.
	AuditStats(ctx context.Context, req AuditStatsRequest) (*core.AuditStats, error)

	// PurgeAuditLog deletes entries older than the retention window.
	PurgeAuditLog(ctx context.Context, olderThanDays int) (int64, error)
}
