package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"inventory-tracker/internal/core"

	"go.uber.org/zap"
)

const defaultAuditWindow = 30 * 24 * time.Hour

type appService struct {
	alerts        core.AlertService
	notifications core.NotificationService
	inventory     core.InventoryService
	documents     core.DocumentService
	audit         core.AuditService
	logger        *zap.Logger
	now           func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	alerts core.AlertService,
	notifications core.NotificationService,
	inventory core.InventoryService,
	documents core.DocumentService,
	audit core.AuditService,
	logger *zap.Logger,
) ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appService{
		alerts:        alerts,
		notifications: notifications,
		inventory:     inventory,
		documents:     documents,
		audit:         audit,
		logger:        logger.Named("app"),
		now:           time.Now,
	}
}

func (s *appService) ListAlerts(ctx context.Context, req AlertQuery) (*AlertsResult, error) {
	alerts, settings, err := s.alerts.EvaluateWithSettings(ctx)
	if err != nil {
		return nil, err
	}
	return &AlertsResult{
		Alerts:   core.FilterAlerts(alerts, req.Types, req.Severities),
		Counts:   core.CountAlerts(alerts),
		Settings: settings,
	}, nil
}

func (s *appService) AlertSummary(ctx context.Context) (*AlertSummaryResult, error) {
	alerts, err := s.alerts.EvaluateAlerts(ctx)
	if err != nil {
		return nil, err
	}
	subject, body := core.Summarize(alerts, s.now())
	return &AlertSummaryResult{Subject: subject, Body: body, Counts: core.CountAlerts(alerts)}, nil
}

func (s *appService) AcknowledgeAlerts(ctx context.Context, req AcknowledgeRequest) (*core.AckResult, error) {
	ids := make([]string, 0, len(req.AlertIDs))
	for _, id := range req.AlertIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, &core.ValidationError{Problems: []string{"alert_ids must contain at least one id"}}
	}
	res, err := s.alerts.Acknowledge(ctx, ids)
	if res != nil {
		s.logger.Info("acknowledge request",
			zap.String("user", req.User),
			zap.Strings("acknowledged", res.Acknowledged),
			zap.Int("failed", len(res.Failed)),
		)
	}
	return res, err
}

func (s *appService) GetAlertSettings(ctx context.Context) core.AlertSettings {
	return s.alerts.GetSettings(ctx)
}

func (s *appService) SaveAlertSettings(ctx context.Context, req SaveSettingsRequest) (*core.SettingsVersion, error) {
	return s.alerts.SaveSettings(ctx, req.Settings, req.UpdatedBy)
}

func (s *appService) AlertSettingsHistory(ctx context.Context, limit int) ([]core.SettingsVersion, error) {
	return s.alerts.SettingsHistory(ctx, limit)
}

func (s *appService) SendAlertNotifications(ctx context.Context) (*core.DispatchReport, error) {
	alerts, err := s.alerts.EvaluateAlerts(ctx)
	if err != nil {
		return nil, err
	}
	return s.notifications.SendSummary(ctx, alerts)
}

func (s *appService) SendTestNotification(ctx context.Context, sentBy string) (*core.DispatchReport, error) {
	return s.notifications.SendTest(ctx, sentBy)
}

func (s *appService) CreateInventory(ctx context.Context, req InventoryRequest) (*InventoryResult, error) {
	rec, err := s.inventory.Create(ctx, req.Input, req.User)
	if err != nil {
		return nil, err
	}
	s.logger.Info("inventory created", zap.Int("id", rec.ID), zap.String("inventory_number", rec.InventoryNumber), zap.String("user", req.User))
	return s.withStatus(rec), nil
}

func (s *appService) UpdateInventory(ctx context.Context, id int, req InventoryRequest) (*InventoryResult, error) {
	rec, err := s.inventory.Update(ctx, id, req.Input, req.User)
	if err != nil {
		return nil, err
	}
	return s.withStatus(rec), nil
}

func (s *appService) DeleteInventory(ctx context.Context, id int) error {
	return s.inventory.Delete(ctx, id)
}

func (s *appService) GetInventory(ctx context.Context, id int) (*InventoryResult, error) {
	rec, err := s.inventory.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withStatus(rec), nil
}

func (s *appService) ListInventory(ctx context.Context, filter core.InventoryFilter) (*InventoryListResult, error) {
	records, err := s.inventory.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.listResult(records), nil
}

func (s *appService) InventoryStats(ctx context.Context) (*core.InventoryStats, error) {
	return s.inventory.Stats(ctx)
}

func (s *appService) LookupBarcode(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, &core.ValidationError{Problems: []string{"code is required"}}
	}
	codeType := req.CodeType
	if codeType == "" {
		codeType = core.CodeInventoryNumber
	}
	result := &LookupResult{Parsed: core.ParseScannedData(code, codeType)}

	rec, err := s.inventory.LookupByBarcode(ctx, code, req.ScannedBy)
	if errors.Is(err, core.ErrRecordNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Found = true
	result.Record = s.withStatus(rec)
	return result, nil
}

func (s *appService) SearchInventory(ctx context.Context, value string, field core.SearchField) (*InventoryListResult, error) {
	if strings.TrimSpace(value) == "" {
		return &InventoryListResult{Records: []InventoryResult{}}, nil
	}
	if field == "" {
		field = core.SearchAll
	}
	records, err := s.inventory.Search(ctx, strings.TrimSpace(value), field)
	if err != nil {
		return nil, err
	}
	return s.listResult(records), nil
}

func (s *appService) RecordScanAction(ctx context.Context, inventoryID int, scannedBy, action string) error {
	return s.inventory.RecordScanAction(ctx, inventoryID, scannedBy, action)
}

func (s *appService) ScanHistory(ctx context.Context, filter core.ScanFilter) (*ScanHistoryResult, error) {
	scans, err := s.inventory.ScanHistory(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats, err := s.inventory.ScanStats(ctx)
	if err != nil {
		return nil, err
	}
	if scans == nil {
		scans = []core.ScanRecord{}
	}
	return &ScanHistoryResult{Scans: scans, Stats: *stats}, nil
}

func (s *appService) UploadDocument(ctx context.Context, upload core.DocumentUpload) (*core.Document, error) {
	if upload.InventoryID != nil {
		if _, err := s.inventory.Get(ctx, *upload.InventoryID); err != nil {
			return nil, fmt.Errorf("attach document to record %d: %w", *upload.InventoryID, err)
		}
	}
	doc, err := s.documents.Save(ctx, upload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document uploaded", zap.Int("id", doc.ID), zap.String("filename", doc.Filename), zap.Int64("size", doc.FileSize))
	return doc, nil
}

func (s *appService) ListDocuments(ctx context.Context, inventoryID *int) ([]core.Document, error) {
	docs, err := s.documents.List(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []core.Document{}
	}
	return docs, nil
}

func (s *appService) OpenDocument(ctx context.Context, id int) (*core.Document, io.ReadCloser, error) {
	return s.documents.Open(ctx, id)
}

func (s *appService) AuditLog(ctx context.Context, filter core.AuditFilter) (*AuditResult, error) {
	now := s.now()
	if filter.To.IsZero() {
		filter.To = now
	}
	if filter.From.IsZero() {
		filter.From = filter.To.Add(-defaultAuditWindow)
	}
	if filter.From.After(filter.To) {
		return nil, &core.ValidationError{Problems: []string{"from must not be after to"}}
	}
	entries, err := s.audit.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	return &AuditResult{Entries: entries, Total: len(entries)}, nil
}

func (s *appService) AuditStats(ctx context.Context, req AuditStatsRequest) (*core.AuditStats, error) {
	if req.To.IsZero() {
		req.To = s.now()
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-defaultAuditWindow)
	}
	return s.audit.Stats(ctx, req.From, req.To)
}

func (s *appService) PurgeAuditLog(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays < 1 {
		return 0, &core.ValidationError{Problems: []string{"older_than_days must be at least 1"}}
	}
	n, err := s.audit.Purge(ctx, s.now().AddDate(0, 0, -olderThanDays))
	if err != nil {
		return 0, err
	}
	s.logger.Info("audit log purged", zap.Int("older_than_days", olderThanDays), zap.Int64("deleted", n))
	return n, nil
}

func (s *appService) withStatus(rec *core.InventoryRecord) *InventoryResult {
	return &InventoryResult{Record: rec, Status: core.ExpirationStatusOf(rec.ExpirationDate, s.now())}
}

func (s *appService) listResult(records []core.InventoryRecord) *InventoryListResult {
	out := &InventoryListResult{Records: make([]InventoryResult, 0, len(records)), Total: len(records)}
	for i := range records {
		out.Records = append(out.Records, *s.withStatus(&records[i]))
	}
	return out
}
