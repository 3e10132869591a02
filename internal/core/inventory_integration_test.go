package core_test

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"inventory-tracker/internal/core"
	"inventory-tracker/internal/db"
	"inventory-tracker/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) (*pgxpool.Pool, context.Context) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database; every run truncates the inventory tables.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.Migrate(ctx, pool, migrations.FS, zap.NewNop()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE scan_history, documents, audit_log, alert_settings, inventory RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to reset test database: %v", err)
	}
	return pool, ctx
}

func int64Ptr(v int64) *int64 { return &v }

func datePtr(t time.Time) *core.Date {
	d := core.DateOf(t)
	return &d
}

func TestInventory_CreateLookupAndAudit(t *testing.T) {
	pool, ctx := setupTestDB(t)
	inv := core.NewInventoryService(pool)

	rec, err := inv.Create(ctx, core.InventoryInput{
		PatientName:    "Jane Doe",
		PatientID:      42,
		DrugItemName:   "Insulin",
		LotNumber:      int64Ptr(12345),
		ExpirationDate: datePtr(time.Now().AddDate(0, 0, 20)),
		Location:       "Clinic A",
	}, "nurse1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.InventoryNumber == "" {
		t.Error("expected generated inventory number")
	}
	if !rec.PurchasePrice.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("purchase price = %s, want default 50.00", rec.PurchasePrice)
	}

	found, err := inv.LookupByBarcode(ctx, "12345", "scanner")
	if err != nil {
		t.Fatalf("LookupByBarcode failed: %v", err)
	}
	if found.ID != rec.ID {
		t.Errorf("lookup returned record %d, want %d", found.ID, rec.ID)
	}
	if _, err := inv.LookupByBarcode(ctx, "no-such-code", "scanner"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	scans, err := inv.ScanHistory(ctx, core.ScanFilter{ScannedBy: "scanner"})
	if err != nil {
		t.Fatalf("ScanHistory failed: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans recorded, got %d", len(scans))
	}

	audit := core.NewAuditService(pool)
	today := time.Now()
	entries, err := audit.List(ctx, core.AuditFilter{From: today.AddDate(0, 0, -1), To: today, RecordID: &rec.ID})
	if err != nil {
		t.Fatalf("audit List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "INSERT" || entries[0].ChangedBy != "nurse1" {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestAlerts_AcknowledgeAgainstStore(t *testing.T) {
	pool, ctx := setupTestDB(t)
	inv := core.NewInventoryService(pool)
	alerts := core.NewAlertService(core.NewAlertStore(pool), zap.NewNop())

	rec, err := inv.Create(ctx, core.InventoryInput{
		PatientName:    "John Roe",
		PatientID:      7,
		DrugItemName:   "Heparin",
		ExpirationDate: datePtr(time.Now().AddDate(0, 0, -3)),
		Location:       "Ward B",
	}, "nurse1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	active, err := alerts.EvaluateAlerts(ctx)
	if err != nil {
		t.Fatalf("EvaluateAlerts failed: %v", err)
	}
	id := core.AlertID(core.ClassExpired, rec.ID)
	if !hasAlert(active, id) {
		t.Fatalf("expected %s among %+v", id, active)
	}

	res, err := alerts.Acknowledge(ctx, []string{id, id})
	if err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if len(res.Acknowledged) != 1 {
		t.Errorf("acknowledged = %v", res.Acknowledged)
	}

	stored, err := inv.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	first, ok := stored.AcknowledgedAlerts[core.ClassExpired]
	if !ok {
		t.Fatalf("acknowledgment not stored: %+v", stored.AcknowledgedAlerts)
	}

	// A second acknowledgment keeps the original timestamp.
	if _, err := alerts.Acknowledge(ctx, []string{id}); err != nil {
		t.Fatalf("second Acknowledge failed: %v", err)
	}
	stored, err = inv.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.AcknowledgedAlerts[core.ClassExpired].Equal(first) {
		t.Errorf("timestamp changed: %v -> %v", first, stored.AcknowledgedAlerts[core.ClassExpired])
	}

	active, err = alerts.EvaluateAlerts(ctx)
	if err != nil {
		t.Fatalf("EvaluateAlerts failed: %v", err)
	}
	if hasAlert(active, id) {
		t.Errorf("acknowledged alert %s still active", id)
	}

	res, err = alerts.Acknowledge(ctx, []string{core.AlertID(core.ClassExpired, rec.ID+1000)})
	if !errors.Is(err, core.ErrPartialAcknowledgment) || len(res.Failed) != 1 {
		t.Errorf("missing record: res=%+v err=%v", res, err)
	}
}

func TestAlerts_SettingsVersions(t *testing.T) {
	pool, ctx := setupTestDB(t)
	alerts := core.NewAlertService(core.NewAlertStore(pool), zap.NewNop())

	if got := alerts.GetSettings(ctx); got != core.DefaultAlertSettings() {
		t.Errorf("empty table should yield defaults, got %+v", got)
	}

	s := core.DefaultAlertSettings()
	s.ExpiryWarningDays = 45
	if _, err := alerts.SaveSettings(ctx, s, "admin"); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	s.ExpiryWarningDays = 60
	if _, err := alerts.SaveSettings(ctx, s, "admin"); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	if got := alerts.GetSettings(ctx).ExpiryWarningDays; got != 60 {
		t.Errorf("latest warning days = %d, want 60", got)
	}
	history, err := alerts.SettingsHistory(ctx, 10)
	if err != nil {
		t.Fatalf("SettingsHistory failed: %v", err)
	}
	if len(history) != 2 || history[1].Settings.ExpiryWarningDays != 45 {
		t.Errorf("history = %+v", history)
	}
}

func TestDocuments_LongFilenameRoundTrip(t *testing.T) {
	pool, ctx := setupTestDB(t)
	docs := core.NewDocumentService(pool, t.TempDir())

	name := strings.Repeat("é", 120) + ".pdf"
	doc, err := docs.Save(ctx, core.DocumentUpload{
		Filename:   name,
		Content:    strings.NewReader("%PDF-1.4 test"),
		UploadedBy: "nurse1",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if doc.Filename != name {
		t.Errorf("filename = %q, want original name kept", doc.Filename)
	}

	got, rc, err := docs.Open(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil || string(body) != "%PDF-1.4 test" || got.SHA256 != doc.SHA256 {
		t.Errorf("round trip: body=%q sha=%s err=%v", body, got.SHA256, err)
	}
}

func hasAlert(alerts []core.Alert, id string) bool {
	for _, a := range alerts {
		if a.ID == id {
			return true
		}
	}
	return false
}
