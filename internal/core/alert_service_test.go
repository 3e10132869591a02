package core_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"inventory-tracker/internal/core"
)

// memAlertStore is an in-memory AlertStore with the same merge semantics as the SQL store.
type memAlertStore struct {
	mu        sync.Mutex
	records   map[int]*core.InventoryRecord
	settings  []core.SettingsVersion
	listErr   error
	latestErr error
	insertErr error
	mergeErr  map[int]error
}

func newMemAlertStore(records ...core.InventoryRecord) *memAlertStore {
	s := &memAlertStore{records: make(map[int]*core.InventoryRecord), mergeErr: make(map[int]error)}
	for i := range records {
		r := records[i]
		s.records[r.ID] = &r
	}
	return s
}

func (s *memAlertStore) ListAlertCandidates(context.Context) ([]core.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []core.InventoryRecord
	for _, r := range s.records {
		if r.ExpirationDate != nil {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memAlertStore) MergeAcknowledgment(_ context.Context, recordID int, class core.AlertClass, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mergeErr[recordID]; err != nil {
		return err
	}
	r, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %d: %w", recordID, core.ErrRecordNotFound)
	}
	r.AcknowledgedAlerts = r.AcknowledgedAlerts.Merge(core.Acknowledgments{class: at})
	return nil
}

func (s *memAlertStore) LatestSettings(context.Context) (*core.SettingsVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	if len(s.settings) == 0 {
		return nil, nil
	}
	v := s.settings[len(s.settings)-1]
	return &v, nil
}

func (s *memAlertStore) InsertSettings(_ context.Context, settings core.AlertSettings, updatedBy string) (*core.SettingsVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	v := core.SettingsVersion{ID: len(s.settings) + 1, Settings: settings, UpdatedBy: updatedBy, UpdatedAt: time.Now()}
	s.settings = append(s.settings, v)
	return &v, nil
}

func (s *memAlertStore) ListSettings(_ context.Context, limit int) ([]core.SettingsVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.SettingsVersion
	for i := len(s.settings) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.settings[i])
	}
	return out, nil
}

func (s *memAlertStore) acks(id int) core.Acknowledgments {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].AcknowledgedAlerts
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestAlertService_EvaluateAndAcknowledge(t *testing.T) {
	store := newMemAlertStore(record(42, "Insulin", "Clinic", day(2024, 6, 20)))
	svc := core.NewAlertServiceWithClock(store, nil, fixedClock(june1))
	ctx := context.Background()

	alerts, err := svc.EvaluateAlerts(ctx)
	if err != nil {
		t.Fatalf("EvaluateAlerts: %v", err)
	}
	if _, ok := alertByID(alerts, "expiring_warning_42"); !ok {
		t.Fatalf("expected expiring_warning_42 in %+v", alerts)
	}

	res, err := svc.Acknowledge(ctx, []string{"expiring_warning_42"})
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !reflect.DeepEqual(res.Acknowledged, []string{"expiring_warning_42"}) {
		t.Errorf("acknowledged = %v", res.Acknowledged)
	}

	alerts, err = svc.EvaluateAlerts(ctx)
	if err != nil {
		t.Fatalf("EvaluateAlerts: %v", err)
	}
	if _, ok := alertByID(alerts, "expiring_warning_42"); ok {
		t.Errorf("acknowledged alert reappeared")
	}

	later := core.NewAlertServiceWithClock(store, nil, fixedClock(time.Date(2024, 6, 16, 9, 0, 0, 0, time.Local)))
	alerts, err = later.EvaluateAlerts(ctx)
	if err != nil {
		t.Fatalf("EvaluateAlerts: %v", err)
	}
	if _, ok := alertByID(alerts, "expiring_critical_42"); !ok {
		t.Errorf("moving into the critical window must raise a new alert, got %+v", alerts)
	}
}

func TestAlertService_AcknowledgeIsIdempotentAndMonotonic(t *testing.T) {
	store := newMemAlertStore(record(7, "Heparin", "Ward", day(2024, 5, 1)))
	first := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := core.NewAlertServiceWithClock(store, nil, fixedClock(first)).Acknowledge(ctx, []string{"expired_7"})
	if err != nil {
		t.Fatalf("first ack: %v", err)
	}
	once := store.acks(7)

	_, err = core.NewAlertServiceWithClock(store, nil, fixedClock(first.Add(time.Hour))).Acknowledge(ctx, []string{"expired_7"})
	if err != nil {
		t.Fatalf("second ack: %v", err)
	}
	twice := store.acks(7)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second acknowledgment changed state: %v -> %v", once, twice)
	}

	_, err = core.NewAlertServiceWithClock(store, nil, fixedClock(first)).Acknowledge(ctx, []string{"expiring_critical_7"})
	if err != nil {
		t.Fatalf("third ack: %v", err)
	}
	after := store.acks(7)
	for k := range twice {
		if !after.Has(k) {
			t.Errorf("key %s was removed", k)
		}
	}
	if len(after) != 2 {
		t.Errorf("expected two keys, got %v", after)
	}
}

func TestAlertService_AcknowledgePartialFailure(t *testing.T) {
	store := newMemAlertStore(
		record(1, "A", "L", day(2024, 5, 1)),
		record(2, "A", "L", day(2024, 5, 1)),
	)
	store.mergeErr[2] = errors.New("connection reset")
	svc := core.NewAlertServiceWithClock(store, nil, fixedClock(june1))

	res, err := svc.Acknowledge(context.Background(), []string{
		"expired_1", "expired_1", "stock_A_L", "garbage", "expired_2", "expired_99",
	})
	if !errors.Is(err, core.ErrPartialAcknowledgment) {
		t.Fatalf("expected ErrPartialAcknowledgment, got %v", err)
	}
	if !reflect.DeepEqual(res.Acknowledged, []string{"expired_1"}) {
		t.Errorf("acknowledged = %v", res.Acknowledged)
	}
	if !reflect.DeepEqual(res.Skipped, []string{"stock_A_L"}) {
		t.Errorf("skipped = %v", res.Skipped)
	}
	reasons := map[string]string{}
	for _, f := range res.Failed {
		reasons[f.ID] = f.Reason
	}
	want := map[string]string{
		"garbage":    "malformed alert id",
		"expired_2":  "store write failed",
		"expired_99": "record not found",
	}
	if !reflect.DeepEqual(reasons, want) {
		t.Errorf("failures = %v, want %v", reasons, want)
	}
	for _, f := range res.Failed {
		if f.ID == "garbage" && !errors.Is(f.Err(), core.ErrMalformedAcknowledgmentID) {
			t.Errorf("malformed failure should wrap the sentinel, got %v", f.Err())
		}
	}
	if !store.acks(1).Has(core.ClassExpired) {
		t.Errorf("applied acknowledgment must not be rolled back")
	}
}

func TestAlertService_StoreUnavailable(t *testing.T) {
	store := newMemAlertStore()
	store.listErr = errors.New("dial tcp: connection refused")
	svc := core.NewAlertServiceWithClock(store, nil, fixedClock(june1))

	alerts, err := svc.EvaluateAlerts(context.Background())
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if alerts != nil {
		t.Errorf("expected nil alerts on failure, got %+v", alerts)
	}

	healthy := core.NewAlertServiceWithClock(newMemAlertStore(), nil, fixedClock(june1))
	alerts, err = healthy.EvaluateAlerts(context.Background())
	if err != nil || len(alerts) != 0 {
		t.Errorf("healthy empty store: got %v, %v", alerts, err)
	}
}

func TestAlertService_SettingsFallbackAndVersioning(t *testing.T) {
	store := newMemAlertStore()
	svc := core.NewAlertServiceWithClock(store, nil, fixedClock(june1))
	ctx := context.Background()

	if got := svc.GetSettings(ctx); got != core.DefaultAlertSettings() {
		t.Errorf("empty store should yield defaults, got %+v", got)
	}

	custom := core.DefaultAlertSettings()
	custom.ExpiryWarningDays = 60
	v1, err := svc.SaveSettings(ctx, custom, "admin")
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	custom.LowStockThreshold = 10
	v2, err := svc.SaveSettings(ctx, custom, "admin2")
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if v2.ID <= v1.ID {
		t.Errorf("versions should be appended: %d then %d", v1.ID, v2.ID)
	}
	if got := svc.GetSettings(ctx); got.LowStockThreshold != 10 || got.ExpiryWarningDays != 60 {
		t.Errorf("latest settings not returned: %+v", got)
	}
	history, err := svc.SettingsHistory(ctx, 10)
	if err != nil || len(history) != 2 || history[0].UpdatedBy != "admin2" {
		t.Errorf("history = %+v, %v", history, err)
	}

	store.latestErr = errors.New("timeout")
	if got := svc.GetSettings(ctx); got != core.DefaultAlertSettings() {
		t.Errorf("read failure should degrade to defaults, got %+v", got)
	}
}

func TestAlertService_UnreadableSettingsEvaluateWithDefaults(t *testing.T) {
	store := newMemAlertStore(
		record(1, "Insulin", "Clinic", day(2024, 6, 21)), // 20 days out: warning under defaults
		record(2, "Heparin", "Ward", day(2024, 7, 16)),   // 45 days out: warning only under the saved 60
	)
	svc := core.NewAlertServiceWithClock(store, nil, fixedClock(june1))
	ctx := context.Background()

	custom := core.DefaultAlertSettings()
	custom.ExpiryWarningDays = 60
	if _, err := svc.SaveSettings(ctx, custom, "admin"); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	alerts, used, err := svc.EvaluateWithSettings(ctx)
	if err != nil {
		t.Fatalf("EvaluateWithSettings: %v", err)
	}
	if used.ExpiryWarningDays != 60 {
		t.Errorf("settings used = %+v, want the saved version", used)
	}
	if _, ok := alertByID(alerts, "expiring_warning_2"); !ok {
		t.Errorf("saved 60-day window should flag record 2, got %+v", alerts)
	}

	store.latestErr = errors.New("decode settings 1: unexpected end of JSON input")
	alerts, used, err = svc.EvaluateWithSettings(ctx)
	if err != nil {
		t.Fatalf("unreadable settings must not fail evaluation: %v", err)
	}
	if used != core.DefaultAlertSettings() {
		t.Errorf("settings used = %+v, want defaults", used)
	}
	if _, ok := alertByID(alerts, "expiring_warning_1"); !ok {
		t.Errorf("default 30-day window should flag record 1, got %+v", alerts)
	}
	if _, ok := alertByID(alerts, "expiring_warning_2"); ok {
		t.Errorf("record 2 is outside the default window, got %+v", alerts)
	}
}

func TestAlertService_SaveSettingsErrors(t *testing.T) {
	store := newMemAlertStore()
	svc := core.NewAlertServiceWithClock(store, nil, fixedClock(june1))
	ctx := context.Background()

	bad := core.DefaultAlertSettings()
	bad.ExpiryCriticalDays = 31
	_, err := svc.SaveSettings(ctx, bad, "admin")
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.settings) != 0 {
		t.Errorf("invalid settings must not be written")
	}

	store.insertErr = errors.New("disk full")
	_, err = svc.SaveSettings(ctx, core.DefaultAlertSettings(), "admin")
	if !errors.Is(err, core.ErrSettingsWrite) {
		t.Fatalf("expected ErrSettingsWrite, got %v", err)
	}
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  map[string]string
	fails map[string]error
}

func (d *recordingDispatcher) Send(_ context.Context, recipient, subject, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fails[recipient]; err != nil {
		return err
	}
	if d.sent == nil {
		d.sent = make(map[string]string)
	}
	d.sent[recipient] = subject
	return nil
}

func TestNotificationService_SendSummary(t *testing.T) {
	store := newMemAlertStore()
	alertSvc := core.NewAlertServiceWithClock(store, nil, fixedClock(june1))
	ctx := context.Background()

	disp := &recordingDispatcher{fails: map[string]error{"b@clinic.test": errors.New("mailbox full")}}
	notifier := core.NewNotificationService(alertSvc, disp, "test", nil)

	if _, err := notifier.SendSummary(ctx, nil); !errors.Is(err, core.ErrNotificationsDisabled) {
		t.Fatalf("expected ErrNotificationsDisabled with default settings, got %v", err)
	}

	settings := core.DefaultAlertSettings()
	settings.EnableEmailNotifications = true
	settings.NotificationRecipients = "a@clinic.test, b@clinic.test, c@clinic.test"
	if _, err := alertSvc.SaveSettings(ctx, settings, "admin"); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	alerts := []core.Alert{{Type: core.AlertExpired, Severity: core.SeverityCritical}}
	report, err := notifier.SendSummary(ctx, alerts)
	var derr *core.DispatchError
	if !errors.As(err, &derr) {
		t.Fatalf("expected *DispatchError, got %v", err)
	}
	if len(derr.Failures) != 1 || derr.Failures[0].Recipient != "b@clinic.test" {
		t.Errorf("failures = %+v", derr.Failures)
	}
	if !reflect.DeepEqual(report.Sent, []string{"a@clinic.test", "c@clinic.test"}) {
		t.Errorf("sending must continue past failures, sent = %v", report.Sent)
	}
	if report.AlertsIn != 1 || report.Subject != "Inventory Alert Summary - 1 Active Alerts" {
		t.Errorf("report = %+v", report)
	}

	delete(disp.fails, "b@clinic.test")
	report, err = notifier.SendTest(ctx, "jdoe")
	if err != nil {
		t.Fatalf("SendTest: %v", err)
	}
	if len(report.Sent) != 3 || disp.sent["b@clinic.test"] != "Inventory Alert System - Test Notification" {
		t.Errorf("test notification report = %+v", report)
	}
}
