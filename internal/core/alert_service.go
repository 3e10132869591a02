package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AlertService evaluates alert conditions over the inventory and records acknowledgments.
type AlertService interface {
	// EvaluateAlerts returns all active, unacknowledged alerts as of today.
	// An empty result means no conditions hold; a store failure is returned as ErrStoreUnavailable.
	EvaluateAlerts(ctx context.Context) ([]Alert, error)
	// EvaluateWithSettings is EvaluateAlerts that also returns the settings the alerts were
	// computed with, read once.
	EvaluateWithSettings(ctx context.Context) ([]Alert, AlertSettings, error)
	// Acknowledge records acknowledgment for each id. Per-record ids are processed
	// independently; stock ids are reported as skipped. Returns ErrPartialAcknowledgment
	// alongside the result when any id failed.
	Acknowledge(ctx context.Context, ids []string) (*AckResult, error)
	// GetSettings returns the most recent settings, or defaults when none can be read.
	GetSettings(ctx context.Context) AlertSettings
	// SaveSettings validates and appends a new settings version.
	SaveSettings(ctx context.Context, settings AlertSettings, updatedBy string) (*SettingsVersion, error)
	SettingsHistory(ctx context.Context, limit int) ([]SettingsVersion, error)
}

// AlertStore is the persistence the alert engine needs.
type AlertStore interface {
	// ListAlertCandidates returns every inventory record that has an expiration date.
	ListAlertCandidates(ctx context.Context) ([]InventoryRecord, error)
	// MergeAcknowledgment adds class to the record's acknowledgments without touching
	// keys already present. Returns ErrRecordNotFound when no row has recordID.
	MergeAcknowledgment(ctx context.Context, recordID int, class AlertClass, at time.Time) error
	// LatestSettings returns the newest settings row, or nil when the table is empty.
	LatestSettings(ctx context.Context) (*SettingsVersion, error)
	InsertSettings(ctx context.Context, settings AlertSettings, updatedBy string) (*SettingsVersion, error)
	ListSettings(ctx context.Context, limit int) ([]SettingsVersion, error)
}

type alertService struct {
	store  AlertStore
	logger *zap.Logger
	now    func() time.Time
}

// NewAlertService constructs an AlertService over store using the wall clock.
func NewAlertService(store AlertStore, logger *zap.Logger) AlertService {
	return NewAlertServiceWithClock(store, logger, time.Now)
}

// NewAlertServiceWithClock is NewAlertService with an injectable clock.
func NewAlertServiceWithClock(store AlertStore, logger *zap.Logger, now func() time.Time) AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &alertService{store: store, logger: logger.Named("alerts"), now: now}
}

func (s *alertService) EvaluateAlerts(ctx context.Context) ([]Alert, error) {
	alerts, _, err := s.EvaluateWithSettings(ctx)
	return alerts, err
}

func (s *alertService) EvaluateWithSettings(ctx context.Context) ([]Alert, AlertSettings, error) {
	settings := s.GetSettings(ctx)
	records, err := s.store.ListAlertCandidates(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, settings, ctxErr
		}
		s.logger.Error("load alert candidates", zap.Error(err))
		return nil, settings, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	alerts := Evaluate(s.now(), settings, records)
	s.logger.Debug("alerts evaluated",
		zap.Int("records", len(records)),
		zap.Int("alerts", len(alerts)),
	)
	return alerts, settings, nil
}

func (s *alertService) Acknowledge(ctx context.Context, ids []string) (*AckResult, error) {
	result := &AckResult{Acknowledged: []string{}, Skipped: []string{}, Failed: []AckFailed{}}
	at := s.now().UTC()
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if IsStockAlertID(id) {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		class, recordID, err := ParseAlertID(id)
		if err != nil {
			result.Failed = append(result.Failed, AckFailed{ID: id, Reason: "malformed alert id", err: err})
			continue
		}
		if err := s.store.MergeAcknowledgment(ctx, recordID, class, at); err != nil {
			reason := "store write failed"
			if errors.Is(err, ErrRecordNotFound) {
				reason = "record not found"
			} else {
				s.logger.Error("acknowledge alert", zap.String("alert_id", id), zap.Error(err))
			}
			result.Failed = append(result.Failed, AckFailed{ID: id, Reason: reason, err: err})
			continue
		}
		result.Acknowledged = append(result.Acknowledged, id)
	}

	s.logger.Info("alerts acknowledged",
		zap.Int("acknowledged", len(result.Acknowledged)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)
	if len(result.Failed) > 0 {
		return result, ErrPartialAcknowledgment
	}
	return result, nil
}

func (s *alertService) GetSettings(ctx context.Context) AlertSettings {
	latest, err := s.store.LatestSettings(ctx)
	if err != nil {
		s.logger.Warn("settings unavailable, using defaults", zap.Error(err))
		return DefaultAlertSettings()
	}
	if latest == nil {
		return DefaultAlertSettings()
	}
	return latest.Settings
}

func (s *alertService) SaveSettings(ctx context.Context, settings AlertSettings, updatedBy string) (*SettingsVersion, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	v, err := s.store.InsertSettings(ctx, settings, updatedBy)
	if err != nil {
		s.logger.Error("save settings", zap.String("updated_by", updatedBy), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSettingsWrite, err)
	}
	s.logger.Info("settings saved", zap.Int("version", v.ID), zap.String("updated_by", updatedBy))
	return v, nil
}

func (s *alertService) SettingsHistory(ctx context.Context, limit int) ([]SettingsVersion, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	versions, err := s.store.ListSettings(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return versions, nil
}

// ── PostgreSQL store ──────────────────────────────────────────────────────────

type pgAlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore returns an AlertStore backed by the inventory and alert_settings tables.
func NewAlertStore(pool *pgxpool.Pool) AlertStore {
	return &pgAlertStore{pool: pool}
}

func (s *pgAlertStore) ListAlertCandidates(ctx context.Context) ([]InventoryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory
		WHERE expiration_date IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query alert candidates: %w", err)
	}
	defer rows.Close()

	var records []InventoryRecord
	for rows.Next() {
		rec, err := scanInventoryRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert candidates: %w", err)
	}
	return records, nil
}

// MergeAcknowledgment puts the stored object on the right of ||, so an existing key keeps its
// original timestamp and repeated acknowledgments are no-ops.
func (s *pgAlertStore) MergeAcknowledgment(ctx context.Context, recordID int, class AlertClass, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE inventory
		SET acknowledged_alerts = jsonb_build_object($2::text, $3::text) || COALESCE(acknowledged_alerts, '{}'::jsonb)
		WHERE id = $1`,
		recordID, class.AckKey(), at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("merge acknowledgment for record %d: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %d: %w", recordID, ErrRecordNotFound)
	}
	return nil
}

func (s *pgAlertStore) LatestSettings(ctx context.Context) (*SettingsVersion, error) {
	v, err := scanSettingsVersion(s.pool.QueryRow(ctx, `
		SELECT id, settings, COALESCE(updated_by, ''), updated_at
		FROM alert_settings
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (s *pgAlertStore) InsertSettings(ctx context.Context, settings AlertSettings, updatedBy string) (*SettingsVersion, error) {
	payload, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return scanSettingsVersion(s.pool.QueryRow(ctx, `
		INSERT INTO alert_settings (settings, updated_by)
		VALUES ($1, $2)
		RETURNING id, settings, COALESCE(updated_by, ''), updated_at`,
		payload, updatedBy,
	))
}

func (s *pgAlertStore) ListSettings(ctx context.Context, limit int) ([]SettingsVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, settings, COALESCE(updated_by, ''), updated_at
		FROM alert_settings
		ORDER BY updated_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query settings history: %w", err)
	}
	defer rows.Close()

	var versions []SettingsVersion
	for rows.Next() {
		v, err := scanSettingsVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func scanSettingsVersion(row pgx.Row) (*SettingsVersion, error) {
	var (
		v   SettingsVersion
		raw []byte
	)
	if err := row.Scan(&v.ID, &raw, &v.UpdatedBy, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan settings: %w", err)
	}
	// Start from defaults so keys missing from older rows keep sensible values.
	v.Settings = DefaultAlertSettings()
	if err := json.Unmarshal(raw, &v.Settings); err != nil {
		return nil, fmt.Errorf("decode settings %d: %w", v.ID, err)
	}
	return &v, nil
}
