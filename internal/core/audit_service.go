package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry is one audit_log row written by the inventory trigger.
type AuditEntry struct {
	ID        int            `json:"id"`
	TableName string         `json:"table_name"`
	RecordID  int            `json:"record_id"`
	Action    string         `json:"action"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	ChangedBy string         `json:"changed_by"`
	ChangedAt time.Time      `json:"changed_at"`
	Summary   string         `json:"summary"`
}

// AuditFilter narrows List. From and To are inclusive calendar dates.
type AuditFilter struct {
	From      time.Time
	To        time.Time
	Action    string
	User      string
	RecordID  *int
	TableName string
	Search    string
}

// AuditStats counts changes in a date window.
type AuditStats struct {
	Total    int            `json:"total_changes"`
	ByAction map[string]int `json:"by_action"`
	ByUser   map[string]int `json:"by_user"`
	Daily    []DailyCount   `json:"daily"`
}

// DailyCount is the number of changes of one action on one day.
type DailyCount struct {
	Day    Date   `json:"day"`
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// AuditService reads the audit trail. Rows are written by the database trigger only.
type AuditService interface {
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	Stats(ctx context.Context, from, to time.Time) (*AuditStats, error)
	// Purge deletes entries older than before and reports how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

const auditListLimit = 1000

type auditService struct {
	pool *pgxpool.Pool
}

func NewAuditService(pool *pgxpool.Pool) AuditService {
	return &auditService{pool: pool}
}

func (s *auditService) List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	args := []any{dateOnly(filter.From), dateOnly(filter.To).AddDate(0, 0, 1)}
	query := `
		SELECT id, COALESCE(table_name, ''), COALESCE(record_id, 0), COALESCE(action, ''),
		       old_values, new_values, COALESCE(changed_by, ''), changed_at
		FROM audit_log
		WHERE changed_at >= $1 AND changed_at < $2`
	add := func(clause string, arg any) {
		args = append(args, arg)
		query += " AND " + strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(args)))
	}
	if filter.Action != "" {
		add("action = ?", strings.ToUpper(filter.Action))
	}
	if filter.User != "" {
		add("changed_by ILIKE ?", "%"+filter.User+"%")
	}
	if filter.RecordID != nil {
		add("record_id = ?", *filter.RecordID)
	}
	if filter.TableName != "" {
		add("table_name = ?", filter.TableName)
	}
	if filter.Search != "" {
		add("(old_values::text ILIKE ? OR new_values::text ILIKE ?)", "%"+filter.Search+"%")
	}
	query += fmt.Sprintf(" ORDER BY changed_at DESC, id DESC LIMIT %d", auditListLimit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e              AuditEntry
			oldRaw, newRaw []byte
		)
		if err := rows.Scan(&e.ID, &e.TableName, &e.RecordID, &e.Action, &oldRaw, &newRaw, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.OldValues, err = decodeAuditValues(oldRaw); err != nil {
			return nil, fmt.Errorf("audit entry %d old values: %w", e.ID, err)
		}
		if e.NewValues, err = decodeAuditValues(newRaw); err != nil {
			return nil, fmt.Errorf("audit entry %d new values: %w", e.ID, err)
		}
		e.Summary = ChangeSummary(e)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *auditService) Stats(ctx context.Context, from, to time.Time) (*AuditStats, error) {
	stats := &AuditStats{ByAction: make(map[string]int), ByUser: make(map[string]int), Daily: []DailyCount{}}
	rows, err := s.pool.Query(ctx, `
		SELECT changed_at::date, COALESCE(action, ''), COALESCE(changed_by, 'system'), COUNT(*)
		FROM audit_log
		WHERE changed_at >= $1 AND changed_at < $2
		GROUP BY 1, 2, 3
		ORDER BY 1, 2, 3`,
		dateOnly(from), dateOnly(to).AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("query audit stats: %w", err)
	}
	defer rows.Close()

	daily := make(map[string]int)
	var order []DailyCount
	for rows.Next() {
		var (
			day          Date
			action, user string
			n            int
		)
		if err := rows.Scan(&day, &action, &user, &n); err != nil {
			return nil, fmt.Errorf("scan audit stats: %w", err)
		}
		stats.Total += n
		stats.ByAction[action] += n
		stats.ByUser[user] += n
		key := day.String() + "|" + action
		if _, seen := daily[key]; !seen {
			daily[key] = len(order)
			order = append(order, DailyCount{Day: day, Action: action})
		}
		order[daily[key]].Count += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit stats: %w", err)
	}
	stats.Daily = append(stats.Daily, order...)
	return stats, nil
}

func (s *auditService) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM audit_log WHERE changed_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

// decodeAuditValues keeps numbers as json.Number so prices render as stored.
func decodeAuditValues(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// trackedAuditFields are reported by ChangeSummary, in column order.
var trackedAuditFields = []string{"patient_name", "drug_item_name", "expiration_date", "purchase_price"}

const maxSummaryChanges = 3

// ChangeSummary renders a one-line description of an audit entry.
func ChangeSummary(e AuditEntry) string {
	switch e.Action {
	case "INSERT":
		if e.NewValues != nil {
			return fmt.Sprintf("Created record for %s - %s",
				stringOr(e.NewValues, "patient_name", "Unknown"),
				stringOr(e.NewValues, "drug_item_name", "Unknown item"))
		}
		return fmt.Sprintf("Created new %s record", e.TableName)
	case "UPDATE":
		if e.OldValues != nil && e.NewValues != nil {
			var changes []string
			for _, field := range trackedAuditFields {
				oldV, inOld := e.OldValues[field]
				newV, inNew := e.NewValues[field]
				if !inOld || !inNew || fmt.Sprint(oldV) == fmt.Sprint(newV) {
					continue
				}
				changes = append(changes, fmt.Sprintf("%s: %v → %v", field, displayValue(oldV), displayValue(newV)))
			}
			if len(changes) > 0 {
				if len(changes) > maxSummaryChanges {
					changes = changes[:maxSummaryChanges]
				}
				return fmt.Sprintf("Updated %s: %s", stringOr(e.NewValues, "patient_name", "Record"), strings.Join(changes, ", "))
			}
		}
		return fmt.Sprintf("Updated %s record", e.TableName)
	case "DELETE":
		if e.OldValues != nil {
			return fmt.Sprintf("Deleted record for %s - %s",
				stringOr(e.OldValues, "patient_name", "Unknown"),
				stringOr(e.OldValues, "drug_item_name", "Unknown item"))
		}
		return fmt.Sprintf("Deleted %s record", e.TableName)
	}
	return fmt.Sprintf("%s on %s", e.Action, e.TableName)
}

func stringOr(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return fallback
}

func displayValue(v any) any {
	if v == nil {
		return "None"
	}
	return v
}
