package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Evaluate derives the active alerts for records as of today.
// It is a pure function of its inputs; acknowledged classes are suppressed per record.
// Records without an expiration date never alert and never count towards stock.
func Evaluate(today time.Time, settings AlertSettings, records []InventoryRecord) []Alert {
	today = dateOnly(today)
	sorted := make([]InventoryRecord, 0, len(records))
	for _, r := range records {
		if r.ExpirationDate != nil {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	alerts := ExpiryAlerts(today, settings, sorted)
	if settings.EnableStockAlerts {
		alerts = append(alerts, StockAlerts(GroupStock(today, sorted), settings.LowStockThreshold)...)
	}
	return alerts
}

// ExpiryAlerts returns the Expired, Expiring-critical and Expiring-warning alerts in record order.
func ExpiryAlerts(today time.Time, settings AlertSettings, records []InventoryRecord) []Alert {
	today = dateOnly(today)
	criticalDate := today.AddDate(0, 0, settings.ExpiryCriticalDays)
	warningDate := today.AddDate(0, 0, settings.ExpiryWarningDays)

	var alerts []Alert
	for _, r := range records {
		if r.ExpirationDate == nil {
			continue
		}
		exp := dateOnly(r.ExpirationDate.Time)
		days := daysBetween(today, exp)

		var (
			class    AlertClass
			typ      AlertType
			severity Severity
			message  string
		)
		switch {
		case exp.Before(today):
			class, typ, severity = ClassExpired, AlertExpired, SeverityCritical
			message = fmt.Sprintf("Item expired %d days ago", -days)
		case !exp.After(criticalDate):
			class, typ, severity = ClassExpiringCritical, AlertExpiringSoon, SeverityCritical
			message = fmt.Sprintf("Expires in %d days", days)
		case !exp.After(warningDate):
			class, typ, severity = ClassExpiringWarning, AlertExpiringSoon, SeverityWarning
			message = fmt.Sprintf("Expires in %d days", days)
		default:
			continue
		}
		if r.AcknowledgedAlerts.Has(class) {
			continue
		}

		id := r.ID
		d := days
		e := DateOf(exp)
		alerts = append(alerts, Alert{
			ID:              AlertID(class, r.ID),
			Type:            typ,
			Severity:        severity,
			RecordID:        &id,
			Message:         message,
			DaysUntilExpiry: &d,
			ItemName:        r.DrugItemName,
			PatientName:     r.PatientName,
			Location:        r.Location,
			InventoryNumber: r.InventoryNumber,
			ExpiryDate:      &e,
		})
	}
	return alerts
}

// StockGroup is the count of non-expired records for one (drug, location) pair.
type StockGroup struct {
	DrugItemName string
	Location     string
	Count        int
}

// GroupStock counts records with expiration_date >= today per (drug, location).
// Only pairs with at least one such record appear, so a zero count is never produced here.
func GroupStock(today time.Time, records []InventoryRecord) []StockGroup {
	today = dateOnly(today)
	type key struct{ drug, location string }
	counts := make(map[key]int)
	for _, r := range records {
		if r.ExpirationDate == nil || dateOnly(r.ExpirationDate.Time).Before(today) {
			continue
		}
		counts[key{r.DrugItemName, r.Location}]++
	}
	groups := make([]StockGroup, 0, len(counts))
	for k, n := range counts {
		groups = append(groups, StockGroup{DrugItemName: k.drug, Location: k.location, Count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].DrugItemName != groups[j].DrugItemName {
			return groups[i].DrugItemName < groups[j].DrugItemName
		}
		return groups[i].Location < groups[j].Location
	})
	return groups
}

// StockAlerts flags groups at or below threshold.
func StockAlerts(groups []StockGroup, threshold int) []Alert {
	var alerts []Alert
	for _, g := range groups {
		if g.Count > threshold {
			continue
		}
		severity := SeverityInfo
		typ := AlertLowStock
		message := fmt.Sprintf("Only %d items remaining", g.Count)
		switch {
		case g.Count == 0:
			severity, typ, message = SeverityCritical, AlertOutOfStock, "Out of stock"
		case g.Count <= 2:
			severity = SeverityWarning
		}
		n := g.Count
		alerts = append(alerts, Alert{
			ID:              StockAlertID(g.DrugItemName, g.Location),
			Type:            typ,
			Severity:        severity,
			Message:         message,
			StockCount:      &n,
			ItemName:        g.DrugItemName,
			PatientName:     "Multiple Patients",
			Location:        g.Location,
			InventoryNumber: "Multiple",
		})
	}
	return alerts
}

// AlertID is the deterministic id of a per-record alert.
func AlertID(class AlertClass, recordID int) string {
	return string(class) + "_" + strconv.Itoa(recordID)
}

const stockIDPrefix = "stock_"

// StockAlertID is the deterministic id of a (drug, location) stock alert.
func StockAlertID(drug, location string) string {
	return strings.ReplaceAll(stockIDPrefix+drug+"_"+location, " ", "_")
}

// IsStockAlertID reports whether id names a stock alert.
func IsStockAlertID(id string) bool {
	return strings.HasPrefix(id, stockIDPrefix)
}

// ParseAlertID splits a per-record alert id into its class and record id.
// The record id is everything after the last underscore and must be all digits.
func ParseAlertID(id string) (AlertClass, int, error) {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return "", 0, &MalformedAcknowledgmentIDError{ID: id}
	}
	class, ok := ParseAlertClass(id[:i])
	if !ok {
		return "", 0, &MalformedAcknowledgmentIDError{ID: id}
	}
	digits := id[i+1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", 0, &MalformedAcknowledgmentIDError{ID: id}
		}
	}
	recordID, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, &MalformedAcknowledgmentIDError{ID: id}
	}
	return class, recordID, nil
}

// FilterAlerts keeps alerts whose type and severity are in the given sets.
// An empty set matches everything.
func FilterAlerts(alerts []Alert, types []AlertType, severities []Severity) []Alert {
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if len(types) > 0 && !containsValue(types, a.Type) {
			continue
		}
		if len(severities) > 0 && !containsValue(severities, a.Severity) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// CountAlerts builds the dashboard counters for alerts.
func CountAlerts(alerts []Alert) AlertCounts {
	c := AlertCounts{Total: len(alerts), ByType: make(map[AlertType]int)}
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityWarning:
			c.Warning++
		case SeverityInfo:
			c.Info++
		}
		if a.IsStock() {
			c.Stock++
		} else {
			c.Expiry++
		}
		c.ByType[a.Type]++
	}
	return c
}

// BySeverity splits alerts into display groups, preserving order within each group.
func BySeverity(alerts []Alert) (critical, warning, info []Alert) {
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			critical = append(critical, a)
		case SeverityWarning:
			warning = append(warning, a)
		default:
			info = append(info, a)
		}
	}
	return critical, warning, info
}

func containsValue[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// dateOnly drops the clock and zone, keeping the calendar date as UTC midnight.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}
