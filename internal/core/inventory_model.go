package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without clock or zone, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date { return Date{dateOnly(t)} }

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD and full RFC 3339 timestamps.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ScanDate implements pgtype.DateScanner.
func (d *Date) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into Date")
	}
	*d = DateOf(v.Time)
	return nil
}

// DateValue implements pgtype.DateValuer.
func (d Date) DateValue() (pgtype.Date, error) {
	return pgtype.Date{Time: d.Time, Valid: true}, nil
}

// InventoryRecord is one row of the inventory table: a physical item tied to a patient,
// provider and location.
type InventoryRecord struct {
	ID                     int             `json:"id"`
	PatientName            string          `json:"patient_name"`
	PatientID              int             `json:"patient_id"`
	AdministrationLocation string          `json:"administration_location"`
	DrugItemName           string          `json:"drug_item_name"`
	DateOfService          *Date           `json:"date_of_service,omitempty"`
	DateOfDispense         *Date           `json:"date_of_dispense,omitempty"`
	DateOrdered            *Date           `json:"date_ordered,omitempty"`
	DateReceived           *Date           `json:"date_received,omitempty"`
	OrderNumber            *int64          `json:"order_number,omitempty"`
	InvoiceNumber          *int64          `json:"invoice_number,omitempty"`
	PONumber               *int64          `json:"po_number,omitempty"`
	LotNumber              *int64          `json:"lot_number,omitempty"`
	ExpirationDate         *Date           `json:"expiration_date,omitempty"`
	InventoryNumber        string          `json:"inventory_number"`
	InventoryType          string          `json:"inventory_type"`
	PurchasePrice          decimal.Decimal `json:"purchase_price"`
	Provider               string          `json:"provider"`
	Location               string          `json:"location"`
	InventorySite          string          `json:"inventory_site"`
	Username               string          `json:"username"`
	DoseSwapStatus         bool            `json:"dose_swap_status"`
	AcknowledgedAlerts     Acknowledgments `json:"acknowledged_alerts"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	CreatedBy              string          `json:"created_by"`
	UpdatedBy              string          `json:"updated_by"`
}

// InventoryInput is the writable subset of an InventoryRecord used by Create and Update.
type InventoryInput struct {
	PatientName            string          `json:"patient_name" validate:"required,max=255"`
	PatientID              int             `json:"patient_id" validate:"required,gt=0"`
	AdministrationLocation string          `json:"administration_location" validate:"max=255"`
	DrugItemName           string          `json:"drug_item_name" validate:"required,max=255"`
	DateOfService          *Date           `json:"date_of_service"`
	DateOfDispense         *Date           `json:"date_of_dispense"`
	DateOrdered            *Date           `json:"date_ordered"`
	DateReceived           *Date           `json:"date_received"`
	OrderNumber            *int64          `json:"order_number" validate:"omitempty,gte=0"`
	InvoiceNumber          *int64          `json:"invoice_number" validate:"omitempty,gte=0"`
	PONumber               *int64          `json:"po_number" validate:"omitempty,gte=0"`
	LotNumber              *int64          `json:"lot_number" validate:"omitempty,gte=0"`
	ExpirationDate         *Date           `json:"expiration_date"`
	InventoryNumber        string          `json:"inventory_number" validate:"max=50"`
	InventoryType          string          `json:"inventory_type" validate:"max=100"`
	PurchasePrice          decimal.Decimal `json:"purchase_price"`
	Provider               string          `json:"provider" validate:"max=255"`
	Location               string          `json:"location" validate:"max=255"`
	InventorySite          string          `json:"inventory_site" validate:"max=255"`
	DoseSwapStatus         bool            `json:"dose_swap_status"`
}

// InventoryFilter narrows List results. Zero values mean "no filter".
type InventoryFilter struct {
	PatientName   string
	DrugItemName  string
	InventoryType string
	DateFrom      *Date
	DateTo        *Date
	Limit         int
}

// InventoryStats is the dashboard summary of the inventory table.
type InventoryStats struct {
	TotalRecords    int            `json:"total_records"`
	ByType          map[string]int `json:"by_type"`
	RecentAdditions int            `json:"recent_additions"`
	ExpiringSoon    int            `json:"expiring_soon"`
}

// ScanRecord is one row of scan_history.
type ScanRecord struct {
	ID               int       `json:"id"`
	BarcodeData      string    `json:"barcode_data"`
	ScannedBy        string    `json:"scanned_by"`
	ScannedAt        time.Time `json:"scan_timestamp"`
	FoundInInventory bool      `json:"found_in_inventory"`
	InventoryID      *int      `json:"inventory_id,omitempty"`
	ActionTaken      string    `json:"action_taken,omitempty"`
}

// ScanFilter narrows ScanHistory results.
type ScanFilter struct {
	Since     time.Time
	ScannedBy string
	Found     *bool
}

// AlertClass is the closed set of per-record alert classes that can be acknowledged.
type AlertClass string

const (
	ClassExpired          AlertClass = "expired"
	ClassExpiringCritical AlertClass = "expiring_critical"
	ClassExpiringWarning  AlertClass = "expiring_warning"
)

var alertClasses = []AlertClass{ClassExpired, ClassExpiringCritical, ClassExpiringWarning}

const ackKeySuffix = "_acknowledged"

// ParseAlertClass returns the class named by s, or false if s is not one of the known classes.
func ParseAlertClass(s string) (AlertClass, bool) {
	for _, c := range alertClasses {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// AckKey is the key written into the acknowledged_alerts column.
func (c AlertClass) AckKey() string {
	return string(c) + ackKeySuffix
}

// Acknowledgments maps an alert class to the time it was acknowledged on a record.
// The zero time means the key exists but its timestamp could not be parsed.
type Acknowledgments map[AlertClass]time.Time

// Has reports whether the class has been acknowledged.
func (a Acknowledgments) Has(c AlertClass) bool {
	_, ok := a[c]
	return ok
}

// Merge returns the key-wise union of a and other. Keys already in a keep their timestamp.
func (a Acknowledgments) Merge(other Acknowledgments) Acknowledgments {
	out := make(Acknowledgments, len(a)+len(other))
	for k, v := range other {
		out[k] = v
	}
	for k, v := range a {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the column format: {"<class>_acknowledged": "<RFC3339 timestamp>"}.
func (a Acknowledgments) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(a))
	for k, v := range a {
		m[k.AckKey()] = v.Format(time.RFC3339Nano)
	}
	return json.Marshal(m)
}

// ackTimeLayouts covers timestamps written by this service and the ISO format used by
// rows migrated from the previous system (no zone).
var ackTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON accepts both "<class>_acknowledged" and bare "<class>" keys.
// Keys outside the closed class set are ignored.
func (a *Acknowledgments) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Acknowledgments, len(raw))
	for k, v := range raw {
		class, ok := ParseAlertClass(strings.TrimSuffix(k, ackKeySuffix))
		if !ok {
			continue
		}
		var ts time.Time
		if s, isString := v.(string); isString {
			for _, layout := range ackTimeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					ts = t
					break
				}
			}
		}
		if existing, dup := out[class]; dup && (ts.IsZero() || (!existing.IsZero() && existing.Before(ts))) {
			continue
		}
		out[class] = ts
	}
	*a = out
	return nil
}
