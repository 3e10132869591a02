package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InventoryService manages inventory records and resolves scanned identifiers to them.
type InventoryService interface {
	Create(ctx context.Context, input InventoryInput, user string) (*InventoryRecord, error)
	// Update replaces every writable column of the record. Acknowledgments are untouched.
	Update(ctx context.Context, id int, input InventoryInput, user string) (*InventoryRecord, error)
	Delete(ctx context.Context, id int) error
	Get(ctx context.Context, id int) (*InventoryRecord, error)
	List(ctx context.Context, filter InventoryFilter) ([]InventoryRecord, error)
	Stats(ctx context.Context) (*InventoryStats, error)

	// LookupByBarcode finds the newest record whose inventory, lot, order, PO or invoice number
	// equals code, and records the scan. Returns ErrRecordNotFound when nothing matches.
	LookupByBarcode(ctx context.Context, code, scannedBy string) (*InventoryRecord, error)
	// Search does a case-insensitive substring match on one identifier field, or on all of them
	// plus drug and patient name when field is SearchAll. At most 10 records are returned.
	Search(ctx context.Context, value string, field SearchField) ([]InventoryRecord, error)
	ScanHistory(ctx context.Context, filter ScanFilter) ([]ScanRecord, error)
	// RecordScanAction tags the caller's most recent scan of inventoryID within the last hour.
	RecordScanAction(ctx context.Context, inventoryID int, scannedBy, action string) error
	ScanStats(ctx context.Context) (*ScanStats, error)
}

// ScanStats counts scan_history rows.
type ScanStats struct {
	TotalScans int `json:"total_scans"`
	FoundScans int `json:"found_scans"`
	TodayScans int `json:"today_scans"`
}

// SearchField picks the column Search matches against.
type SearchField string

const (
	SearchAll             SearchField = "All Fields"
	SearchInventoryNumber SearchField = "Inventory Number"
	SearchLotNumber       SearchField = "Lot Number"
	SearchOrderNumber     SearchField = "Order Number"
	SearchPONumber        SearchField = "PO Number"
	SearchInvoiceNumber   SearchField = "Invoice Number"
)

var searchColumns = map[SearchField]string{
	SearchInventoryNumber: "inventory_number",
	SearchLotNumber:       "lot_number::text",
	SearchOrderNumber:     "order_number::text",
	SearchPONumber:        "po_number::text",
	SearchInvoiceNumber:   "invoice_number::text",
}

const (
	searchLimit      = 10
	scanHistoryLimit = 100
	defaultListLimit = 500
)

// inventoryColumns is the projection scanned by scanInventoryRecord.
const inventoryColumns = `id, patient_name, patient_id, COALESCE(administration_location, ''), drug_item_name,
		date_of_service, date_of_dispense, date_ordered, date_received,
		order_number, invoice_number, po_number, lot_number, expiration_date,
		COALESCE(inventory_number, ''), COALESCE(inventory_type, ''), COALESCE(purchase_price, 0),
		COALESCE(provider, ''), COALESCE(location, ''), COALESCE(inventory_site, ''), COALESCE(username, ''),
		COALESCE(dose_swap_status, false), COALESCE(acknowledged_alerts, '{}'::jsonb),
		created_at, updated_at, COALESCE(created_by, ''), COALESCE(updated_by, '')`

func scanInventoryRecord(row pgx.Row) (*InventoryRecord, error) {
	var r InventoryRecord
	err := row.Scan(
		&r.ID, &r.PatientName, &r.PatientID, &r.AdministrationLocation, &r.DrugItemName,
		&r.DateOfService, &r.DateOfDispense, &r.DateOrdered, &r.DateReceived,
		&r.OrderNumber, &r.InvoiceNumber, &r.PONumber, &r.LotNumber, &r.ExpirationDate,
		&r.InventoryNumber, &r.InventoryType, &r.PurchasePrice,
		&r.Provider, &r.Location, &r.InventorySite, &r.Username,
		&r.DoseSwapStatus, &r.AcknowledgedAlerts,
		&r.CreatedAt, &r.UpdatedAt, &r.CreatedBy, &r.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("scan inventory record: %w", err)
	}
	return &r, nil
}

func collectInventory(rows pgx.Rows) ([]InventoryRecord, error) {
	defer rows.Close()
	var records []InventoryRecord
	for rows.Next() {
		r, err := scanInventoryRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}
	return records, nil
}

type inventoryService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewInventoryService constructs an InventoryService backed by PostgreSQL.
func NewInventoryService(pool *pgxpool.Pool) InventoryService {
	return &inventoryService{pool: pool, now: time.Now}
}

func (s *inventoryService) Create(ctx context.Context, input InventoryInput, user string) (*InventoryRecord, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.InventoryNumber) == "" {
		input.InventoryNumber = GenerateInventoryNumber(s.now())
	}
	price := input.PurchasePrice
	if price.IsZero() {
		price = defaultPurchasePrice
	}

	rec, err := scanInventoryRecord(s.pool.QueryRow(ctx, `
		INSERT INTO inventory (
			patient_name, patient_id, administration_location, drug_item_name,
			date_of_service, date_of_dispense, date_ordered, date_received,
			order_number, invoice_number, po_number, lot_number,
			expiration_date, inventory_number, inventory_type, purchase_price,
			provider, location, inventory_site, username, dose_swap_status,
			created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		          $13, $14, $15, $16, $17, $18, $19, $20, $21, $20, $20)
		RETURNING `+inventoryColumns,
		input.PatientName, input.PatientID, input.AdministrationLocation, input.DrugItemName,
		input.DateOfService, input.DateOfDispense, input.DateOrdered, input.DateReceived,
		input.OrderNumber, input.InvoiceNumber, input.PONumber, input.LotNumber,
		input.ExpirationDate, input.InventoryNumber, input.InventoryType, price,
		input.Provider, input.Location, input.InventorySite, user, input.DoseSwapStatus,
	))
	if err != nil {
		return nil, inventoryWriteError("create inventory record", err)
	}
	return rec, nil
}

func (s *inventoryService) Update(ctx context.Context, id int, input InventoryInput, user string) (*InventoryRecord, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.InventoryNumber) == "" {
		return nil, &ValidationError{Problems: []string{"inventory_number is required"}}
	}

	rec, err := scanInventoryRecord(s.pool.QueryRow(ctx, `
		UPDATE inventory SET
			patient_name = $2, patient_id = $3, administration_location = $4,
			drug_item_name = $5, date_of_service = $6, date_of_dispense = $7,
			date_ordered = $8, date_received = $9, order_number = $10,
			invoice_number = $11, po_number = $12, lot_number = $13,
			expiration_date = $14, inventory_number = $15, inventory_type = $16,
			purchase_price = $17, provider = $18, location = $19,
			inventory_site = $20, dose_swap_status = $21,
			updated_by = $22, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING `+inventoryColumns,
		id, input.PatientName, input.PatientID, input.AdministrationLocation,
		input.DrugItemName, input.DateOfService, input.DateOfDispense,
		input.DateOrdered, input.DateReceived, input.OrderNumber,
		input.InvoiceNumber, input.PONumber, input.LotNumber,
		input.ExpirationDate, input.InventoryNumber, input.InventoryType,
		input.PurchasePrice, input.Provider, input.Location,
		input.InventorySite, input.DoseSwapStatus, user,
	))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("record %d: %w", id, ErrRecordNotFound)
		}
		return nil, inventoryWriteError(fmt.Sprintf("update inventory record %d", id), err)
	}
	return rec, nil
}

func (s *inventoryService) Delete(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM inventory WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete inventory record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %d: %w", id, ErrRecordNotFound)
	}
	return nil
}

func (s *inventoryService) Get(ctx context.Context, id int) (*InventoryRecord, error) {
	rec, err := scanInventoryRecord(s.pool.QueryRow(ctx,
		"SELECT "+inventoryColumns+" FROM inventory WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("record %d: %w", id, ErrRecordNotFound)
		}
		return nil, err
	}
	return rec, nil
}

func (s *inventoryService) List(ctx context.Context, filter InventoryFilter) ([]InventoryRecord, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.PatientName != "" {
		add("patient_name ILIKE $%d", "%"+filter.PatientName+"%")
	}
	if filter.DrugItemName != "" {
		add("drug_item_name ILIKE $%d", "%"+filter.DrugItemName+"%")
	}
	if filter.InventoryType != "" {
		add("inventory_type = $%d", filter.InventoryType)
	}
	if filter.DateFrom != nil {
		add("date_of_service >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("date_of_service <= $%d", *filter.DateTo)
	}
	limit := filter.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	query := "SELECT " + inventoryColumns + " FROM inventory"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return collectInventory(rows)
}

func (s *inventoryService) Stats(ctx context.Context) (*InventoryStats, error) {
	stats := &InventoryStats{ByType: make(map[string]int)}
	today := DateOf(s.now())

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1::date - INTERVAL '7 days'),
			COUNT(*) FILTER (WHERE expiration_date > $1::date AND expiration_date <= $1::date + 30)
		FROM inventory`, today,
	).Scan(&stats.TotalRecords, &stats.RecentAdditions, &stats.ExpiringSoon)
	if err != nil {
		return nil, fmt.Errorf("inventory stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(NULLIF(inventory_type, ''), 'Unspecified'), COUNT(*)
		FROM inventory
		GROUP BY 1
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("inventory stats by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan inventory type count: %w", err)
		}
		stats.ByType[typ] = n
	}
	return stats, rows.Err()
}

func (s *inventoryService) LookupByBarcode(ctx context.Context, code, scannedBy string) (*InventoryRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ValidationError{Problems: []string{"barcode is required"}}
	}

	rec, err := scanInventoryRecord(s.pool.QueryRow(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory
		WHERE inventory_number = $1
		   OR lot_number::text = $1
		   OR order_number::text = $1
		   OR po_number::text = $1
		   OR invoice_number::text = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, code))
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup barcode %q: %w", code, err)
	}

	var inventoryID *int
	if rec != nil {
		inventoryID = &rec.ID
	}
	if _, scanErr := s.pool.Exec(ctx, `
		INSERT INTO scan_history (barcode_data, scanned_by, found_in_inventory, inventory_id)
		VALUES ($1, $2, $3, $4)`,
		code, scannedBy, rec != nil, inventoryID,
	); scanErr != nil {
		return nil, fmt.Errorf("record scan of %q: %w", code, scanErr)
	}

	if rec == nil {
		return nil, fmt.Errorf("barcode %q: %w", code, ErrRecordNotFound)
	}
	return rec, nil
}

func (s *inventoryService) Search(ctx context.Context, value string, field SearchField) ([]InventoryRecord, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return []InventoryRecord{}, nil
	}
	pattern := "%" + value + "%"

	var where string
	if field == "" || field == SearchAll {
		where = `inventory_number ILIKE $1
		   OR lot_number::text ILIKE $1
		   OR order_number::text ILIKE $1
		   OR po_number::text ILIKE $1
		   OR invoice_number::text ILIKE $1
		   OR drug_item_name ILIKE $1
		   OR patient_name ILIKE $1`
	} else {
		col, ok := searchColumns[field]
		if !ok {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("unknown search field %q", field)}}
		}
		where = col + " ILIKE $1"
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM inventory
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT %d`, inventoryColumns, where, searchLimit), pattern)
	if err != nil {
		return nil, fmt.Errorf("search inventory: %w", err)
	}
	return collectInventory(rows)
}

func (s *inventoryService) ScanHistory(ctx context.Context, filter ScanFilter) ([]ScanRecord, error) {
	args := []any{filter.Since}
	query := `
		SELECT id, barcode_data, COALESCE(scanned_by, ''), scan_timestamp,
		       COALESCE(found_in_inventory, false), inventory_id, COALESCE(action_taken, '')
		FROM scan_history
		WHERE scan_timestamp >= $1`
	if filter.ScannedBy != "" {
		args = append(args, filter.ScannedBy)
		query += fmt.Sprintf(" AND scanned_by = $%d", len(args))
	}
	if filter.Found != nil {
		args = append(args, *filter.Found)
		query += fmt.Sprintf(" AND found_in_inventory = $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY scan_timestamp DESC, id DESC LIMIT %d", scanHistoryLimit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scan history: %w", err)
	}
	defer rows.Close()

	var scans []ScanRecord
	for rows.Next() {
		var sr ScanRecord
		if err := rows.Scan(&sr.ID, &sr.BarcodeData, &sr.ScannedBy, &sr.ScannedAt,
			&sr.FoundInInventory, &sr.InventoryID, &sr.ActionTaken); err != nil {
			return nil, fmt.Errorf("scan scan_history row: %w", err)
		}
		scans = append(scans, sr)
	}
	return scans, rows.Err()
}

func (s *inventoryService) RecordScanAction(ctx context.Context, inventoryID int, scannedBy, action string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scan_history SET action_taken = $3
		WHERE id = (
			SELECT id FROM scan_history
			WHERE inventory_id = $1
			  AND scanned_by = $2
			  AND scan_timestamp >= CURRENT_TIMESTAMP - INTERVAL '1 hour'
			ORDER BY scan_timestamp DESC, id DESC
			LIMIT 1
		)`, inventoryID, scannedBy, action)
	if err != nil {
		return fmt.Errorf("record scan action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no recent scan of record %d by %s: %w", inventoryID, scannedBy, ErrRecordNotFound)
	}
	return nil
}

func (s *inventoryService) ScanStats(ctx context.Context) (*ScanStats, error) {
	var st ScanStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE found_in_inventory),
		       COUNT(*) FILTER (WHERE scan_timestamp >= CURRENT_DATE)
		FROM scan_history`,
	).Scan(&st.TotalScans, &st.FoundScans, &st.TodayScans)
	if err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	return &st, nil
}

var defaultPurchasePrice = decimal.NewFromInt(50)

// inventoryWriteError turns a unique violation on inventory_number into a ValidationError.
func inventoryWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &ValidationError{Problems: []string{"inventory_number already exists"}}
	}
	return fmt.Errorf("%s: %w", op, err)
}
