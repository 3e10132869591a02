package core_test

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"inventory-tracker/internal/core"
)

func TestParseScannedData(t *testing.T) {
	tests := []struct {
		name string
		text string
		typ  core.CodeType
		want map[string]any
	}{
		{"inventory number trimmed", "  INV-101500-ABC123 \n", core.CodeInventoryNumber, map[string]any{"inventory_number": "INV-101500-ABC123"}},
		{"patient id first digit run", "PT-00451-X9", core.CodePatientID, map[string]any{"patient_id": 451}},
		{"patient id without digits", "none", core.CodePatientID, map[string]any{}},
		{"qr pairs", "Patient=Jane Doe; LOT=778;junk", core.CodeQR, map[string]any{"patient": "Jane Doe", "lot": "778"}},
		{"unknown type", " raw ", core.CodeType("Other"), map[string]any{"scanned_data": "raw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.ParseScannedData(tt.text, tt.typ)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateInventoryNumber(t *testing.T) {
	at := time.Date(2024, 6, 1, 14, 5, 9, 0, time.UTC)
	pattern := regexp.MustCompile(`^INV-140509-[0-9A-F]{6}$`)
	a := core.GenerateInventoryNumber(at)
	b := core.GenerateInventoryNumber(at)
	if !pattern.MatchString(a) || !pattern.MatchString(b) {
		t.Fatalf("unexpected format: %s, %s", a, b)
	}
	if a == b {
		t.Errorf("two numbers in the same second collided: %s", a)
	}
}

func TestExpirationStatusOf(t *testing.T) {
	today := june1
	tests := []struct {
		expiry *core.Date
		want   core.ExpirationStatus
	}{
		{nil, core.StatusUnknown},
		{day(2024, 5, 31), core.StatusExpired},
		{day(2024, 6, 1), core.StatusExpiresSoon},
		{day(2024, 6, 8), core.StatusExpiresSoon},
		{day(2024, 6, 9), core.StatusExpiring},
		{day(2024, 7, 1), core.StatusExpiring},
		{day(2024, 7, 2), core.StatusValid},
	}
	for _, tt := range tests {
		if got := core.ExpirationStatusOf(tt.expiry, today); got != tt.want {
			t.Errorf("ExpirationStatusOf(%v) = %s, want %s", tt.expiry, got, tt.want)
		}
	}
}

func TestChangeSummary(t *testing.T) {
	tests := []struct {
		name  string
		entry core.AuditEntry
		want  string
	}{
		{
			name: "insert",
			entry: core.AuditEntry{Action: "INSERT", TableName: "inventory",
				NewValues: map[string]any{"patient_name": "Jane Doe", "drug_item_name": "Insulin"}},
			want: "Created record for Jane Doe - Insulin",
		},
		{
			name:  "insert without values",
			entry: core.AuditEntry{Action: "INSERT", TableName: "inventory"},
			want:  "Created new inventory record",
		},
		{
			name: "update tracked fields",
			entry: core.AuditEntry{Action: "UPDATE", TableName: "inventory",
				OldValues: map[string]any{"patient_name": "Jane Doe", "expiration_date": nil, "purchase_price": json.Number("50.00"), "location": "A"},
				NewValues: map[string]any{"patient_name": "Jane Doe", "expiration_date": "2024-07-01", "purchase_price": json.Number("65.50"), "location": "B"}},
			want: "Updated Jane Doe: expiration_date: None → 2024-07-01, purchase_price: 50.00 → 65.50",
		},
		{
			name: "update untracked only",
			entry: core.AuditEntry{Action: "UPDATE", TableName: "inventory",
				OldValues: map[string]any{"location": "A"}, NewValues: map[string]any{"location": "B"}},
			want: "Updated inventory record",
		},
		{
			name: "delete",
			entry: core.AuditEntry{Action: "DELETE", TableName: "inventory",
				OldValues: map[string]any{"patient_name": "Jane Doe"}},
			want: "Deleted record for Jane Doe - Unknown item",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.ChangeSummary(tt.entry); got != tt.want {
				t.Errorf("got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
		suffix  string
	}{
		{name: "unsafe characters", in: ` lab<report>:"v2"?.pdf `, wantLen: len("lab_report___v2__.pdf"), suffix: "lab_report___v2__.pdf"},
		{name: "ascii over limit", in: strings.Repeat("a", 300) + ".pdf", wantLen: 255, suffix: ".pdf"},
		{name: "multi-byte over limit", in: strings.Repeat("é", 200) + ".pdf", wantLen: 254, suffix: "é.pdf"},
		{name: "invalid utf-8", in: "scan\xff\xfe.png", wantLen: len("scan_.png"), suffix: "scan_.png"},
		{name: "long extension dropped", in: "a." + strings.Repeat("x", 300), wantLen: 255, suffix: "xxx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.SanitizeFilename(tt.in)
			if !utf8.ValidString(got) {
				t.Fatalf("result is not valid UTF-8: %q", got)
			}
			if len(got) != tt.wantLen || !strings.HasSuffix(got, tt.suffix) {
				t.Errorf("got len %d %q, want len %d ending %q", len(got), got, tt.wantLen, tt.suffix)
			}
		})
	}
}

func TestDateJSON(t *testing.T) {
	var in struct {
		A core.Date  `json:"a"`
		B *core.Date `json:"b"`
		C *core.Date `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"2024-06-05","b":"2024-06-20T00:00:00Z","c":null}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.A.String() != "2024-06-05" || in.B.String() != "2024-06-20" || in.C != nil {
		t.Errorf("decoded %v %v %v", in.A, in.B, in.C)
	}
	out, err := json.Marshal(in.A)
	if err != nil || string(out) != `"2024-06-05"` {
		t.Errorf("marshal = %s, %v", out, err)
	}
	if err := json.Unmarshal([]byte(`{"a":"06/05/2024"}`), &in); err == nil {
		t.Errorf("expected error for unsupported layout")
	}
}
