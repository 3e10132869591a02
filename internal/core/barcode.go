package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateInventoryNumber returns INV-<hhmmss>-<6 upper-case hex>.
func GenerateInventoryNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return "INV-" + at.Format("150405") + "-" + suffix
}

// CodeType tells ParseScannedData how to interpret scanned text.
type CodeType string

const (
	CodeInventoryNumber CodeType = "Inventory Number"
	CodePatientID       CodeType = "Patient ID"
	CodeQR              CodeType = "QR Code"
)

var digitRun = regexp.MustCompile(`\d+`)

// ParseScannedData extracts fields from raw scanner output.
//
// Inventory numbers are trimmed; patient ids take the first run of digits; QR codes carry
// key=value pairs separated by semicolons (keys lower-cased). Anything else is returned
// under "scanned_data".
func ParseScannedData(text string, codeType CodeType) map[string]any {
	out := make(map[string]any)
	switch codeType {
	case CodeInventoryNumber:
		out["inventory_number"] = strings.TrimSpace(text)
	case CodePatientID:
		if m := digitRun.FindString(text); m != "" {
			if id, err := strconv.Atoi(m); err == nil {
				out["patient_id"] = id
			}
		}
	case CodeQR:
		for _, pair := range strings.Split(text, ";") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	default:
		out["scanned_data"] = strings.TrimSpace(text)
	}
	return out
}

// ExpirationStatus labels how close expiry is, as shown on inventory listings.
type ExpirationStatus string

const (
	StatusExpired     ExpirationStatus = "Expired"
	StatusExpiresSoon ExpirationStatus = "Expires Soon"
	StatusExpiring    ExpirationStatus = "Expiring"
	StatusValid       ExpirationStatus = "Valid"
	StatusUnknown     ExpirationStatus = "Unknown"
)

// ExpirationStatusOf classifies expiry relative to today: under 0 days Expired,
// up to 7 Expires Soon, up to 30 Expiring, otherwise Valid.
func ExpirationStatusOf(expiry *Date, today time.Time) ExpirationStatus {
	if expiry == nil {
		return StatusUnknown
	}
	days := daysBetween(today, expiry.Time)
	switch {
	case days < 0:
		return StatusExpired
	case days <= 7:
		return StatusExpiresSoon
	case days <= 30:
		return StatusExpiring
	default:
		return StatusValid
	}
}
