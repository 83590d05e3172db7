// Package report renders collections of backend records as chat-visible HTML
// tables and downloadable PDF reports.
package report

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/hrygo/pharmacontrol/plugin/inventory"
)

// NotAvailable is displayed for missing fields.
const NotAvailable = "N/A"

// Kind tags the shape of a record field.
type Kind int

const (
	// Absent means the key is missing or null.
	Absent Kind = iota
	// Scalar is a string, number or bool.
	Scalar
	// Nested is an object carrying a display name under "nombre" or "name".
	Nested
)

// Value is a tagged view of one record field.
type Value struct {
	Kind Kind
	// Text is the display text for Scalar and Nested values.
	Text string
	// Raw is the decoded JSON value.
	Raw any
}

// String returns the display text, or NotAvailable.
func (v Value) String() string {
	if v.Kind == Absent || strings.TrimSpace(v.Text) == "" {
		return NotAvailable
	}
	return v.Text
}

// Field returns the tagged value stored under key.
func Field(rec inventory.Record, key string) Value {
	raw, ok := rec[key]
	if !ok || raw == nil {
		return Value{Kind: Absent}
	}

	switch v := raw.(type) {
	case map[string]any:
		for _, k := range []string{"nombre", "name"} {
			if name, ok := v[k]; ok && name != nil {
				return Value{Kind: Nested, Text: scalarText(name), Raw: raw}
			}
		}
		return Value{Kind: Nested, Raw: raw}
	case []any:
		return Value{Kind: Absent, Raw: raw}
	default:
		return Value{Kind: Scalar, Text: scalarText(v), Raw: raw}
	}
}

// Display returns the display text of the first present key.
func Display(rec inventory.Record, keys ...string) string {
	for _, key := range keys {
		if v := Field(rec, key); v.Kind != Absent {
			return v.String()
		}
	}
	return NotAvailable
}

// stockKeys are checked in order; the backend has used all three names.
var stockKeys = []string{"existencias", "cantidad", "stock"}

// Stock returns the stock level of a medication record, 0 when unknown.
// Fractional levels are kept so 0.5 units still count as stock on hand.
func Stock(rec inventory.Record) float64 {
	for _, key := range stockKeys {
		v := Field(rec, key)
		if v.Kind != Scalar {
			continue
		}
		if n, ok := toFloat(v.Raw); ok {
			return n
		}
	}
	return 0
}

// StockText formats a stock level without trailing zeros.
func StockText(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Status returns the lower-cased estado field, empty when missing.
func Status(rec inventory.Record) string {
	v := Field(rec, "estado")
	if v.Kind != Scalar {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v.Text))
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsNaN(f) {
			return f, true
		}
	}
	return 0, false
}

func scalarText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case map[string]any:
		for _, k := range []string{"nombre", "name"} {
			if name, ok := v[k]; ok && name != nil {
				return scalarText(name)
			}
		}
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
