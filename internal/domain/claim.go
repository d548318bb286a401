// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// ClaimRecord is a single raw claim as delivered by the upstream
// CSV/SQL source. Keys are snake_case column names; fields are optional
// and values arrive as strings or numbers depending on the source.
// Records are owned by the caller and never mutated by the engines.
type ClaimRecord map[string]any

// ClaimsTable is an ordered collection of claim records, the unit of
// analysis for all engines.
type ClaimsTable []ClaimRecord

// Has reports whether the record carries a non-nil value for key.
func (c ClaimRecord) Has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}

// Str returns the value for key as a string, or "" when absent.
func (c ClaimRecord) Str(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// Float returns the value for key coerced to float64.
// Non-numeric or absent values coerce to 0.
func (c ClaimRecord) Float(key string) float64 {
	v, ok := c[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns the value for key coerced to int, 0 when not coercible.
func (c ClaimRecord) Int(key string) int {
	v, ok := c[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// claimDateLayouts are the calendar formats accepted for date columns.
var claimDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"2006-01-02T15:04:05",
}

// Date returns the value for key parsed as a calendar date.
// The second return value is false when the value is absent or
// unparseable.
func (c ClaimRecord) Date(key string) (time.Time, bool) {
	v, ok := c[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	if t, isTime := v.(time.Time); isTime {
		return t, true
	}
	s := strings.TrimSpace(c.Str(key))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range claimDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clone returns a shallow copy of the record. Engines that derive
// columns work on clones so source records stay untouched.
func (c ClaimRecord) Clone() ClaimRecord {
	out := make(ClaimRecord, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// HasColumn reports whether any record in the table carries the column.
func (t ClaimsTable) HasColumn(key string) bool {
	for _, rec := range t {
		if _, ok := rec[key]; ok {
			return true
		}
	}
	return false
}
