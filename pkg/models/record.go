// Package models provides the record type flowing through the extraction
// pipeline.
package models

import (
	"fmt"
	"strconv"
)

// Record is a single extracted row: an open field map with an injected date
// field. Fields the API reported as null are absent, never present-as-nil.
type Record map[string]interface{}

// Key returns the record's value for a key property as a string, or ""
// when the field is absent. Non-string scalars are formatted: a numeric id
// decoded as float64 still keys its child streams.
func (r Record) Key(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
