package core

import (
	"fmt"
	"strconv"
	"strings"
)

// IDField is the name of the field that uniquely identifies a record.
const IDField = "id"

// Record is a single row of a dataset keyed by field name.
// Values are primitives (string, integer, float, bool) or nil.
type Record map[string]any

// ID returns the record identifier as an int64.
// The identifier may arrive as any numeric type or a decimal string
// depending on whether the record was decoded from JSON.
func (r Record) ID() (int64, bool) {
	return AsInt64(r[IDField])
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// AsInt64 converts a numeric identifier value to int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case float32:
		if n != float32(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case interface{ Int64() (int64, error) }:
		id, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// FormatValue renders a field value the way the filter and the default cell
// display see it.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
