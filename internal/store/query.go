package store

import (
	"slices"
	"strings"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/schema"
)

// Filter returns the records for which any of fields contains token as a
// case-insensitive substring. An empty token matches every record.
// Whitespace in token is significant. The input slice is never modified.
func Filter(records []core.Record, fields []string, token string) []core.Record {
	q := strings.ToLower(token)
	if q == "" {
		return slices.Clone(records)
	}

	out := make([]core.Record, 0, len(records)/4)
	for _, r := range records {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(core.FormatValue(r[f])), q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Sort orders records in place by key. Ties keep their relative order, so
// sorting an id-ordered set leaves equal values in id order.
func Sort(records []core.Record, key string, dir core.SortDir) {
	if key == "" || dir == core.SortNone {
		return
	}
	slices.SortStableFunc(records, func(a, b core.Record) int {
		c := schema.Compare(a[key], b[key])
		if dir == core.SortDesc {
			return -c
		}
		return c
	})
}

// Paginate returns the window [(page-1)*size, page*size) of records.
// Pages past the end yield an empty, non-nil slice.
func Paginate(records []core.Record, page, size int) []core.Record {
	if page < 1 || size < 1 {
		return []core.Record{}
	}
	// Checked before multiplying so a huge page cannot overflow start.
	if page-1 > len(records)/size {
		return []core.Record{}
	}
	start := (page - 1) * size
	if start >= len(records) {
		return []core.Record{}
	}
	end := min(start+size, len(records))
	return records[start:end]
}
