package core

import (
	"fmt"
	"math"
	"strings"
)

// SortDir is the direction applied to the sort key.
type SortDir string

const (
	// SortNone means no ordering is applied; the sort key must be empty.
	SortNone SortDir = ""

	// SortAsc orders values from smallest to largest.
	SortAsc SortDir = "asc"

	// SortDesc orders values from largest to smallest.
	SortDesc SortDir = "desc"
)

// ParseSortDir parses the wire form of a sort direction.
// "none" and the empty string both map to SortNone.
func ParseSortDir(s string) (SortDir, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "asc":
		return SortAsc, nil
	case "desc":
		return SortDesc, nil
	default:
		return SortNone, fmt.Errorf("unknown sort direction %q", s)
	}
}

func (d SortDir) String() string {
	if d == SortNone {
		return "none"
	}
	return string(d)
}

// PageSizes are the page sizes a client may select.
var PageSizes = []int{10, 20, 50, 100}

// DefaultPageSize is the page size used when none is requested.
const DefaultPageSize = 20

// Query selects a window of a filtered and sorted record set.
type Query struct {
	// Page is the 1-based page number.
	Page int

	// PageSize is the maximum number of rows returned.
	PageSize int

	// SortKey names the field to order by. Empty when SortDir is SortNone.
	SortKey string

	// SortDir is the ordering applied to SortKey.
	SortDir SortDir

	// Filter is a free-text token matched case-insensitively against the
	// searchable fields of every record.
	Filter string
}

// Offset returns the index of the first row of the requested page. It
// saturates at math.MaxInt instead of overflowing.
func (q Query) Offset() int {
	if q.Page < 1 || q.PageSize < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.PageSize {
		return math.MaxInt
	}
	return (q.Page - 1) * q.PageSize
}

// Sorted reports whether the query requests an ordering.
func (q Query) Sorted() bool {
	return q.SortKey != "" && q.SortDir != SortNone
}

// Page is the response to a Query.
type Page struct {
	// Rows holds at most PageSize records.
	Rows []Record `json:"rows"`

	// Total is the number of records matching the filter, before pagination.
	Total int `json:"total"`
}
