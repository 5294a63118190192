// Package grid is the view model of the data grid: the view state, the
// loading machine, the edit session and the render contract. It has no
// terminal or browser dependency; front ends drive it and draw its View.
package grid

import (
	"fmt"
	"slices"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// LoadState is the grid's loading machine: Idle, then Loading, then Loaded
// or Failed, then Loading again on the next view change.
type LoadState int

const (
	Idle LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// ViewState is what the user has asked to see. SortKey is empty exactly
// when SortDir is core.SortNone.
type ViewState struct {
	Page       int
	PageSize   int
	SortKey    string
	SortDir    core.SortDir
	FilterText string
}

// DefaultViewState is the state at mount.
func DefaultViewState(pageSize int) ViewState {
	if !slices.Contains(core.PageSizes, pageSize) {
		pageSize = core.DefaultPageSize
	}
	return ViewState{Page: 1, PageSize: pageSize}
}

// Query converts the view state to a data source query.
func (v ViewState) Query() core.Query {
	return core.Query{
		Page:     v.Page,
		PageSize: v.PageSize,
		SortKey:  v.SortKey,
		SortDir:  v.SortDir,
		Filter:   v.FilterText,
	}
}

// ToggleSort applies a header activation on key: a new key sorts ascending,
// the current key cycles asc, desc, none. Page resets to 1.
func (v ViewState) ToggleSort(key string) ViewState {
	switch {
	case v.SortKey != key || v.SortDir == core.SortNone:
		v.SortKey, v.SortDir = key, core.SortAsc
	case v.SortDir == core.SortAsc:
		v.SortDir = core.SortDesc
	default:
		v.SortKey, v.SortDir = "", core.SortNone
	}
	v.Page = 1
	return v
}

// WithFilter sets the filter text and resets page to 1.
func (v ViewState) WithFilter(text string) ViewState {
	v.FilterText = text
	v.Page = 1
	return v
}

// WithPageSize sets one of core.PageSizes and resets page to 1.
func (v ViewState) WithPageSize(size int) (ViewState, error) {
	if !slices.Contains(core.PageSizes, size) {
		return v, fmt.Errorf("page size %d not in %v", size, core.PageSizes)
	}
	v.PageSize = size
	v.Page = 1
	return v, nil
}

// NextPageSize returns the page size after the current one, wrapping around.
func (v ViewState) NextPageSize() int {
	i := slices.Index(core.PageSizes, v.PageSize)
	return core.PageSizes[(i+1)%len(core.PageSizes)]
}

// TotalPages is max(1, ceil(total/pageSize)).
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return max(1, (total+pageSize-1)/pageSize)
}
