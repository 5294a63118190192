package grid

import (
	"fmt"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// SkeletonRows is the number of placeholder rows shown while the first page loads.
const SkeletonRows = 5

// NoDataMessage is shown when a load returns no rows.
const NoDataMessage = "No data"

// BodyKind says what the grid body shows.
type BodyKind int

const (
	BodyRows BodyKind = iota
	BodySkeleton
	BodyError
	BodyEmpty
)

// HeaderCell is one rendered column header.
type HeaderCell struct {
	Key      string
	Label    string
	Width    int
	Sort     core.SortDir
	Editable bool
}

// Indicator is the sort arrow for the header, or "".
func (h HeaderCell) Indicator() string {
	switch h.Sort {
	case core.SortAsc:
		return "▲"
	case core.SortDesc:
		return "▼"
	default:
		return ""
	}
}

// Cell is one rendered body cell.
type Cell struct {
	Key     string
	Text    string
	Width   int
	Editing bool
}

// RenderRow is one rendered body row.
type RenderRow struct {
	Index int
	Cells []Cell
}

// Footer is the pagination bar.
type Footer struct {
	Page       int
	TotalPages int
	Total      int
	PageSize   int
	CanFirst   bool
	CanPrev    bool
	CanNext    bool
	CanLast    bool
}

// Summary is the footer text, "Page X of Y • N rows".
func (f Footer) Summary() string {
	return fmt.Sprintf("Page %d of %d • %d rows", f.Page, f.TotalPages, f.Total)
}

// Render is everything a front end needs to draw the grid.
type Render struct {
	Headers []HeaderCell
	Body    BodyKind
	Rows    []RenderRow
	Message string
	Footer  Footer
	Filter  string
	Loading bool
	Edit    *EditSession
}

// Render builds the current render model.
func (g *Grid) Render() Render {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := Render{
		Headers: make([]HeaderCell, len(g.columns)),
		Filter:  g.view.FilterText,
		Loading: g.state == Loading,
	}
	for i, c := range g.columns {
		h := HeaderCell{Key: c.Key, Label: c.Header, Width: g.widths[c.Key], Editable: c.Editable}
		if g.view.SortKey == c.Key {
			h.Sort = g.view.SortDir
		}
		out.Headers[i] = h
	}

	totalPages := TotalPages(g.total, g.view.PageSize)
	out.Footer = Footer{
		Page:       g.view.Page,
		TotalPages: totalPages,
		Total:      g.total,
		PageSize:   g.view.PageSize,
		CanFirst:   g.view.Page > 1,
		CanPrev:    g.view.Page > 1,
		CanNext:    g.view.Page < totalPages,
		CanLast:    g.view.Page < totalPages,
	}

	if g.edit != nil {
		e := *g.edit
		out.Edit = &e
	}

	switch {
	case g.state == Loading && len(g.rows) == 0:
		out.Body = BodySkeleton
	case g.state == Failed:
		out.Body = BodyError
		out.Message = g.err.Error()
	case len(g.rows) == 0 && g.state != Idle:
		out.Body = BodyEmpty
		out.Message = NoDataMessage
	default:
		out.Body = BodyRows
		out.Rows = g.renderRowsLocked()
	}
	return out
}

func (g *Grid) renderRowsLocked() []RenderRow {
	rows := make([]RenderRow, len(g.rows))
	for i, rec := range g.rows {
		id, _ := rec.ID()
		editing := g.edit != nil && g.edit.RowID == id
		cells := make([]Cell, len(g.columns))
		for j, c := range g.columns {
			cell := Cell{Key: c.Key, Text: c.Display(rec), Width: g.widths[c.Key]}
			if editing && g.edit.Key == c.Key {
				cell.Editing = true
				cell.Text = g.edit.Draft
			}
			cells[j] = cell
		}
		rows[i] = RenderRow{Index: i, Cells: cells}
	}
	return rows
}
