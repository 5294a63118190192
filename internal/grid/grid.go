package grid

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/errs"
	"github.com/rzpsarthak13/gridconsole/internal/resize"
	"github.com/rzpsarthak13/gridconsole/internal/schema"
)

var (
	// ErrNotEditable is returned when an edit starts on a read-only column.
	ErrNotEditable = errors.New("column is not editable")
	// ErrEditActive is returned when an edit starts while another is open.
	ErrEditActive = errors.New("an edit is already open")
	// ErrNoEditSession is returned by edit operations when nothing is being edited.
	ErrNoEditSession = errors.New("no edit in progress")
	// ErrSaving is returned when the draft changes while its write is in flight.
	ErrSaving = errors.New("edit is being saved")
	// ErrNoRow is returned for a row index outside the rendered rows.
	ErrNoRow = errors.New("no such row")
	// ErrUnknownColumn is returned for a column key the grid does not have.
	ErrUnknownColumn = errors.New("unknown column")
)

// Fetch is a ticket for one page load. Only the latest issued ticket may
// change what the grid shows.
type Fetch struct {
	Seq   uint64
	Query core.Query
}

// FetchResult is the outcome of a Fetch.
type FetchResult struct {
	Seq  uint64
	Page core.Page
	Err  error
}

// EditSession is an open cell editor.
type EditSession struct {
	RowIndex int
	RowID    int64
	Key      string
	Draft    string
	Saving   bool
	// Err is the last failed write, shown next to the draft.
	Err error

	id uint64
}

// Write is a ticket for committing an edit session.
type Write struct {
	Session uint64
	Row     core.Record
	RowID   int64
	Key     string
	Value   any
}

// WriteResult is the outcome of a Write.
type WriteResult struct {
	Write
	Err error
}

// Option configures a Grid.
type Option func(*Grid)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Grid) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithColumns sets the column set. Defaults to UserColumns.
func WithColumns(cols []Column) Option {
	return func(g *Grid) {
		if len(cols) > 0 {
			g.columns = slices.Clone(cols)
		}
	}
}

// WithPageSize sets the initial page size.
func WithPageSize(size int) Option {
	return func(g *Grid) { g.view = DefaultViewState(size) }
}

// Grid holds the state of one data grid. It is safe for concurrent use;
// data source calls happen outside its lock, between a ticket and its Apply.
type Grid struct {
	source core.DataSource
	logger *zap.Logger

	bus     *resize.Bus
	tracker *resize.Tracker

	mu      sync.Mutex
	columns []Column
	widths  map[string]int
	view    ViewState
	state   LoadState
	rows    []core.Record
	total   int
	err     error
	seq     uint64
	edit    *EditSession
	editSeq uint64
}

// New creates a grid over source.
func New(source core.DataSource, opts ...Option) *Grid {
	g := &Grid{
		source:  source,
		logger:  zap.NewNop(),
		columns: UserColumns(),
		view:    DefaultViewState(core.DefaultPageSize),
		bus:     resize.NewBus(),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.widths = make(map[string]int, len(g.columns))
	for _, c := range g.columns {
		g.widths[c.Key] = c.width()
	}
	g.tracker = resize.NewTracker(g.bus, g.SetWidth)
	return g
}

// Columns returns the columns with their current widths.
func (g *Grid) Columns() []Column {
	g.mu.Lock()
	defer g.mu.Unlock()
	cols := slices.Clone(g.columns)
	for i := range cols {
		cols[i].Width = g.widths[cols[i].Key]
	}
	return cols
}

// ViewState returns the current view state.
func (g *Grid) ViewState() ViewState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view
}

// State returns the loading state.
func (g *Grid) State() LoadState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Rows returns a copy of the rendered rows.
func (g *Grid) Rows() []core.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows := make([]core.Record, len(g.rows))
	for i, r := range g.rows {
		rows[i] = r.Clone()
	}
	return rows
}

// Total returns the filter match count of the last loaded page.
func (g *Grid) Total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

// Err returns the last load error, nil unless the state is Failed.
func (g *Grid) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// TotalPages returns the page count for the last loaded total.
func (g *Grid) TotalPages() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return TotalPages(g.total, g.view.PageSize)
}

// Mount issues the first load.
func (g *Grid) Mount() Fetch {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issueLocked()
}

// Reload issues a load of the current view state.
func (g *Grid) Reload() Fetch {
	return g.Mount()
}

func (g *Grid) issueLocked() Fetch {
	g.seq++
	g.state = Loading
	g.err = nil
	return Fetch{Seq: g.seq, Query: g.view.Query()}
}

func (g *Grid) setViewLocked(v ViewState) (Fetch, bool) {
	if v == g.view {
		return Fetch{}, false
	}
	g.view = v
	return g.issueLocked(), true
}

// SetFilter updates the filter text. Every change issues a load.
func (g *Grid) SetFilter(text string) (Fetch, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setViewLocked(g.view.WithFilter(text))
}

// ToggleSort cycles the sort on column key.
func (g *Grid) ToggleSort(key string) (Fetch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.columnLocked(key); !ok {
		return Fetch{}, fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	g.view = g.view.ToggleSort(key)
	return g.issueLocked(), nil
}

// SetPageSize changes the page size and returns to page 1.
func (g *Grid) SetPageSize(size int) (Fetch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, err := g.view.WithPageSize(size)
	if err != nil {
		return Fetch{}, err
	}
	g.view = v
	return g.issueLocked(), nil
}

// CyclePageSize moves to the next of core.PageSizes.
func (g *Grid) CyclePageSize() Fetch {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, _ := g.view.WithPageSize(g.view.NextPageSize())
	g.view = v
	return g.issueLocked()
}

// SetPage moves to page n, clamped to [1, TotalPages]. It reports false
// when the page does not change.
func (g *Grid) SetPage(n int) (Fetch, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n = min(max(n, 1), TotalPages(g.total, g.view.PageSize))
	v := g.view
	v.Page = n
	return g.setViewLocked(v)
}

// FirstPage moves to page 1.
func (g *Grid) FirstPage() (Fetch, bool) { return g.SetPage(1) }

// LastPage moves to the last page.
func (g *Grid) LastPage() (Fetch, bool) { return g.SetPage(g.TotalPages()) }

// PrevPage moves back one page.
func (g *Grid) PrevPage() (Fetch, bool) { return g.SetPage(g.ViewState().Page - 1) }

// NextPage moves forward one page.
func (g *Grid) NextPage() (Fetch, bool) { return g.SetPage(g.ViewState().Page + 1) }

// Load runs f against the data source. It does not change the grid.
func (g *Grid) Load(ctx context.Context, f Fetch) FetchResult {
	page, err := g.source.FetchPage(ctx, f.Query)
	return FetchResult{Seq: f.Seq, Page: page, Err: err}
}

// Apply installs r if it answers the latest issued Fetch and reports whether
// it did. A failed load keeps the last-known rows.
func (g *Grid) Apply(r FetchResult) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r.Seq != g.seq {
		g.logger.Debug("discarding stale page",
			zap.Uint64("seq", r.Seq),
			zap.Uint64("latest", g.seq),
		)
		return false
	}

	if r.Err != nil {
		g.state = Failed
		g.err = r.Err
		g.logger.Warn("failed to load page", zap.Uint64("seq", r.Seq), zap.Error(r.Err))
		return true
	}

	g.state = Loaded
	g.err = nil
	g.rows = r.Page.Rows
	if g.rows == nil {
		g.rows = []core.Record{}
	}
	g.total = r.Page.Total

	// Row indexes refer to the previous page.
	if g.edit != nil && !g.edit.Saving {
		g.edit = nil
	}
	return true
}

// Refresh issues, loads and applies the current view state in one call.
func (g *Grid) Refresh(ctx context.Context) error {
	f := g.Reload()
	r := g.Load(ctx, f)
	g.Apply(r)
	return r.Err
}

func (g *Grid) columnLocked(key string) (Column, bool) {
	for _, c := range g.columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// BeginEdit opens an editor on row index and column key, seeded with the
// cell's current value.
func (g *Grid) BeginEdit(index int, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	col, ok := g.columnLocked(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	if !col.Editable {
		return ErrNotEditable
	}
	if g.edit != nil {
		return ErrEditActive
	}
	if index < 0 || index >= len(g.rows) {
		return ErrNoRow
	}
	row := g.rows[index]
	id, ok := row.ID()
	if !ok {
		return ErrNoRow
	}

	g.editSeq++
	g.edit = &EditSession{
		RowIndex: index,
		RowID:    id,
		Key:      key,
		Draft:    core.FormatValue(row[key]),
		id:       g.editSeq,
	}
	return nil
}

// Edit returns the open edit session.
func (g *Grid) Edit() (EditSession, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.edit == nil {
		return EditSession{}, false
	}
	return *g.edit, true
}

// SetDraft replaces the editor's text.
func (g *Grid) SetDraft(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.edit == nil {
		return ErrNoEditSession
	}
	if g.edit.Saving {
		return ErrSaving
	}
	g.edit.Draft = text
	return nil
}

// Cancel discards the open edit without writing.
func (g *Grid) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edit = nil
}

// BeginCommit marks the edit as saving and returns its write ticket. The
// draft is converted to the column's type first; when that fails the edit
// stays open with a validation error and nothing is written.
func (g *Grid) BeginCommit() (Write, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.edit == nil {
		return Write{}, ErrNoEditSession
	}
	if g.edit.Saving {
		return Write{}, ErrSaving
	}

	var value any = g.edit.Draft
	if col, ok := g.columnLocked(g.edit.Key); ok && col.Type != "" {
		v, err := schema.NewTypeMapper().Coerce(g.edit.Draft, col.Type)
		if err != nil {
			g.edit.Err = errs.Validation("Invalid "+g.edit.Key,
				errs.WithField(g.edit.Key), errs.WithCause(err))
			return Write{}, g.edit.Err
		}
		value = v
	}

	var row core.Record
	if i := g.indexOfLocked(g.edit.RowID); i >= 0 {
		row = g.rows[i].Clone()
	} else {
		row = core.Record{}
	}
	row[core.IDField] = g.edit.RowID

	g.edit.Saving = true
	g.edit.Err = nil
	return Write{
		Session: g.edit.id,
		Row:     row,
		RowID:   g.edit.RowID,
		Key:     g.edit.Key,
		Value:   value,
	}, nil
}

// Execute sends w to the data source. It does not change the grid.
func (g *Grid) Execute(ctx context.Context, w Write) WriteResult {
	return WriteResult{Write: w, Err: g.source.WriteCell(ctx, w.Row, w.Key, w.Value)}
}

// FinishCommit applies a write outcome. On success the row is patched in
// place and the edit closes; on failure the edit stays open with its draft
// and the error.
func (g *Grid) FinishCommit(r WriteResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	open := g.edit != nil && g.edit.id == r.Session

	if r.Err != nil {
		g.logger.Warn("failed to write cell",
			zap.Int64("id", r.RowID),
			zap.String("key", r.Key),
			zap.Error(r.Err),
		)
		if open {
			g.edit.Saving = false
			g.edit.Err = r.Err
		}
		return r.Err
	}

	if i := g.indexOfLocked(r.RowID); i >= 0 {
		patched := g.rows[i].Clone()
		patched[r.Key] = r.Value
		g.rows[i] = patched
	}
	if open {
		g.edit = nil
	}
	return nil
}

// Commit writes the open edit and waits for the outcome.
func (g *Grid) Commit(ctx context.Context) error {
	w, err := g.BeginCommit()
	if err != nil {
		return err
	}
	return g.FinishCommit(g.Execute(ctx, w))
}

func (g *Grid) indexOfLocked(id int64) int {
	return slices.IndexFunc(g.rows, func(r core.Record) bool {
		rid, ok := r.ID()
		return ok && rid == id
	})
}

// Width returns the current width of column key.
func (g *Grid) Width(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.widths[key]
}

// SetWidth sets the width of column key, never below resize.MinWidth.
func (g *Grid) SetWidth(key string, width int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.widths[key]; !ok {
		return
	}
	g.widths[key] = max(resize.MinWidth, width)
}

// BeginResize starts a drag on the right edge of column key at pointer x.
func (g *Grid) BeginResize(key string, x int) (release func(), err error) {
	g.mu.Lock()
	width, ok := g.widths[key]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	return g.tracker.Begin(key, x, width)
}

// Pointer forwards a pointer event to the live resize gesture, if any.
func (g *Grid) Pointer(ev resize.PointerEvent) {
	g.bus.Publish(ev)
}

// Resizing reports whether a resize gesture is live.
func (g *Grid) Resizing() bool {
	_, ok := g.tracker.Active()
	return ok
}

// Close tears the grid down, releasing any live resize gesture.
func (g *Grid) Close() {
	g.tracker.Close()
}
