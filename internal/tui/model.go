// Package tui is the terminal front end of the data grid. It draws a
// grid.Grid with lipgloss and turns keys and mouse events into grid
// operations; page loads and cell writes run as bubbletea commands.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/grid"
	"github.com/rzpsarthak13/gridconsole/internal/resize"
)

// pxPerCell converts between terminal cells and grid widths.
const pxPerCell = 10

const doubleClickWindow = 400 * time.Millisecond

// Screen rows above the first body row: title, filter, header.
const bodyTop = 3

// Screen rows below the body: edit error, footer, help.
const chromeBottom = 3

type mode int

const (
	modeBrowse mode = iota
	modeFilter
	modeEdit
)

type pageLoadedMsg grid.FetchResult

type cellWrittenMsg grid.WriteResult

type click struct {
	at       time.Time
	row, col int
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context for page loads and writes.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithLogger sets the logger. The terminal is owned by the UI, so this
// should write to a file or be a no-op.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTitle sets the title line.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// Model is the bubbletea model of the grid screen.
type Model struct {
	grid   *grid.Grid
	ctx    context.Context
	logger *zap.Logger
	styles styles
	title  string
	now    func() time.Time

	mode   mode
	filter textinput.Model
	editor textinput.Model

	cursorRow int
	cursorCol int
	offset    int
	width     int
	height    int

	status    string
	lastClick click
	quitting  bool
}

// New creates the model for g.
func New(g *grid.Grid, opts ...Option) Model {
	filter := textinput.New()
	filter.Placeholder = "type to filter..."
	filter.Prompt = "/ "
	filter.CharLimit = 100
	filter.Width = 40

	editor := textinput.New()
	editor.Prompt = ""
	editor.CharLimit = 256

	m := Model{
		grid:   g,
		ctx:    context.Background(),
		logger: zap.NewNop(),
		styles: defaultStyles(),
		title:  "Data Explorer",
		now:    time.Now,
		filter: filter,
		editor: editor,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Run shows g full screen until the user quits or ctx is done. The grid is
// closed on return.
func Run(ctx context.Context, g *grid.Grid, opts ...Option) error {
	defer g.Close()

	m := New(g, append(opts, WithContext(ctx))...)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return m.load(m.grid.Mount())
}

func (m Model) load(f grid.Fetch) tea.Cmd {
	g, ctx := m.grid, m.ctx
	return func() tea.Msg {
		return pageLoadedMsg(g.Load(ctx, f))
	}
}

func (m Model) loadIf(f grid.Fetch, ok bool) tea.Cmd {
	if !ok {
		return nil
	}
	return m.load(f)
}

// commit starts writing the open edit. It returns nil when nothing is open
// or a write is already in flight.
func (m *Model) commit() tea.Cmd {
	w, err := m.grid.BeginCommit()
	if err != nil {
		return nil
	}
	g, ctx := m.grid, m.ctx
	return func() tea.Msg {
		return cellWrittenMsg(g.Execute(ctx, w))
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureVisible()
		return m, nil

	case pageLoadedMsg:
		if m.grid.Apply(grid.FetchResult(msg)) {
			m.clampCursor()
			m.syncMode()
		}
		return m, nil

	case cellWrittenMsg:
		if err := m.grid.FinishCommit(grid.WriteResult(msg)); err != nil {
			m.status = err.Error()
		} else {
			m.status = "Saved"
		}
		m.syncMode()
		return m, nil

	case tea.MouseMsg:
		return m.updateMouse(msg)

	case tea.KeyMsg:
		if key.Matches(msg, keys.ForceQuit) {
			return m.quit()
		}
		switch m.mode {
		case modeFilter:
			return m.updateFilter(msg)
		case modeEdit:
			return m.updateEdit(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.grid.Close()
	return m, tea.Quit
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()

	case key.Matches(msg, keys.Up):
		if m.cursorRow > 0 {
			m.cursorRow--
			m.ensureVisible()
		}

	case key.Matches(msg, keys.Down):
		if m.cursorRow < len(m.grid.Rows())-1 {
			m.cursorRow++
			m.ensureVisible()
		}

	case key.Matches(msg, keys.Left):
		if m.cursorCol > 0 {
			m.cursorCol--
		}

	case key.Matches(msg, keys.Right):
		if m.cursorCol < len(m.grid.Columns())-1 {
			m.cursorCol++
		}

	case key.Matches(msg, keys.Edit):
		m.beginEdit()

	case key.Matches(msg, keys.Filter):
		m.mode = modeFilter
		return m, m.filter.Focus()

	case key.Matches(msg, keys.Sort):
		col := m.grid.Columns()[m.cursorCol]
		f, err := m.grid.ToggleSort(col.Key)
		if err != nil {
			return m, nil
		}
		m.cursorRow, m.offset = 0, 0
		return m, m.load(f)

	case key.Matches(msg, keys.PrevPage):
		return m.page(m.grid.PrevPage())

	case key.Matches(msg, keys.NextPage):
		return m.page(m.grid.NextPage())

	case key.Matches(msg, keys.FirstPage):
		return m.page(m.grid.FirstPage())

	case key.Matches(msg, keys.LastPage):
		return m.page(m.grid.LastPage())

	case key.Matches(msg, keys.PageSize):
		return m.page(m.grid.CyclePageSize(), true)

	case key.Matches(msg, keys.Reload):
		return m, m.load(m.grid.Reload())
	}
	return m, nil
}

func (m Model) page(f grid.Fetch, ok bool) (tea.Model, tea.Cmd) {
	if ok {
		m.cursorRow, m.offset = 0, 0
	}
	return m, m.loadIf(f, ok)
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc, tea.KeyTab:
		m.mode = modeBrowse
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	f, ok := m.grid.SetFilter(m.filter.Value())
	if ok {
		m.cursorRow, m.offset = 0, 0
	}
	return m, tea.Batch(cmd, m.loadIf(f, ok))
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.grid.Cancel()
		m.syncMode()
		return m, nil

	case key.Matches(msg, keys.Commit):
		return m, m.commit()

	case key.Matches(msg, keys.Blur):
		cmd := m.commit()
		if msg.Type == tea.KeyShiftTab {
			m.cursorCol = max(0, m.cursorCol-1)
		} else {
			m.cursorCol = min(len(m.grid.Columns())-1, m.cursorCol+1)
		}
		return m, cmd
	}

	if e, ok := m.grid.Edit(); ok && e.Saving {
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if err := m.grid.SetDraft(m.editor.Value()); err != nil {
		m.logger.Debug("draft not updated", zap.Error(err))
	}
	return m, cmd
}

func (m *Model) beginEdit() {
	col := m.grid.Columns()[m.cursorCol]
	if err := m.grid.BeginEdit(m.cursorRow, col.Key); err != nil {
		if errors.Is(err, grid.ErrNotEditable) {
			m.status = col.Header + " is read-only"
		}
		return
	}
	e, _ := m.grid.Edit()
	m.editor.SetValue(e.Draft)
	m.editor.CursorEnd()
	m.editor.Focus()
	m.mode = modeEdit
}

// syncMode leaves edit mode once the grid has no open edit.
func (m *Model) syncMode() {
	if m.mode != modeEdit {
		return
	}
	if _, ok := m.grid.Edit(); !ok {
		m.mode = modeBrowse
		m.editor.Blur()
	}
}

func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Action {
	case tea.MouseActionMotion:
		if m.grid.Resizing() {
			m.grid.Pointer(resize.PointerEvent{Kind: resize.PointerMove, X: msg.X * pxPerCell})
		}
		return m, nil

	case tea.MouseActionRelease:
		if m.grid.Resizing() {
			m.grid.Pointer(resize.PointerEvent{Kind: resize.PointerUp, X: msg.X * pxPerCell})
		}
		return m, nil
	}

	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	col, border, ok := m.hitColumn(msg.X)
	if !ok {
		return m, m.blur()
	}
	cols := m.grid.Columns()

	if msg.Y == bodyTop-1 {
		cmd := m.blur()
		if border {
			if _, err := m.grid.BeginResize(cols[col].Key, msg.X*pxPerCell); err != nil {
				m.logger.Debug("resize not started", zap.Error(err))
			}
			return m, cmd
		}
		f, err := m.grid.ToggleSort(cols[col].Key)
		if err != nil {
			return m, cmd
		}
		m.cursorRow, m.offset = 0, 0
		return m, tea.Batch(cmd, m.load(f))
	}

	row := msg.Y - bodyTop + m.offset
	if msg.Y < bodyTop || row >= len(m.grid.Rows()) {
		return m, m.blur()
	}

	if m.mode == modeEdit && row == m.cursorRow && col == m.cursorCol {
		return m, nil
	}
	cmd := m.blur()
	now := m.now()
	double := m.lastClick.row == row && m.lastClick.col == col &&
		now.Sub(m.lastClick.at) <= doubleClickWindow
	m.lastClick = click{at: now, row: row, col: col}
	m.cursorRow, m.cursorCol = row, col

	if double && cmd == nil {
		m.beginEdit()
	}
	return m, cmd
}

// blur leaves the filter or commits the open edit.
func (m *Model) blur() tea.Cmd {
	switch m.mode {
	case modeFilter:
		m.mode = modeBrowse
		m.filter.Blur()
	case modeEdit:
		return m.commit()
	}
	return nil
}

// hitColumn maps screen column x to a grid column. border is true on the
// column's right edge.
func (m Model) hitColumn(x int) (index int, border bool, ok bool) {
	left := 0
	for i, c := range m.grid.Columns() {
		w := cells(c.Width)
		if x >= left && x < left+w {
			return i, x == left+w-1, true
		}
		if x == left+w {
			return i, true, true
		}
		left += w + 1
	}
	return 0, false, false
}

func cells(px int) int {
	return max(1, px/pxPerCell)
}

func (m *Model) clampCursor() {
	rows := len(m.grid.Rows())
	m.cursorRow = min(m.cursorRow, max(0, rows-1))
	m.ensureVisible()
}

func (m Model) visibleRows() int {
	if m.height <= 0 {
		return len(m.grid.Rows())
	}
	return max(1, m.height-bodyTop-chromeBottom)
}

func (m *Model) ensureVisible() {
	n := m.visibleRows()
	if m.cursorRow < m.offset {
		m.offset = m.cursorRow
	}
	if m.cursorRow >= m.offset+n {
		m.offset = m.cursorRow - n + 1
	}
}
