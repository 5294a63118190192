package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/grid"
	"github.com/rzpsarthak13/gridconsole/internal/store"
)

func newModel(t *testing.T) (Model, *grid.Grid, *store.RecordStore) {
	t.Helper()
	s, err := store.NewSeeded(store.DefaultSeedSize)
	require.NoError(t, err)
	g := grid.New(s)
	t.Cleanup(g.Close)

	m := New(g, WithContext(context.Background()))
	m.filter.Cursor.SetMode(cursor.CursorStatic)
	m.editor.Cursor.SetMode(cursor.CursorStatic)
	m = settle(t, m, m.Init())
	return m, g, s
}

// settle runs cmd and feeds page loads and cell writes back into the model
// until nothing is left to do.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for cmd != nil {
		switch msg := cmd().(type) {
		case tea.BatchMsg:
			for _, c := range msg {
				m = settle(t, m, c)
			}
			return m
		case pageLoadedMsg, cellWrittenMsg:
			next, c := m.Update(msg)
			m, cmd = next.(Model), c
		default:
			return m
		}
	}
	return m
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	return settle(t, next.(Model), cmd)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m = send(t, m, runes(string(r)))
	}
	return m
}

func clearEditor(t *testing.T, m Model) Model {
	t.Helper()
	for range len(m.editor.Value()) {
		m = send(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	return m
}

func TestInitLoadsFirstPage(t *testing.T) {
	m, g, _ := newModel(t)

	assert.Equal(t, grid.Loaded, g.State())
	assert.Len(t, g.Rows(), 20)

	view := m.View()
	assert.Contains(t, view, "Page 1 of 13 • 250 rows")
	assert.Contains(t, view, "User 1")
	assert.Contains(t, view, "Created At")
}

func TestSortAndPageKeys(t *testing.T) {
	m, g, _ := newModel(t)

	m = send(t, m, runes("s"))
	m = send(t, m, runes("s"))
	v := g.ViewState()
	assert.Equal(t, "id", v.SortKey)
	assert.Equal(t, core.SortDesc, v.SortDir)
	assert.EqualValues(t, 250, g.Rows()[0]["id"])
	assert.Contains(t, m.View(), "ID ▼")

	m = send(t, m, runes("]"))
	assert.Equal(t, 2, g.ViewState().Page)
	m = send(t, m, runes("}"))
	assert.Equal(t, 13, g.ViewState().Page)
	m = send(t, m, runes("["))
	assert.Equal(t, 12, g.ViewState().Page)
	m = send(t, m, runes("{"))
	assert.Equal(t, 1, g.ViewState().Page)

	m = send(t, m, runes("}"))
	m = send(t, m, runes("p"))
	assert.Equal(t, 50, g.ViewState().PageSize)
	assert.Equal(t, 1, g.ViewState().Page)
	assert.Contains(t, m.View(), "50 per page")
}

func TestFilterUpdatesOnEveryKeystroke(t *testing.T) {
	m, g, _ := newModel(t)

	m = send(t, m, runes("/"))
	assert.Equal(t, modeFilter, m.mode)

	m = typeText(t, m, "invited")
	assert.Equal(t, "invited", g.ViewState().FilterText)
	assert.Equal(t, 84, g.Total())

	// "q" is text while filtering.
	m = send(t, m, runes("q"))
	assert.False(t, m.quitting)
	assert.Equal(t, "invitedq", g.ViewState().FilterText)
	assert.Contains(t, m.View(), "No data")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeBrowse, m.mode)
}

func TestEditCommit(t *testing.T) {
	m, g, s := newModel(t)

	for range 3 {
		m = send(t, m, tea.KeyMsg{Type: tea.KeyRight})
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "editor", m.editor.Value())

	m = clearEditor(t, m)
	m = typeText(t, m, "viewer")
	e, ok := g.Edit()
	require.True(t, ok)
	assert.Equal(t, "viewer", e.Draft)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, "Saved", m.status)
	assert.Equal(t, "viewer", g.Rows()[0]["role"])

	stored, _ := s.Get(1)
	assert.Equal(t, "viewer", stored["role"])
}

func TestEditFailureStaysOpen(t *testing.T) {
	m, g, _ := newModel(t)

	for range 3 {
		m = send(t, m, tea.KeyMsg{Type: tea.KeyRight})
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = clearEditor(t, m)
	m = typeText(t, m, "superadmin")
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, modeEdit, m.mode)
	assert.Contains(t, m.View(), "Error: Invalid role")
	e, ok := g.Edit()
	require.True(t, ok)
	assert.Equal(t, "superadmin", e.Draft)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, "editor", g.Rows()[0]["role"])
}

func TestTabCommitsAndMoves(t *testing.T) {
	m, g, s := newModel(t)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(t, m, "!")
	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})

	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, 2, m.cursorCol)
	assert.Equal(t, "User 1!", g.Rows()[0]["name"])
	stored, _ := s.Get(1)
	assert.Equal(t, "User 1!", stored["name"])
}

func TestReadOnlyColumn(t *testing.T) {
	m, _, _ := newModel(t)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, "ID is read-only", m.status)
}

func press(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
}

func TestHeaderClickSorts(t *testing.T) {
	m, g, _ := newModel(t)

	// The name column starts after ID (9 cells) and its border.
	m = send(t, m, press(12, bodyTop-1))
	v := g.ViewState()
	assert.Equal(t, "name", v.SortKey)
	assert.Equal(t, core.SortAsc, v.SortDir)
	assert.Equal(t, 0, m.cursorRow)
}

func TestHeaderBorderDragResizes(t *testing.T) {
	m, g, _ := newModel(t)

	m = send(t, m, press(9, bodyTop-1))
	require.True(t, g.Resizing())
	assert.Empty(t, g.ViewState().SortKey)

	m = send(t, m, tea.MouseMsg{X: 14, Y: 5, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	assert.Equal(t, 140, g.Width("id"))
	m = send(t, m, tea.MouseMsg{X: 0, Y: 5, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	assert.Equal(t, 80, g.Width("id"))

	m = send(t, m, tea.MouseMsg{X: 0, Y: 5, Action: tea.MouseActionRelease})
	assert.False(t, g.Resizing())

	_ = send(t, m, tea.MouseMsg{X: 30, Y: 5, Action: tea.MouseActionMotion})
	assert.Equal(t, 80, g.Width("id"))
}

func TestDoubleClickOpensEditor(t *testing.T) {
	m, g, _ := newModel(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m = send(t, m, press(12, bodyTop+1))
	assert.Equal(t, 1, m.cursorRow)
	assert.Equal(t, 1, m.cursorCol)
	assert.Equal(t, modeBrowse, m.mode)

	now = now.Add(100 * time.Millisecond)
	m = send(t, m, press(12, bodyTop+1))
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "User 2", m.editor.Value())

	// Clicking elsewhere commits the open edit.
	m = typeText(t, m, "x")
	now = now.Add(time.Second)
	m = send(t, m, press(12, bodyTop+4))
	assert.Equal(t, modeBrowse, m.mode)
	assert.Equal(t, "User 2x", g.Rows()[1]["name"])
	assert.Equal(t, 4, m.cursorRow)
}

func TestQuitReleasesResize(t *testing.T) {
	m, g, _ := newModel(t)
	m = send(t, m, press(9, bodyTop-1))
	require.True(t, g.Resizing())

	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, next.(Model).quitting)
	assert.False(t, g.Resizing())
	assert.Empty(t, next.View())
}

func TestFit(t *testing.T) {
	assert.Equal(t, "abc  ", fit("abc", 5))
	assert.Equal(t, "abcd…", fit("abcdefgh", 5))
	assert.Equal(t, "", fit("abc", 0))
	assert.Len(t, []rune(fit("x", 3)), 3)
	assert.False(t, strings.Contains(fit("abc", 3), "…"))
}
