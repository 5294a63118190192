package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rzpsarthak13/gridconsole/internal/grid"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	r := m.grid.Render()

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	if r.Loading {
		b.WriteString(m.styles.Message.Render("  loading..."))
	}
	b.WriteByte('\n')
	b.WriteString(m.filter.View())
	b.WriteByte('\n')
	b.WriteString(m.renderHeader(r.Headers))
	b.WriteByte('\n')

	switch r.Body {
	case grid.BodySkeleton:
		for range grid.SkeletonRows {
			b.WriteString(m.renderSkeleton(r.Headers))
			b.WriteByte('\n')
		}
	case grid.BodyError:
		b.WriteString(m.styles.Error.Render(r.Message))
		b.WriteByte('\n')
	case grid.BodyEmpty:
		b.WriteString(m.styles.Message.Render(r.Message))
		b.WriteByte('\n')
	default:
		end := min(len(r.Rows), m.offset+m.visibleRows())
		for _, row := range r.Rows[min(m.offset, end):end] {
			b.WriteString(m.renderRow(row))
			b.WriteByte('\n')
		}
	}

	if r.Edit != nil && r.Edit.Err != nil {
		b.WriteString(m.styles.Error.Render("Error: " + r.Edit.Err.Error()))
	} else if m.status != "" {
		b.WriteString(m.styles.Message.Render(m.status))
	}
	b.WriteByte('\n')
	b.WriteString(m.renderFooter(r.Footer))
	b.WriteByte('\n')
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader(headers []grid.HeaderCell) string {
	parts := make([]string, 0, len(headers)*2)
	for _, h := range headers {
		label := h.Label
		if ind := h.Indicator(); ind != "" {
			label += " " + ind
		}
		style := m.styles.Header
		if h.Sort != "" {
			style = m.styles.SortedHead
		}
		parts = append(parts, style.Render(fit(label, cells(h.Width))), m.styles.Border.Render("│"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderSkeleton(headers []grid.HeaderCell) string {
	parts := make([]string, 0, len(headers)*2)
	for _, h := range headers {
		w := cells(h.Width)
		parts = append(parts, m.styles.Skeleton.Render(strings.Repeat("░", max(1, w-2))+"  "), m.styles.Border.Render("│"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderRow(row grid.RenderRow) string {
	parts := make([]string, 0, len(row.Cells)*2)
	for j, c := range row.Cells {
		w := cells(c.Width)
		style := m.styles.Cell
		text := fit(c.Text, w)
		switch {
		case c.Editing && m.mode == modeEdit && row.Index == m.cursorRow:
			style = m.styles.Editing
			text = fit(m.editor.Value(), w)
		case c.Editing:
			style = m.styles.Editing
		case row.Index == m.cursorRow && j == m.cursorCol:
			style = m.styles.Cursor
		}
		parts = append(parts, style.Render(text), m.styles.Border.Render("│"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderFooter(f grid.Footer) string {
	button := func(label string, enabled bool) string {
		if enabled {
			return m.styles.Enabled.Render(label)
		}
		return m.styles.Disabled.Render(label)
	}
	return strings.Join([]string{
		button("« first", f.CanFirst),
		button("‹ prev", f.CanPrev),
		m.styles.Footer.Render(f.Summary()),
		button("next ›", f.CanNext),
		button("last »", f.CanLast),
		m.styles.Footer.Render(fmt.Sprintf("%d per page", f.PageSize)),
	}, "  ")
}

func (m Model) renderHelp() string {
	bindings := keys.browseHelp()
	if m.mode == modeEdit {
		bindings = keys.editHelp()
	}
	parts := make([]string, 0, len(bindings))
	for _, k := range bindings {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.styles.Help.Render(strings.Join(parts, " • "))
}

// fit truncates or pads s to exactly w terminal cells.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if lipgloss.Width(s) > w {
		rs := []rune(s)
		for len(rs) > 0 && lipgloss.Width(string(rs))+1 > w {
			rs = rs[:len(rs)-1]
		}
		s = string(rs) + "…"
	}
	return s + strings.Repeat(" ", max(0, w-lipgloss.Width(s)))
}
