package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#8BC34A")
	muted  = lipgloss.Color("#6B7280")
	danger = lipgloss.Color("#EF4444")
	bgHigh = lipgloss.Color("#1F2937")
)

type styles struct {
	Title      lipgloss.Style
	Header     lipgloss.Style
	SortedHead lipgloss.Style
	Border     lipgloss.Style
	Cell       lipgloss.Style
	Cursor     lipgloss.Style
	Editing    lipgloss.Style
	Skeleton   lipgloss.Style
	Message    lipgloss.Style
	Error      lipgloss.Style
	Footer     lipgloss.Style
	Disabled   lipgloss.Style
	Enabled    lipgloss.Style
	Help       lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(accent),
		Header:     lipgloss.NewStyle().Bold(true),
		SortedHead: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Border:     lipgloss.NewStyle().Foreground(muted),
		Cell:       lipgloss.NewStyle(),
		Cursor:     lipgloss.NewStyle().Background(bgHigh).Bold(true),
		Editing:    lipgloss.NewStyle().Underline(true).Foreground(accent),
		Skeleton:   lipgloss.NewStyle().Foreground(muted),
		Message:    lipgloss.NewStyle().Italic(true).Foreground(muted),
		Error:      lipgloss.NewStyle().Foreground(danger),
		Footer:     lipgloss.NewStyle().Foreground(muted),
		Disabled:   lipgloss.NewStyle().Foreground(muted).Faint(true),
		Enabled:    lipgloss.NewStyle().Foreground(accent),
		Help:       lipgloss.NewStyle().Foreground(muted),
	}
}
