package terminal

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#8BC34A")
	muted   = lipgloss.Color("#6B7280")
	warning = lipgloss.Color("#FFC107")
	danger  = lipgloss.Color("#E53935")
)

// Styles groups the lipgloss styles the screens are drawn with.
type Styles struct {
	Title    lipgloss.Style
	Text     lipgloss.Style
	Help     lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Field    lipgloss.Style
	Stimulus lipgloss.Style
	Good     lipgloss.Style
	Fair     lipgloss.Style
	Poor     lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		Text:     lipgloss.NewStyle(),
		Help:     lipgloss.NewStyle().Foreground(muted).MarginTop(1),
		Error:    lipgloss.NewStyle().Foreground(danger).Bold(true),
		Warning:  lipgloss.NewStyle().Foreground(warning),
		Field:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted),
		Stimulus: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")),
		Good:     lipgloss.NewStyle().Foreground(accent),
		Fair:     lipgloss.NewStyle().Foreground(warning),
		Poor:     lipgloss.NewStyle().Foreground(danger),
	}
}
