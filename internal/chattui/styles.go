package chattui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = lipgloss.Color("39")
	colorMuted  = lipgloss.Color("245")
	colorError  = lipgloss.Color("203")
	colorOwn    = lipgloss.Color("111")
	colorOther  = lipgloss.Color("252")
	colorBadge  = lipgloss.Color("196")
)

// Styles holds the lipgloss styles used by the chat screens.
type Styles struct {
	Header    lipgloss.Style
	Subtitle  lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Own       lipgloss.Style
	Other     lipgloss.Style
	Selected  lipgloss.Style
	Badge     lipgloss.Style
	Footer    lipgloss.Style
	InputLine lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Subtitle:  lipgloss.NewStyle().Foreground(colorMuted),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
		Error:     lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Own:       lipgloss.NewStyle().Foreground(colorOwn),
		Other:     lipgloss.NewStyle().Foreground(colorOther),
		Selected:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Badge:     lipgloss.NewStyle().Bold(true).Foreground(colorBadge),
		Footer:    lipgloss.NewStyle().Foreground(colorMuted),
		InputLine: lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(colorMuted),
	}
}
