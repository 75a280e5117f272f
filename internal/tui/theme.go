package tui

import "charm.land/lipgloss/v2"

// Color palette
var (
	Primary   = lipgloss.Color("#2563EB") // Blue
	Secondary = lipgloss.Color("#0D9488") // Teal
	Success   = lipgloss.Color("#16A34A") // Green
	Warning   = lipgloss.Color("#D97706") // Amber
	Danger    = lipgloss.Color("#DC2626") // Red
	Text      = lipgloss.Color("#F8FAFC")
	TextDim   = lipgloss.Color("#94A3B8")
	Border    = lipgloss.Color("#334155")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(TextDim)

	bodyStyle = lipgloss.NewStyle().
			Foreground(Text)

	hintStyle = lipgloss.NewStyle().
			Foreground(TextDim).
			Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(Danger)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1)

	progressFilled = lipgloss.NewStyle().Foreground(Secondary)
	progressEmpty  = lipgloss.NewStyle().Foreground(Border)
)

// answerStyle colors an answer token by how far it is from fully implemented
func answerStyle(fully, partially bool) lipgloss.Style {
	switch {
	case fully:
		return lipgloss.NewStyle().Foreground(Success).Bold(true)
	case partially:
		return lipgloss.NewStyle().Foreground(Warning).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Danger)
	}
}
