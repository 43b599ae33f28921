package cmd

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	errorColor   = lipgloss.Color("#F87171") // Red

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	indexStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)
)
