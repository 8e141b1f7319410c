// Package tui renders a monitoring session in the terminal.
//
// Two Bubble Tea views are available: a static table with one row per CAN
// ID, and a scrolling log of accepted frames. [RunPlain] prints the same
// log without taking over the screen.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for the header line.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// HeaderStyle for table column names.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(mutedColor)

	// HighlightStyle for rows whose ID is in the highlight set.
	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(highlightColor)

	// StatusStyle for the counters line.
	StatusStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for the end-of-stream notice.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for fatal errors.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)
