package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/trellison/waggle/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFC857")).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Strikethrough(true)

	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// statusGlyph returns the one-character marker for a task status.
func statusGlyph(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusRunning:
		return "▸"
	case models.TaskStatusCompleted:
		return "✓"
	case models.TaskStatusFailed:
		return "✗"
	case models.TaskStatusSkipped:
		return "−"
	default:
		return "·"
	}
}

// statusStyle returns the lipgloss style for a task status.
func statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.TaskStatusRunning:
		return runningStyle
	case models.TaskStatusCompleted:
		return completedStyle
	case models.TaskStatusFailed:
		return failedStyle
	case models.TaskStatusSkipped:
		return skippedStyle
	default:
		return pendingStyle
	}
}
