package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mwhitfield/loom/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFC857")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8E53"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)
)

var statusStyles = map[models.JobStatus]lipgloss.Style{
	models.JobStatusQueued:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	models.JobStatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1")),
	models.JobStatusPaused:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857")),
	models.JobStatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1")),
	models.JobStatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
	models.JobStatusCanceled:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
}

func renderStatus(status models.JobStatus) string {
	style, ok := statusStyles[status]
	if !ok {
		return string(status)
	}
	return style.Render(string(status))
}
