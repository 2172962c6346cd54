package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/onuwatch/internal/model"
	"github.com/tinytelemetry/onuwatch/internal/severity"
)

// Palette (ANSI 256).
var (
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("42")
	ColorOrange = lipgloss.Color("208")
	ColorRed    = lipgloss.Color("196")
	ColorGray   = lipgloss.Color("244")
	ColorWhite  = lipgloss.Color("255")
	ColorDim    = lipgloss.Color("238")
)

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	kpiValueStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	kpiLabelStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	headerRowStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true).
			Underline(true)

	cursorRowStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Bold(true)

	statusInfoStyle  = lipgloss.NewStyle().Foreground(ColorGreen)
	statusWarnStyle  = lipgloss.NewStyle().Foreground(ColorOrange)
	statusErrorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
)

func severityColor(level severity.Level) lipgloss.Color {
	switch level {
	case severity.Critical:
		return ColorRed
	case severity.Medium:
		return ColorOrange
	default:
		return ColorGreen
	}
}

func severityBadge(hours int) string {
	level := severity.FromHours(hours)
	return lipgloss.NewStyle().Foreground(severityColor(level)).Bold(true).Render(level.Label())
}

func jobStatusColor(status model.JobStatus) lipgloss.Color {
	switch status {
	case model.JobCompleted:
		return ColorGreen
	case model.JobFailed:
		return ColorRed
	case model.JobProcessing:
		return ColorBlue
	default:
		return ColorGray
	}
}
