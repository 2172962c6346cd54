package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// renderLoadingPlaceholder renders a loading indicator. The frame follows
// the wall clock so it advances on every re-render.
func renderLoadingPlaceholder(width, height int) string {
	frame := spinnerFrames[time.Now().UnixMilli()/120%int64(len(spinnerFrames))]
	text := lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true).
		Render(frame + " Carregando...")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, text)
}
