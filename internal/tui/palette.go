package tui

import (
	"github.com/charmbracelet/lipgloss"

	"morph/internal/queue"
)

var (
	ColorInk       = lipgloss.Color("#E5E9F0")
	ColorDim       = lipgloss.Color("#7A8291")
	ColorAccent    = lipgloss.Color("#88C0D0")
	ColorAccentAlt = lipgloss.Color("#81A1C1")
	ColorSuccess   = lipgloss.Color("#A3BE8C")
	ColorWarn      = lipgloss.Color("#EBCB8B")
	ColorError     = lipgloss.Color("#BF616A")
)

// StatusColor is the colour an item status is drawn in.
func StatusColor(s queue.Status) lipgloss.Color {
	switch s {
	case queue.StatusInProgress:
		return ColorWarn
	case queue.StatusCompleted:
		return ColorSuccess
	case queue.StatusFailed:
		return ColorError
	default:
		return ColorDim
	}
}
