package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/roster"
)

var statusColors = map[string]lipgloss.Color{
	"green":  lipgloss.Color("#22C55E"),
	"red":    lipgloss.Color("#EF4444"),
	"yellow": lipgloss.Color("#EAB308"),
	"blue":   lipgloss.Color("#3B82F6"),
	"gray":   lipgloss.Color("#6B7280"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9FAFB"))
	clockStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D1D5DB"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	nameStyle  = lipgloss.NewStyle().Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 1).
			Width(cardWidth)
	selfCardStyle = cardStyle.BorderForeground(lipgloss.Color("#A78BFA"))
)

// cardWidth is the inner width of a member card.
const cardWidth = 30

// statusDot renders the colored indicator for a status.
func statusDot(s models.Status) string {
	return lipgloss.NewStyle().Foreground(statusColors[roster.StatusColor(s)]).Render("●")
}

// statusLabel is the human label of a status.
func statusLabel(s models.Status) string {
	switch s {
	case models.StatusAvailable:
		return "Available"
	case models.StatusBusy:
		return "Busy"
	case models.StatusMeeting:
		return "In a meeting"
	case models.StatusBreak:
		return "On a break"
	case models.StatusAway:
		return "Away"
	}
	return "Unknown"
}
