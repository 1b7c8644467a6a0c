// Package tui renders the projection board.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/roster"
)

// -- messages --

type viewMsg roster.View

// -- model --

// Board is the bubbletea model of the projection board. It renders whatever the projector
// holds and redraws on every projector update.
type Board struct {
	proj   *roster.Projector
	view   roster.View
	self   uuid.UUID
	width  int
	height int
	done   chan struct{}
}

// NewBoard creates a board for a mounted projector. self highlights the viewer's own card.
func NewBoard(p *roster.Projector, self uuid.UUID) Board {
	return Board{proj: p, view: p.View(), self: self, width: 100, done: make(chan struct{})}
}

// Run shows the board until the user quits, then unmounts the projector.
func Run(p *roster.Projector, self uuid.UUID) error {
	b := NewBoard(p, self)
	defer close(b.done)
	defer p.Unmount()
	_, err := tea.NewProgram(b, tea.WithAltScreen()).Run()
	return err
}

func (b Board) Init() tea.Cmd {
	return b.waitForUpdate()
}

func (b Board) waitForUpdate() tea.Cmd {
	p, done := b.proj, b.done
	return func() tea.Msg {
		select {
		case <-p.Updates():
			return viewMsg(p.View())
		case <-done:
			return nil
		}
	}
}

func (b Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height

	case viewMsg:
		b.view = roster.View(msg)
		return b, b.waitForUpdate()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return b, tea.Quit
		}
	}
	return b, nil
}

func (b Board) View() string {
	var sb strings.Builder
	sb.WriteString(b.header())
	sb.WriteString("\n\n")

	switch {
	case b.view.Err != nil:
		sb.WriteString(errorStyle.Render("Error: " + b.view.Err.Error()))
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("The live feed stopped. Reopen the board to reconnect."))
	case b.view.Loading:
		sb.WriteString(dimStyle.Render("Loading roster..."))
	case len(b.view.Members) == 0:
		sb.WriteString(dimStyle.Render("No members yet. Share an invite code to get started."))
	default:
		sb.WriteString(b.grid())
		sb.WriteString("\n")
		sb.WriteString(b.summary())
	}

	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("q quit"))
	return sb.String()
}

func (b Board) header() string {
	name := "Team"
	if b.view.Team != nil && b.view.Team.Name != "" {
		name = b.view.Team.Name
	}
	left := titleStyle.Render(name)
	right := clockStyle.Render(b.view.Now.Format("15:04"))
	gap := b.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	return left + strings.Repeat(" ", gap) + right
}

func (b Board) grid() string {
	cols := b.width / (cardWidth + 4)
	if cols < 1 {
		cols = 1
	}
	var rows []string
	var row []string
	for i := range b.view.Members {
		row = append(row, b.card(&b.view.Members[i]))
		if len(row) == cols {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (b Board) card(m *models.Member) string {
	status := m.Status.OrDefault()
	lines := []string{
		statusDot(status) + " " + nameStyle.Render(truncate(m.Name, cardWidth-4)),
		dimStyle.Render(string(m.Role)) + "  " + statusLabel(status),
	}
	if m.StatusMessage != "" {
		lines = append(lines, truncate(m.StatusMessage, cardWidth-2))
	} else {
		lines = append(lines, dimStyle.Render("No status message"))
	}
	if m.Schedule != "" {
		lines = append(lines, dimStyle.Render(truncate(m.Schedule, cardWidth-2)))
	}
	if m.LastActive != nil {
		lines = append(lines, dimStyle.Render("active "+RelativeTime(*m.LastActive, b.view.Now)))
	}
	style := cardStyle
	if m.ID == b.self && b.self != uuid.Nil {
		style = selfCardStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (b Board) summary() string {
	counts := make(map[models.Status]int)
	for _, m := range b.view.Members {
		counts[m.Status.OrDefault()]++
	}
	parts := make([]string, 0, len(models.Statuses))
	for _, s := range models.Statuses {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d %s", statusDot(s), counts[s], strings.ToLower(statusLabel(s))))
		}
	}
	return strings.Join(parts, "   ")
}

// RelativeTime formats t relative to now ("just now", "5m ago", "3h ago", "2d ago").
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
