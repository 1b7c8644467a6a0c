package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/roster"
)

func newTestBoard() Board {
	b := NewBoard(roster.NewProjector(nil), uuid.Nil)
	b.width = 120
	b.height = 40
	return b
}

func TestBoardRendersMembers(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	active := now.Add(-5 * time.Minute)
	b := newTestBoard()
	m, _ := b.Update(viewMsg{
		Team: &models.Team{Name: "Crew"},
		Members: []models.Member{
			{Name: "Ana", Role: models.RoleAdmin, Status: models.StatusBusy, StatusMessage: "Shipping", LastActive: &active},
			{Name: "Bo", Role: models.RoleMember, Status: models.StatusBreak, Schedule: "9-17"},
		},
		Now: now,
	})
	view := m.View()
	for _, want := range []string{"Crew", "09:30", "Ana", "Shipping", "active 5m ago", "Bo", "9-17", "On a break"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in board view, got:\n%s", want, view)
		}
	}
}

func TestBoardLoadingAndError(t *testing.T) {
	b := newTestBoard()
	m, _ := b.Update(viewMsg{Loading: true})
	if !strings.Contains(m.View(), "Loading roster") {
		t.Errorf("expected loading text, got:\n%s", m.View())
	}
	m, _ = b.Update(viewMsg{Err: errors.New("subscription failed")})
	if !strings.Contains(m.View(), "subscription failed") {
		t.Errorf("expected error text, got:\n%s", m.View())
	}
}

func TestBoardQuitKey(t *testing.T) {
	b := newTestBoard()
	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit the board")
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := RelativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("RelativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 6); got != "hello…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
