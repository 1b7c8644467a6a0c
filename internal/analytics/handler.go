// Package analytics serves the admin dashboard summary.
package analytics

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/response"
)

// BoardCounter reports connected projection boards. *realtime.Hub satisfies it.
type BoardCounter interface {
	BoardsOnline() int
}

// Summary is the dashboard payload.
type Summary struct {
	TeamName       string                `json:"team_name"`
	TotalMembers   int                   `json:"total_members"`
	ActiveToday    int                   `json:"active_today"`
	PendingInvites int                   `json:"pending_invites"`
	BoardsOnline   int                   `json:"boards_online"`
	StatusCounts   map[models.Status]int `json:"status_counts"`
	RecentActivity []models.Activity     `json:"recent_activity"`
}

// Handler handles GET /admin/dashboard.
type Handler struct {
	repo          *team.Repository
	boards        BoardCounter
	activityLimit int
	logger        *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(repo *team.Repository, boards BoardCounter, activityLimit int, logger *zap.Logger) *Handler {
	if activityLimit <= 0 {
		activityLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, boards: boards, activityLimit: activityLimit, logger: logger}
}

// StartOfDay returns local midnight of t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Build assembles the dashboard summary.
func (h *Handler) Build(ctx context.Context) (*Summary, error) {
	t, err := h.repo.GetTeam(ctx)
	if err != nil {
		return nil, err
	}
	members, err := h.repo.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	active, err := h.repo.CountActiveSince(ctx, StartOfDay(h.repo.Now().Local()))
	if err != nil {
		return nil, err
	}
	invites, err := h.repo.ActiveInviteCodes(ctx)
	if err != nil {
		return nil, err
	}
	acts, err := h.repo.RecentActivity(ctx, h.activityLimit)
	if err != nil {
		return nil, err
	}
	if acts == nil {
		acts = []models.Activity{}
	}

	counts := make(map[models.Status]int, len(models.Statuses))
	for _, s := range models.Statuses {
		counts[s] = 0
	}
	for _, m := range members {
		counts[m.Status.OrDefault()]++
	}
	s := &Summary{
		TeamName:       t.Name,
		TotalMembers:   len(members),
		ActiveToday:    active,
		PendingInvites: len(invites),
		StatusCounts:   counts,
		RecentActivity: acts,
	}
	if h.boards != nil {
		s.BoardsOnline = h.boards.BoardsOnline()
	}
	return s, nil
}

// Get handles GET /admin/dashboard. view_analytics is enforced by route middleware.
func (h *Handler) Get(c *gin.Context) {
	s, err := h.Build(c.Request.Context())
	if err != nil {
		h.logger.Error("dashboard failed", zap.Error(err))
		team.WriteError(c, err, "failed to load dashboard")
		return
	}
	response.OK(c, s)
}
