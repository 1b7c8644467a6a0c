package team

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/middleware"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/response"
)

// Handler serves team, member and invite endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a team handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// UpdateMemberRequest is the body for PATCH /team/members/:id.
type UpdateMemberRequest struct {
	Role          *string `json:"role"`
	Status        *string `json:"status"`
	StatusMessage *string `json:"status_message"`
	Schedule      *string `json:"schedule"`
}

// InvitePreview is returned by GET /invites/:code.
type InvitePreview struct {
	Code     string `json:"code"`
	TeamName string `json:"team_name"`
	LogoURL  string `json:"logo_url,omitempty"`
}

// WriteError maps repository errors onto the response envelope.
func WriteError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidInvite):
		response.Gone(c, err.Error())
	default:
		response.Internal(c, fallback)
	}
}

// GetTeam handles GET /team.
func (h *Handler) GetTeam(c *gin.Context) {
	t, err := h.repo.GetTeam(c.Request.Context())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.logger.Error("get team failed", zap.Error(err))
		}
		WriteError(c, err, "failed to load team")
		return
	}
	response.OK(c, t)
}

// ListMembers handles GET /team/members.
func (h *Handler) ListMembers(c *gin.Context) {
	list, err := h.repo.ListMembers(c.Request.Context())
	if err != nil {
		h.logger.Error("list members failed", zap.Error(err))
		response.Internal(c, "failed to list members")
		return
	}
	if list == nil {
		list = []models.Member{}
	}
	response.OK(c, list)
}

// GetMember handles GET /team/members/:id.
func (h *Handler) GetMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	m, err := h.repo.GetMember(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err, "failed to load member")
		return
	}
	response.OK(c, m)
}

// UpdateMember handles PATCH /team/members/:id (admin card edits).
func (h *Handler) UpdateMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	var body UpdateMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.repo.GetMember(ctx, id); err != nil {
		WriteError(c, err, "failed to load member")
		return
	}
	var fields MemberFields
	if body.Role != nil {
		role, ok := models.ParseRole(*body.Role)
		if !ok {
			response.BadRequest(c, "invalid role")
			return
		}
		fields.Role = &role
	}
	if body.Status != nil {
		st, ok := models.ParseStatus(*body.Status)
		if !ok {
			response.BadRequest(c, "invalid status")
			return
		}
		fields.Status = &st
	}
	if body.StatusMessage != nil {
		s := strings.TrimSpace(*body.StatusMessage)
		fields.StatusMessage = &s
	}
	if body.Schedule != nil {
		s := strings.TrimSpace(*body.Schedule)
		fields.Schedule = &s
	}
	m, err := h.repo.UpsertMember(ctx, id, fields)
	if err != nil {
		h.logger.Error("update member failed", zap.String("member_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to update member")
		return
	}
	response.OK(c, m)
}

// PreviewInvite handles GET /invites/:code. It validates without consuming.
func (h *Handler) PreviewInvite(c *gin.Context) {
	code, _ := NormalizeCode(c.Param("code"))
	t, err := h.repo.PeekInviteCode(c.Request.Context(), code)
	if err != nil {
		WriteError(c, err, "failed to check invite code")
		return
	}
	response.OK(c, InvitePreview{Code: code, TeamName: t.Name, LogoURL: t.LogoURL})
}

// CreateInvite handles POST /admin/invites.
func (h *Handler) CreateInvite(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	inv, err := h.repo.GenerateInviteCode(c.Request.Context(), &userID)
	if err != nil {
		h.logger.Error("generate invite failed", zap.Error(err))
		response.Internal(c, "failed to generate invite code")
		return
	}
	response.Created(c, inv)
}

// ListInvites handles GET /admin/invites.
func (h *Handler) ListInvites(c *gin.Context) {
	list, err := h.repo.ActiveInviteCodes(c.Request.Context())
	if err != nil {
		h.logger.Error("list invites failed", zap.Error(err))
		response.Internal(c, "failed to list invite codes")
		return
	}
	if list == nil {
		list = []models.InviteCode{}
	}
	response.OK(c, list)
}
