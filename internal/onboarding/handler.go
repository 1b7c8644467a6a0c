package onboarding

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/auth"
	"github.com/teamfaces/teamfaces/internal/presence"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/response"
)

// JoinRequest is the body for POST /join.
type JoinRequest struct {
	Code string `json:"code" binding:"required"`
	Account
}

// Handler serves setup, join and self-registration.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an onboarding handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	var verr *presence.ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
	case errors.Is(err, ErrSelfRegisterDisabled):
		response.Forbidden(c, err.Error())
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		auth.WriteError(c, err, fallback)
	case errors.Is(err, team.ErrNotFound), errors.Is(err, team.ErrAlreadyExists), errors.Is(err, team.ErrInvalidInvite):
		team.WriteError(c, err, fallback)
	default:
		h.logger.Error(fallback, zap.Error(err))
		response.Internal(c, fallback)
	}
}

// Status handles GET /setup/status.
func (h *Handler) Status(c *gin.Context) {
	required, err := h.svc.SetupRequired(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "failed to check setup status")
		return
	}
	response.OK(c, gin.H{"setup_required": required})
}

// Setup handles POST /setup (multipart: team_name, description, logo, name, email, password).
func (h *Handler) Setup(c *gin.Context) {
	in := SetupInput{
		TeamName:    c.PostForm("team_name"),
		Description: c.PostForm("description"),
		Admin: Account{
			Name:     c.PostForm("name"),
			Email:    c.PostForm("email"),
			Password: c.PostForm("password"),
		},
	}
	if fh, err := c.FormFile("logo"); err == nil {
		f, err := fh.Open()
		if err == nil {
			defer f.Close()
			in.Logo = imageFrom(fh, f)
		}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Warn("ignoring unreadable logo upload", zap.Error(err))
	}
	res, err := h.svc.Setup(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err, "failed to set up team")
		return
	}
	response.Created(c, res)
}

// Join handles POST /join.
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "code, name, email and password required")
		return
	}
	res, err := h.svc.Join(c.Request.Context(), req.Code, req.Account)
	if err != nil {
		h.writeError(c, err, "failed to join team")
		return
	}
	response.Created(c, res)
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req Account
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name, email and password required")
		return
	}
	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "failed to register")
		return
	}
	response.Created(c, res)
}

func imageFrom(fh *multipart.FileHeader, f multipart.File) *presence.Image {
	return &presence.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}
}
