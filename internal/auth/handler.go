package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/pkg/response"
)

// ContextClaims is the gin context key the JWT middleware stores *Claims under.
const ContextClaims = "auth_claims"

// ClaimsFrom returns the verified claims of the request, if any.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && claims != nil
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetRequest is the body for POST /auth/password-reset.
type ResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetConfirmRequest is the body for POST /auth/password-reset/confirm.
type ResetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateMeRequest is the body for PATCH /auth/me.
type UpdateMeRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// WriteError maps identity errors onto the response envelope.
func WriteError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, ErrEmailTaken):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrResetTokenInvalid), errors.Is(err, ErrWeakPassword), errors.Is(err, ErrInvalidEmail):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(c, err.Error())
	default:
		response.Internal(c, fallback)
	}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password required")
		return
	}
	sess, err := h.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			h.logger.Error("login failed", zap.Error(err))
		}
		WriteError(c, err, "failed to sign in")
		return
	}
	response.OK(c, sess)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	if err := h.svc.SignOut(c.Request.Context(), claims); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		response.Internal(c, "failed to sign out")
		return
	}
	response.NoContent(c)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	ident, err := h.svc.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.Unauthorized(c, "account no longer exists")
			return
		}
		WriteError(c, err, "failed to load account")
		return
	}
	response.OK(c, ident)
}

// UpdateMe handles PATCH /auth/me.
func (h *Handler) UpdateMe(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	if req.Name != nil && *req.Name == "" {
		response.BadRequest(c, "name cannot be empty")
		return
	}
	ident, err := h.svc.UpdateProfile(c.Request.Context(), claims.UserID,
		ProfileFields{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		WriteError(c, err, "failed to update profile")
		return
	}
	response.OK(c, ident)
}

// RequestReset handles POST /auth/password-reset.
func (h *Handler) RequestReset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email required")
		return
	}
	if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.logger.Error("password reset request failed", zap.Error(err))
		response.Internal(c, "failed to send reset email")
		return
	}
	response.OK(c, gin.H{"message": "If that address has an account, a reset link is on its way."})
}

// ConfirmReset handles POST /auth/password-reset/confirm.
func (h *Handler) ConfirmReset(c *gin.Context) {
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token and password required")
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		WriteError(c, err, "failed to reset password")
		return
	}
	response.OK(c, gin.H{"message": "Password updated."})
}
