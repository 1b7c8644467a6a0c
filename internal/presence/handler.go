package presence

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/middleware"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/response"
)

// Handler serves the presence editing endpoints.
type Handler struct {
	editor *Editor
	logger *zap.Logger
}

// NewHandler creates a presence handler.
func NewHandler(editor *Editor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{editor: editor, logger: logger}
}

func writeError(c *gin.Context, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
	case errors.Is(err, ErrUpload):
		response.BadGateway(c, "photo upload failed, nothing was changed")
	default:
		team.WriteError(c, err, fallback)
	}
}

// formImage opens an optional file field. A missing field yields nil.
func formImage(c *gin.Context, field string) (*Image, multipart.File, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, &ValidationError{Field: field, Message: "invalid file upload"}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

// UpdateMe handles PUT /team/members/me (multipart: name, status, status_message, schedule, photo).
func (h *Handler) UpdateMe(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	if ident == nil {
		response.Unauthorized(c, "missing user context")
		return
	}
	photo, file, err := formImage(c, "photo")
	if err != nil {
		writeError(c, err, "failed to read upload")
		return
	}
	if file != nil {
		defer file.Close()
	}
	sub := Submission{
		Name:          c.PostForm("name"),
		Status:        c.PostForm("status"),
		StatusMessage: c.PostForm("status_message"),
		Schedule:      c.PostForm("schedule"),
		Photo:         photo,
	}
	res, err := h.editor.Submit(c.Request.Context(), *ident, sub)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) && !errors.Is(err, ErrUpload) {
			h.logger.Error("presence update failed", zap.String("user_id", ident.ID.String()), zap.Error(err))
		}
		writeError(c, err, "failed to update your card")
		return
	}
	response.OK(c, res)
}

// UpdateTeam handles PATCH /team (multipart: name, description, logo,
// allow_self_register, require_approval, theme). Settings need manage_settings.
func (h *Handler) UpdateTeam(c *gin.Context) {
	var sub TeamSubmission
	for field, dst := range map[string]**bool{
		"allow_self_register": &sub.AllowSelfRegister,
		"require_approval":    &sub.RequireApproval,
	} {
		if v, ok := c.GetPostForm(field); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				response.BadRequest(c, field+": must be true or false")
				return
			}
			*dst = &b
		}
	}
	if v, ok := c.GetPostForm("theme"); ok {
		sub.Theme = &v
	}
	if sub.HasSettings() {
		ident := middleware.IdentityFrom(c)
		if ident == nil || !models.Can(ident.Role, models.PermManageSettings) {
			response.Forbidden(c, "insufficient permissions")
			return
		}
	}

	logo, file, err := formImage(c, "logo")
	if err != nil {
		writeError(c, err, "failed to read upload")
		return
	}
	if file != nil {
		defer file.Close()
	}
	if v, ok := c.GetPostForm("name"); ok {
		sub.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		sub.Description = &v
	}
	sub.Logo = logo
	t, err := h.editor.UpdateTeam(c.Request.Context(), sub)
	if err != nil {
		writeError(c, err, "failed to update team")
		return
	}
	response.OK(c, t)
}
