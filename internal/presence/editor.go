// Package presence lets members edit their own status card and admins edit the team header.
package presence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/auth"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/storage"
)

// ErrUpload marks a blob store failure.
var ErrUpload = errors.New("upload failed")

// ValidationError is a field check that failed before anything was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Uploader stores blobs and returns a retrievable URL. *storage.S3 satisfies it.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// ProfileUpdater refreshes the identity provider's copy of profile fields. *auth.Service satisfies it.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, id uuid.UUID, f auth.ProfileFields) (*models.Identity, error)
}

// Image is an attached upload.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Submission is a member's edit of their own card.
type Submission struct {
	Name          string
	Status        string
	StatusMessage string
	Schedule      string
	Photo         *Image
}

// Result is the stored member and the refreshed identity.
type Result struct {
	Member   *models.Member   `json:"member"`
	Identity *models.Identity `json:"user"`
}

// TeamSubmission is an admin edit of the team header and settings. Nil fields are left untouched.
type TeamSubmission struct {
	Name        *string
	Description *string
	Logo        *Image

	AllowSelfRegister *bool
	RequireApproval   *bool
	Theme             *string
}

// HasSettings reports whether the edit touches team settings.
func (s TeamSubmission) HasSettings() bool {
	return s.AllowSelfRegister != nil || s.RequireApproval != nil || s.Theme != nil
}

// Themes are the board themes a team can pick.
var Themes = []string{"dark", "light"}

// Editor applies presence edits.
type Editor struct {
	repo      *team.Repository
	profiles  ProfileUpdater
	uploader  Uploader
	maxUpload int64
	logger    *zap.Logger
}

// NewEditor creates a presence editor. maxUpload is in bytes.
func NewEditor(repo *team.Repository, profiles ProfileUpdater, uploader Uploader, maxUpload int64, logger *zap.Logger) *Editor {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{repo: repo, profiles: profiles, uploader: uploader, maxUpload: maxUpload, logger: logger}
}

// Validate checks and trims a submission in place.
func (e *Editor) Validate(sub *Submission) error {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.StatusMessage = strings.TrimSpace(sub.StatusMessage)
	sub.Schedule = strings.TrimSpace(sub.Schedule)
	if sub.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if _, ok := models.ParseStatus(sub.Status); !ok {
		return &ValidationError{Field: "status", Message: "status must be one of available, busy, meeting, break, away"}
	}
	if sub.Photo != nil {
		return e.validateImage("photo", sub.Photo)
	}
	return nil
}

func (e *Editor) validateImage(field string, img *Image) error {
	ct, err := storage.ImageContentType(img.ContentType, img.Filename)
	if err != nil {
		return &ValidationError{Field: field, Message: err.Error()}
	}
	img.ContentType = ct
	if img.Size > e.maxUpload {
		return &ValidationError{Field: field, Message: fmt.Sprintf("file must be at most %d MB", e.maxUpload>>20)}
	}
	return nil
}

// Submit applies the signed-in member's edit: upload the photo if any, then merge the card,
// then refresh the identity's name and photo. A failed photo upload aborts the edit.
func (e *Editor) Submit(ctx context.Context, ident models.Identity, sub Submission) (*Result, error) {
	if err := e.Validate(&sub); err != nil {
		return nil, err
	}
	status := models.Status(sub.Status)
	now := e.repo.Now()
	fields := team.MemberFields{
		Name:          &sub.Name,
		Status:        &status,
		StatusMessage: &sub.StatusMessage,
		Schedule:      &sub.Schedule,
		LastActive:    &now,
	}
	if _, err := e.repo.GetMember(ctx, ident.ID); errors.Is(err, team.ErrNotFound) {
		email, role := ident.Email, ident.Role
		fields.Email, fields.Role = &email, &role
	}

	var key string
	if sub.Photo != nil {
		key = storage.AvatarKey(ident.ID.String(), sub.Photo.Filename, now)
		url, err := e.uploader.Upload(ctx, key, sub.Photo.ContentType, sub.Photo.Body, sub.Photo.Size)
		if err != nil {
			e.logger.Error("photo upload failed", zap.String("user_id", ident.ID.String()), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrUpload, err)
		}
		fields.PhotoURL = &url
	}

	m, err := e.repo.UpsertMember(ctx, ident.ID, fields)
	if err != nil {
		if key != "" {
			if derr := e.uploader.Delete(context.WithoutCancel(ctx), key); derr != nil {
				e.logger.Warn("orphaned photo cleanup failed", zap.String("key", key), zap.Error(derr))
			}
		}
		return nil, fmt.Errorf("update member: %w", err)
	}

	refreshed, err := e.profiles.UpdateProfile(ctx, ident.ID, auth.ProfileFields{Name: &m.Name, PhotoURL: fields.PhotoURL})
	if err != nil {
		return nil, fmt.Errorf("refresh identity: %w", err)
	}
	merged := refreshed.MergeMember(m)
	return &Result{Member: m, Identity: &merged}, nil
}

// UploadTeamLogo stores a team logo and returns its URL, or "" when the upload fails.
// Logo failures never block the caller.
func (e *Editor) UploadTeamLogo(ctx context.Context, logo *Image) string {
	if logo == nil {
		return ""
	}
	if err := e.validateImage("logo", logo); err != nil {
		e.logger.Warn("team logo rejected, continuing without it", zap.Error(err))
		return ""
	}
	url, err := e.uploader.Upload(ctx, storage.LogoKey(logo.Filename, e.repo.Now()), logo.ContentType, logo.Body, logo.Size)
	if err != nil {
		e.logger.Warn("team logo upload failed, continuing without it", zap.Error(err))
		return ""
	}
	return url
}

// UpdateTeam applies an admin edit of the team header. A failed logo upload keeps the old logo.
func (e *Editor) UpdateTeam(ctx context.Context, sub TeamSubmission) (*models.Team, error) {
	var fields team.TeamFields
	if sub.Name != nil {
		name := strings.TrimSpace(*sub.Name)
		if name == "" {
			return nil, &ValidationError{Field: "name", Message: "team name is required"}
		}
		fields.Name = &name
	}
	if sub.Description != nil {
		desc := strings.TrimSpace(*sub.Description)
		fields.Description = &desc
	}
	if sub.HasSettings() {
		settings, err := e.mergeSettings(ctx, sub)
		if err != nil {
			return nil, err
		}
		fields.Settings = settings
	}
	if url := e.UploadTeamLogo(ctx, sub.Logo); url != "" {
		fields.LogoURL = &url
	}
	return e.repo.UpdateTeam(ctx, fields)
}

// mergeSettings overlays the submitted settings onto the stored ones.
func (e *Editor) mergeSettings(ctx context.Context, sub TeamSubmission) (*models.TeamSettings, error) {
	var theme string
	if sub.Theme != nil {
		theme = strings.ToLower(strings.TrimSpace(*sub.Theme))
		if !slices.Contains(Themes, theme) {
			return nil, &ValidationError{Field: "theme", Message: "theme must be one of " + strings.Join(Themes, ", ")}
		}
	}
	t, err := e.repo.GetTeam(ctx)
	if err != nil {
		return nil, err
	}
	settings := t.Settings
	if sub.AllowSelfRegister != nil {
		settings.AllowSelfRegister = *sub.AllowSelfRegister
	}
	if sub.RequireApproval != nil {
		settings.RequireApproval = *sub.RequireApproval
	}
	if sub.Theme != nil {
		settings.Theme = theme
	}
	return &settings, nil
}
