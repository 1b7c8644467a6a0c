package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/utils"
)

const maxCodeAttempts = 5

// Config tunes the repository.
type Config struct {
	InviteTTL  time.Duration
	CodeLength int
	// Now is the clock used for expiry checks and timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Repository is the typed team/member/invite API used by handlers, onboarding and the live feed.
type Repository struct {
	store    Store
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
}

// NewRepository creates a repository over store, publishing member changes through notifier.
func NewRepository(store Store, notifier Notifier, cfg Config, logger *zap.Logger) *Repository {
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = 7 * 24 * time.Hour
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{store: store, notifier: notifier, cfg: cfg, logger: logger}
}

// Now returns the repository clock.
func (r *Repository) Now() time.Time {
	return r.cfg.Now()
}

// GetTeam returns the team or ErrNotFound.
func (r *Repository) GetTeam(ctx context.Context) (*models.Team, error) {
	return r.store.GetTeam(ctx)
}

// CreateTeam stores the singleton team; ErrAlreadyExists when one exists.
func (r *Repository) CreateTeam(ctx context.Context, t *models.Team) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("team name is required")
	}
	if t.Settings.Theme == "" {
		t.Settings = models.DefaultTeamSettings()
	}
	t.CreatedAt = r.cfg.Now()
	t.UpdatedAt = t.CreatedAt
	return r.store.CreateTeam(ctx, t)
}

// UpdateTeam merges fields into the team.
func (r *Repository) UpdateTeam(ctx context.Context, fields TeamFields) (*models.Team, error) {
	t, err := r.store.UpdateTeam(ctx, fields, r.cfg.Now())
	if err != nil {
		return nil, err
	}
	// Roster feeds carry the team header.
	r.publish(ctx)
	return t, nil
}

// GetMember returns the member or ErrNotFound.
func (r *Repository) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return r.store.GetMember(ctx, id)
}

// MemberRole returns the role on id's member card. ok is false when there is no card.
func (r *Repository) MemberRole(ctx context.Context, id uuid.UUID) (models.Role, bool, error) {
	m, err := r.store.GetMember(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Role, m.Role.Valid(), nil
}

// UpsertMember merges fields into the member record, creating it when absent.
// A status change is recorded in the activity feed.
func (r *Repository) UpsertMember(ctx context.Context, id uuid.UUID, fields MemberFields) (*models.Member, error) {
	var prev models.Status
	if fields.Status != nil {
		if old, err := r.store.GetMember(ctx, id); err == nil {
			prev = old.Status
		}
	}
	m, err := r.store.UpsertMember(ctx, id, fields, r.cfg.Now())
	if err != nil {
		return nil, err
	}
	r.publish(ctx)
	if fields.Status != nil && prev != "" && prev != m.Status {
		r.RecordActivity(ctx, models.ActivityStatus, &id, fmt.Sprintf("%s is now %s", displayName(m), m.Status))
	}
	return m, nil
}

// ListMembers returns every member in creation order.
func (r *Repository) ListMembers(ctx context.Context) ([]models.Member, error) {
	return r.store.ListMembers(ctx)
}

// SubscribeMembers starts a live feed of full member snapshots. The caller must Close it.
func (r *Repository) SubscribeMembers(ctx context.Context) (*Subscription, error) {
	return newSubscription(ctx, r.notifier, r.store.ListMembers)
}

// CountActiveSince counts members whose last activity is at or after since.
func (r *Repository) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	return r.store.CountMembersActiveSince(ctx, since)
}

// GenerateInviteCode stores a fresh code valid for the configured TTL and returns it.
func (r *Repository) GenerateInviteCode(ctx context.Context, createdBy *uuid.UUID) (*models.InviteCode, error) {
	now := r.cfg.Now()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := utils.RandomCode(r.cfg.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate invite code: %w", err)
		}
		inv := &models.InviteCode{
			Code:      code,
			CreatedBy: createdBy,
			CreatedAt: now,
			ExpiresAt: now.Add(r.cfg.InviteTTL),
		}
		err = r.store.CreateInviteCode(ctx, inv)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		r.RecordActivity(ctx, models.ActivityInvite, createdBy, "Invite code "+code+" created")
		return inv, nil
	}
	return nil, errors.New("generate invite code: too many collisions")
}

// PeekInviteCode returns the team the code would admit to without consuming it.
func (r *Repository) PeekInviteCode(ctx context.Context, code string) (*models.Team, error) {
	code, ok := NormalizeCode(code)
	if !ok {
		return nil, ErrInvalidInvite
	}
	inv, err := r.store.GetInviteCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidInvite
	}
	if err != nil {
		return nil, err
	}
	if !inv.Usable(r.cfg.Now()) {
		return nil, ErrInvalidInvite
	}
	return r.store.GetTeam(ctx)
}

// ConsumeInviteCode marks the code used by userID and returns the team it admits to.
// The mark is a conditional write, so of two concurrent callers only one succeeds.
func (r *Repository) ConsumeInviteCode(ctx context.Context, code string, userID uuid.UUID) (*models.Team, error) {
	code, ok := NormalizeCode(code)
	if !ok {
		return nil, ErrInvalidInvite
	}
	if _, err := r.store.ConsumeInviteCode(ctx, code, userID, r.cfg.Now()); err != nil {
		return nil, err
	}
	return r.store.GetTeam(ctx)
}

// ActiveInviteCodes lists unused, unexpired codes, newest first.
func (r *Repository) ActiveInviteCodes(ctx context.Context) ([]models.InviteCode, error) {
	return r.store.ListActiveInviteCodes(ctx, r.cfg.Now())
}

// RecordActivity appends to the activity feed. Failures are logged, not returned.
func (r *Repository) RecordActivity(ctx context.Context, typ models.ActivityType, userID *uuid.UUID, message string) {
	a := &models.Activity{
		ID:        uuid.New(),
		Type:      typ,
		UserID:    userID,
		Message:   message,
		Timestamp: r.cfg.Now(),
	}
	if err := r.store.RecordActivity(ctx, a); err != nil {
		r.logger.Warn("record activity failed", zap.String("type", string(typ)), zap.Error(err))
	}
}

// RecentActivity returns the newest limit entries.
func (r *Repository) RecentActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.store.RecentActivity(ctx, limit)
}

func (r *Repository) publish(ctx context.Context) {
	if err := r.notifier.PublishMembersChanged(ctx); err != nil {
		r.logger.Warn("publish members changed failed", zap.Error(err))
	}
}

// NormalizeCode upper-cases and trims an invite code, reporting false when it is not alphanumeric.
func NormalizeCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", false
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", false
		}
	}
	return code, true
}

func displayName(m *models.Member) string {
	if m.Name != "" {
		return m.Name
	}
	return m.Email
}
