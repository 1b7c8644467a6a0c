// Package team is the member repository: typed access to the team, its members, invite codes
// and activity feed, plus a live subscription over the member list.
package team

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
)

var (
	// ErrNotFound is returned when a team, member or invite record is absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a record that must be unique.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInvite is returned for unknown, malformed, used or expired invite codes.
	ErrInvalidInvite = errors.New("invalid invite code")
	// ErrSubscription marks a terminal failure of a live member feed.
	ErrSubscription = errors.New("member subscription failed")
)

// MemberFields is a partial member update. Nil fields are left untouched.
type MemberFields struct {
	Name          *string
	Email         *string
	Role          *models.Role
	Status        *models.Status
	StatusMessage *string
	Schedule      *string
	PhotoURL      *string
	LastActive    *time.Time
}

// TeamFields is a partial team update. Nil fields are left untouched.
type TeamFields struct {
	Name        *string
	Description *string
	LogoURL     *string
	Settings    *models.TeamSettings
}

// Store is the document store behind the repository.
type Store interface {
	GetTeam(ctx context.Context) (*models.Team, error)
	CreateTeam(ctx context.Context, t *models.Team) error
	UpdateTeam(ctx context.Context, fields TeamFields, now time.Time) (*models.Team, error)

	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	// UpsertMember merges fields into the member record, creating it when absent.
	UpsertMember(ctx context.Context, id uuid.UUID, fields MemberFields, now time.Time) (*models.Member, error)
	// ListMembers returns all members in creation order.
	ListMembers(ctx context.Context) ([]models.Member, error)
	CountMembersActiveSince(ctx context.Context, since time.Time) (int, error)

	CreateInviteCode(ctx context.Context, code *models.InviteCode) error
	GetInviteCode(ctx context.Context, code string) (*models.InviteCode, error)
	// ConsumeInviteCode marks the code used by userID in one conditional write; it fails with
	// ErrInvalidInvite unless the code exists, is unused and now is before its expiry.
	ConsumeInviteCode(ctx context.Context, code string, userID uuid.UUID, now time.Time) (*models.InviteCode, error)
	ListActiveInviteCodes(ctx context.Context, now time.Time) ([]models.InviteCode, error)

	RecordActivity(ctx context.Context, a *models.Activity) error
	RecentActivity(ctx context.Context, limit int) ([]models.Activity, error)
}
