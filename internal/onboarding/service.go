// Package onboarding creates the team and brings identities into it.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/auth"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/presence"
	"github.com/teamfaces/teamfaces/internal/team"
)

const (
	SetupMessage = "Team configured!"
	JoinMessage  = "Joined the team!"
)

// ErrSelfRegisterDisabled is returned when the team only admits members by invite.
var ErrSelfRegisterDisabled = errors.New("self-registration is disabled for this team")

// Identities registers and removes accounts. *auth.Service satisfies it.
type Identities interface {
	Register(ctx context.Context, email, password string, profile auth.Profile) (*auth.Session, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

// LogoUploader stores a team logo, returning "" on failure. *presence.Editor satisfies it.
type LogoUploader interface {
	UploadTeamLogo(ctx context.Context, logo *presence.Image) string
}

// Account is the name and credentials of a new identity.
type Account struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SetupInput is the setup wizard submission.
type SetupInput struct {
	TeamName    string
	Description string
	Logo        *presence.Image
	Admin       Account
}

// Result is the team joined and the signed-in session of the new member.
type Result struct {
	Team    *models.Team   `json:"team"`
	Member  *models.Member `json:"member"`
	Session *auth.Session  `json:"session"`
}

// Service runs the onboarding flows.
type Service struct {
	repo   *team.Repository
	ids    Identities
	logos  LogoUploader
	logger *zap.Logger
}

// NewService creates the onboarding service.
func NewService(repo *team.Repository, ids Identities, logos LogoUploader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, ids: ids, logos: logos, logger: logger}
}

// SetupRequired reports whether no team exists yet.
func (s *Service) SetupRequired(ctx context.Context) (bool, error) {
	_, err := s.repo.GetTeam(ctx)
	if errors.Is(err, team.ErrNotFound) {
		return true, nil
	}
	return false, err
}

func validateAccount(a *Account) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return &presence.ValidationError{Field: "name", Message: "name is required"}
	}
	return nil
}

// Setup creates the team with its first admin. It fails with team.ErrAlreadyExists once a team exists.
func (s *Service) Setup(ctx context.Context, in SetupInput) (*Result, error) {
	in.TeamName = strings.TrimSpace(in.TeamName)
	if in.TeamName == "" {
		return nil, &presence.ValidationError{Field: "team_name", Message: "team name is required"}
	}
	if err := validateAccount(&in.Admin); err != nil {
		return nil, err
	}
	required, err := s.SetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, team.ErrAlreadyExists
	}

	sess, err := s.ids.Register(ctx, in.Admin.Email, in.Admin.Password, auth.Profile{Name: in.Admin.Name, Role: models.RoleAdmin})
	if err != nil {
		return nil, err
	}
	admin := sess.Identity

	t := &models.Team{
		Name:        in.TeamName,
		Description: strings.TrimSpace(in.Description),
		AdminID:     admin.ID,
		Settings:    models.DefaultTeamSettings(),
	}
	if err := s.repo.CreateTeam(ctx, t); err != nil {
		s.rollback(ctx, admin.ID)
		return nil, err
	}
	// The logo is uploaded only after the team row exists.
	if url := s.logos.UploadTeamLogo(ctx, in.Logo); url != "" {
		if updated, err := s.repo.UpdateTeam(ctx, team.TeamFields{LogoURL: &url}); err != nil {
			s.logger.Warn("failed to attach team logo", zap.String("url", url), zap.Error(err))
		} else {
			t = updated
		}
	}

	m, err := s.createMember(ctx, admin, SetupMessage)
	if err != nil {
		s.logger.Error("team created without an admin card; the admin can sign in and save a status to recreate it",
			zap.String("admin_id", admin.ID.String()), zap.Error(err))
		return nil, err
	}
	s.repo.RecordActivity(ctx, models.ActivitySetup, &admin.ID, fmt.Sprintf("%s set up %s", admin.Name, t.Name))
	s.logger.Info("team set up", zap.String("team", t.Name), zap.String("admin_id", admin.ID.String()))
	return &Result{Team: t, Member: m, Session: sess}, nil
}

// Join registers a member through an invite code. The code is consumed only after the identity
// exists; if another caller consumes it first, the new identity is removed again.
func (s *Service) Join(ctx context.Context, code string, acct Account) (*Result, error) {
	if err := validateAccount(&acct); err != nil {
		return nil, err
	}
	if _, err := s.repo.PeekInviteCode(ctx, code); err != nil {
		return nil, err
	}
	sess, err := s.ids.Register(ctx, acct.Email, acct.Password, auth.Profile{Name: acct.Name, Role: models.RoleMember})
	if err != nil {
		return nil, err
	}
	ident := sess.Identity

	t, err := s.repo.ConsumeInviteCode(ctx, code, ident.ID)
	if err != nil {
		s.rollback(ctx, ident.ID)
		return nil, err
	}
	m, err := s.createMember(ctx, ident, JoinMessage)
	if err != nil {
		s.logger.Error("invite consumed but member card not created",
			zap.String("user_id", ident.ID.String()), zap.Error(err))
		return nil, err
	}
	s.repo.RecordActivity(ctx, models.ActivityJoin, &ident.ID, ident.Name+" joined the team")
	return &Result{Team: t, Member: m, Session: sess}, nil
}

// Register admits a member without an invite when the team allows self-registration.
// Teams that require approval admit self-registered users as viewers.
func (s *Service) Register(ctx context.Context, acct Account) (*Result, error) {
	if err := validateAccount(&acct); err != nil {
		return nil, err
	}
	t, err := s.repo.GetTeam(ctx)
	if err != nil {
		return nil, err
	}
	if !t.Settings.AllowSelfRegister {
		return nil, ErrSelfRegisterDisabled
	}
	role := models.RoleMember
	if t.Settings.RequireApproval {
		role = models.RoleViewer
	}
	sess, err := s.ids.Register(ctx, acct.Email, acct.Password, auth.Profile{Name: acct.Name, Role: role})
	if err != nil {
		return nil, err
	}
	m, err := s.createMember(ctx, sess.Identity, JoinMessage)
	if err != nil {
		return nil, err
	}
	s.repo.RecordActivity(ctx, models.ActivityJoin, &sess.Identity.ID, sess.Identity.Name+" registered")
	return &Result{Team: t, Member: m, Session: sess}, nil
}

func (s *Service) createMember(ctx context.Context, ident models.Identity, message string) (*models.Member, error) {
	status := models.StatusAvailable
	now := s.repo.Now()
	m, err := s.repo.UpsertMember(ctx, ident.ID, team.MemberFields{
		Name:          &ident.Name,
		Email:         &ident.Email,
		Role:          &ident.Role,
		Status:        &status,
		StatusMessage: &message,
		LastActive:    &now,
	})
	if err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	return m, nil
}

func (s *Service) rollback(ctx context.Context, id uuid.UUID) {
	if err := s.ids.Remove(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Warn("failed to remove identity after aborted onboarding", zap.String("user_id", id.String()), zap.Error(err))
	}
}
