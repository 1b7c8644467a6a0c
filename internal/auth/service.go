package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/queue"
	"github.com/teamfaces/teamfaces/pkg/utils"
)

// Mailer queues outgoing mail. *queue.Queue satisfies it.
type Mailer interface {
	EnqueueEmail(ctx context.Context, jobType queue.JobType, payload queue.EmailPayload) error
}

// Config tunes the identity service.
type Config struct {
	ResetTTL time.Duration
	// AppURL is the public client URL reset links point at.
	AppURL string
}

// Session is an issued token and the identity it belongs to.
type Session struct {
	Token    string          `json:"token"`
	Identity models.Identity `json:"user"`
}

// Profile is the registration profile.
type Profile struct {
	Name string
	Role models.Role
}

// ProfileFields is a partial self-service profile update. Nil fields are left untouched.
type ProfileFields struct {
	Name     *string
	Email    *string
	Password *string
	PhotoURL *string
}

// RoleSource reports the role a user currently holds on the team, ok=false when
// the user has no member card yet. *team.Repository satisfies it.
type RoleSource interface {
	MemberRole(ctx context.Context, id uuid.UUID) (role models.Role, ok bool, err error)
}

// Service is the identity provider: accounts, sessions and password resets.
type Service struct {
	users    UserStore
	roles    RoleSource
	jwt      *JWTService
	denylist Denylist
	resets   ResetTokens
	mailer   Mailer
	cfg      Config
	logger   *zap.Logger
}

// NewService creates the identity service.
func NewService(users UserStore, jwt *JWTService, denylist Denylist, resets ResetTokens, mailer Mailer, cfg Config, logger *zap.Logger) *Service {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, jwt: jwt, denylist: denylist, resets: resets, mailer: mailer, cfg: cfg, logger: logger}
}

// WithRoles makes the member card the authority for roles. Issued sessions and
// verified tokens carry the card's role instead of the role stored at registration.
func (s *Service) WithRoles(rs RoleSource) *Service {
	s.roles = rs
	return s
}

// currentRole returns the member card role for id, or fallback when there is no card.
func (s *Service) currentRole(ctx context.Context, id uuid.UUID, fallback models.Role) (models.Role, error) {
	if s.roles == nil {
		return fallback, nil
	}
	role, ok, err := s.roles.MemberRole(ctx, id)
	if err != nil {
		return "", fmt.Errorf("resolve role: %w", err)
	}
	if !ok {
		return fallback, nil
	}
	return role, nil
}

// NormalizeEmail trims and lower-cases an address, rejecting malformed ones.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password string, profile Profile) (*Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < utils.MinPasswordLength {
		return nil, ErrWeakPassword
	}
	role := profile.Role
	if role == "" {
		role = models.DefaultRole
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{Email: email, Password: hash, Name: strings.TrimSpace(profile.Name), Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Authenticate signs in with email and password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

func (s *Service) issue(ctx context.Context, user *models.User) (*Session, error) {
	role, err := s.currentRole(ctx, user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	u := *user
	u.Role = role
	user = &u
	token, err := s.jwt.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, Identity: user.ToIdentity()}, nil
}

// Verify validates a bearer token and rejects revoked ones.
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	role, err := s.currentRole(ctx, claims.UserID, claims.Role)
	if err != nil {
		return nil, err
	}
	claims.Role = role
	return claims, nil
}

// SignOut revokes the token until its natural expiry.
func (s *Service) SignOut(ctx context.Context, claims *Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	return s.denylist.Revoke(ctx, claims.ID, ttl)
}

// Me returns the identity for id.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ident := user.ToIdentity()
	if ident.Role, err = s.currentRole(ctx, id, ident.Role); err != nil {
		return nil, err
	}
	return &ident, nil
}

// RequestPasswordReset mails a reset link. Unknown addresses succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.logger.Info("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	token, err := utils.RandomToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.resets.Save(ctx, token, user.ID, s.cfg.ResetTTL); err != nil {
		return err
	}
	link := strings.TrimRight(s.cfg.AppURL, "/") + "/reset-password?token=" + token
	payload := queue.EmailPayload{
		RecipientEmail: user.Email,
		RecipientName:  user.Name,
		Subject:        "Reset your password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in %s.\n\n%s\n\nReset code: %s\n",
			user.Name, s.cfg.ResetTTL, link, token),
	}
	if err := s.mailer.EnqueueEmail(ctx, queue.JobTypePasswordReset, payload); err != nil {
		return fmt.Errorf("enqueue reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < utils.MinPasswordLength {
		return ErrWeakPassword
	}
	id, err := s.resets.Take(ctx, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.Update(ctx, id, UserFields{PasswordHash: &hash}); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	return nil
}

// UpdateProfile merges fields into the account and returns the stored identity.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, f ProfileFields) (*models.Identity, error) {
	var uf UserFields
	if f.Name != nil {
		name := strings.TrimSpace(*f.Name)
		uf.Name = &name
	}
	if f.Email != nil {
		email, err := NormalizeEmail(*f.Email)
		if err != nil {
			return nil, err
		}
		uf.Email = &email
	}
	if f.Password != nil {
		if len(*f.Password) < utils.MinPasswordLength {
			return nil, ErrWeakPassword
		}
		hash, err := utils.HashPassword(*f.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		uf.PasswordHash = &hash
	}
	uf.PhotoURL = f.PhotoURL
	user, err := s.users.Update(ctx, id, uf)
	if err != nil {
		return nil, err
	}
	ident := user.ToIdentity()
	if ident.Role, err = s.currentRole(ctx, id, ident.Role); err != nil {
		return nil, err
	}
	return &ident, nil
}

// Remove deletes an account. Used to roll back a registration whose invite was lost.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}
