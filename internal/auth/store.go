package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailTaken         = errors.New("email already registered")
	ErrResetTokenInvalid  = errors.New("password reset link is invalid or has expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmail       = errors.New("a valid email is required")
)

// UserFields is a partial account update. Nil fields are left untouched.
type UserFields struct {
	Email        *string
	PasswordHash *string
	Name         *string
	PhotoURL     *string
}

// UserStore persists identity-provider accounts.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, fields UserFields) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryUserStore is an in-process UserStore for tests and local development.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
	now   func() time.Time
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[uuid.UUID]*models.User), now: time.Now}
}

func (m *MemoryUserStore) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *MemoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MemoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryUserStore) Update(_ context.Context, id uuid.UUID, f UserFields) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if f.Email != nil && *f.Email != u.Email {
		for _, other := range m.users {
			if other.Email == *f.Email {
				return nil, ErrEmailTaken
			}
		}
		u.Email = *f.Email
	}
	if f.PasswordHash != nil {
		u.Password = *f.PasswordHash
	}
	if f.Name != nil {
		u.Name = *f.Name
	}
	if f.PhotoURL != nil {
		u.PhotoURL = *f.PhotoURL
	}
	u.UpdatedAt = m.now()
	c := *u
	return &c, nil
}

func (m *MemoryUserStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}
