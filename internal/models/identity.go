package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a stored account of the identity provider.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity is the authenticated principal, without sensitive fields.
type Identity struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToIdentity converts User to Identity.
func (u *User) ToIdentity() Identity {
	return Identity{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		PhotoURL:  u.PhotoURL,
		CreatedAt: u.CreatedAt,
	}
}

// MergeMember overlays the richer member profile onto the identity.
func (i Identity) MergeMember(m *Member) Identity {
	if m == nil {
		return i
	}
	if m.Name != "" {
		i.Name = m.Name
	}
	if m.PhotoURL != "" {
		i.PhotoURL = m.PhotoURL
	}
	if m.Role.Valid() {
		i.Role = m.Role
	}
	return i
}
