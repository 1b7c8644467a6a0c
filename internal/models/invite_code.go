package models

import (
	"time"

	"github.com/google/uuid"
)

// InviteCode is a single-use token gating registration into the team.
type InviteCode struct {
	Code      string     `json:"code"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedBy    *uuid.UUID `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Usable reports whether the code can be consumed at now: unused and strictly before expiry.
func (c *InviteCode) Usable(now time.Time) bool {
	return !c.Used && now.Before(c.ExpiresAt)
}
