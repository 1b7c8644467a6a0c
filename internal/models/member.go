package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is a member's availability.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusMeeting   Status = "meeting"
	StatusBreak     Status = "break"
	StatusAway      Status = "away"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusAvailable, StatusBusy, StatusMeeting, StatusBreak, StatusAway}

// Valid reports whether s is one of the fixed statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusMeeting, StatusBreak, StatusAway:
		return true
	}
	return false
}

// ParseStatus returns the status for s, or false when s is not a known status.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.Valid()
}

// OrDefault returns s, or StatusAvailable when s is empty or unknown.
func (s Status) OrDefault() Status {
	if s.Valid() {
		return s
	}
	return StatusAvailable
}

// Member is a team participant's status record, keyed by identity id.
type Member struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          Role       `json:"role"`
	Status        Status     `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`
	Schedule      string     `json:"schedule,omitempty"`
	PhotoURL      string     `json:"photo_url,omitempty"`
	LastActive    *time.Time `json:"last_active,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
