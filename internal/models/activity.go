package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType classifies an activity log entry.
type ActivityType string

const (
	ActivitySetup  ActivityType = "setup"
	ActivityJoin   ActivityType = "join"
	ActivityStatus ActivityType = "status"
	ActivityInvite ActivityType = "invite"
)

// Activity is one entry of the team's audit feed shown on the admin dashboard.
type Activity struct {
	ID        uuid.UUID    `json:"id"`
	Type      ActivityType `json:"type"`
	UserID    *uuid.UUID   `json:"user_id,omitempty"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}
