package models

import (
	"time"

	"github.com/google/uuid"
)

// Email delivery outcomes.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
	// EmailStatusLogged means no SMTP relay is configured and the message was written to the log.
	EmailStatusLogged = "logged"
)

// EmailLog is one delivery attempt of a queued mail job.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	JobID          string     `json:"job_id"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	Attempt        int        `json:"attempt"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
