package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTeamID is the key of the singleton team record.
const DefaultTeamID = "default"

// TeamSettings holds team-wide switches.
type TeamSettings struct {
	AllowSelfRegister bool   `json:"allow_self_register"`
	RequireApproval   bool   `json:"require_approval"`
	Theme             string `json:"theme"`
}

// DefaultTeamSettings is applied on setup.
func DefaultTeamSettings() TeamSettings {
	return TeamSettings{AllowSelfRegister: false, RequireApproval: true, Theme: "dark"}
}

// Team is the singleton organization all members belong to.
type Team struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	LogoURL     string       `json:"logo_url,omitempty"`
	AdminID     uuid.UUID    `json:"admin_id"`
	Settings    TeamSettings `json:"settings"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
