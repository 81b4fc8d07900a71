package models

import (
	"time"

	"github.com/google/uuid"
)

// Application and invitation statuses.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Application represents a user's request to join a team.
type Application struct {
	ID        uuid.UUID `json:"id"`
	TeamID    uuid.UUID `json:"team_id"`
	UserID    uuid.UUID `json:"user_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Team      *Team `json:"team,omitempty"`
	Applicant *User `json:"user,omitempty"`
}

// Invitation represents a captain inviting a user to their team.
type Invitation struct {
	ID            uuid.UUID `json:"id"`
	TeamID        uuid.UUID `json:"team_id"`
	InvitedUserID uuid.UUID `json:"invited_user_id"`
	InviterID     uuid.UUID `json:"inviter_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Team    *Team `json:"team,omitempty"`
	Inviter *User `json:"inviter,omitempty"`
}
