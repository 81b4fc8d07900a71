package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered player profile.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email,omitempty"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Region         string     `json:"region"`
	MMRRating      int        `json:"mmr_rating"`
	PreferredRoles []string   `json:"preferred_roles"`
	AboutMe        string     `json:"about_me,omitempty"`
	Tags           []string   `json:"tags"`
	IsSearching    bool       `json:"is_searching"`
	TeamID         *uuid.UUID `json:"team_id,omitempty"`
	LastOnline     *time.Time `json:"last_online,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PublicProfile strips fields other users should not see.
func (u *User) PublicProfile() *User {
	p := *u
	p.Email = ""
	p.PasswordHash = ""
	return &p
}
