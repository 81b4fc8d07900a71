package models

import (
	"time"

	"github.com/google/uuid"
)

// Team represents a player team looking for members or scrims.
type Team struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	CaptainID      uuid.UUID `json:"captain_id"`
	Region         string    `json:"region"`
	GameModes      []string  `json:"game_modes"`
	MMRRangeMin    int       `json:"mmr_range_min"`
	MMRRangeMax    int       `json:"mmr_range_max"`
	RequiredRoles  []string  `json:"required_roles"`
	Tags           []string  `json:"tags"`
	IsSearching    bool      `json:"is_searching"`
	LookingForScrim bool     `json:"looking_for_scrim"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
