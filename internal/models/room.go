package models

import (
	"time"

	"github.com/google/uuid"
)

// Room kinds.
const (
	RoomPrivate = "private"
	RoomTeam    = "team"
)

// Room represents a chat room: a two-party private conversation or a
// team-wide channel. A private room has a pair key (the two member ids in
// sorted order) with a unique constraint, so at most one private room can
// exist per unordered user pair.
type Room struct {
	ID           uuid.UUID  `json:"id"`
	Kind         string     `json:"type"`
	Name         string     `json:"name,omitempty"`
	TeamID       *uuid.UUID `json:"team_id,omitempty"`
	LastActivity time.Time  `json:"last_activity"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Membership ties a user to a room and carries the last-read watermark.
// Messages created after LastReadAt by other authors are unread.
type Membership struct {
	ID         uuid.UUID `json:"id"`
	RoomID     uuid.UUID `json:"room_id"`
	UserID     uuid.UUID `json:"user_id"`
	LastReadAt time.Time `json:"last_read_at"`
	CreatedAt  time.Time `json:"created_at"`
}
