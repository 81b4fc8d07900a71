package models

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageSystem = "system"
)

// Message represents an immutable chat message. CreatedAt defines ordering
// within a room and drives the unread computation.
type Message struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	UserID    uuid.UUID `json:"user_id"`
	Body      string    `json:"message"`
	Kind      string    `json:"message_type"`
	CreatedAt time.Time `json:"created_at"`

	// Author is populated on reads that join the users table.
	Author *User `json:"user,omitempty"`
}
