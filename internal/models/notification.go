package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	NotifyApplication = "application"
	NotifyInvitation  = "invitation"
	NotifyMessage     = "message"
	NotifySystem      = "system"
)

// Notification is a persisted in-app notification.
type Notification struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Type              string     `json:"type"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	IsRead            bool       `json:"is_read"`
	RelatedEntityType string     `json:"related_entity_type,omitempty"`
	RelatedEntityID   *uuid.UUID `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Block records that blocker does not want contact with blocked. The row is
// directional; messaging checks treat it as symmetric.
type Block struct {
	ID            uuid.UUID `json:"id"`
	BlockerUserID uuid.UUID `json:"blocker_user_id"`
	BlockedUserID uuid.UUID `json:"blocked_user_id"`
	CreatedAt     time.Time `json:"created_at"`
}
