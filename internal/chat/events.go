package chat

import (
	"github.com/google/uuid"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

// Event types pushed to connected clients.
const (
	EventNewMessage        = "newMessage"
	EventUnreadCountUpdate = "unreadCountUpdate"
	EventChatRead          = "chatRead"
	EventUserReadMessages  = "userReadMessages"
	EventUserTyping        = "userTyping"
	EventUserOnline        = "userOnline"
	EventUserOffline       = "userOffline"
	EventNotification      = "notification"
)

// Event is the envelope for everything pushed over a live connection.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewMessagePayload accompanies EventNewMessage.
type NewMessagePayload struct {
	RoomID  uuid.UUID       `json:"chatRoomId"`
	Message *models.Message `json:"message"`
}

// UnreadPayload accompanies EventUnreadCountUpdate. Each recipient gets
// their own count.
type UnreadPayload struct {
	RoomID      uuid.UUID `json:"chatRoomId"`
	UnreadCount int64     `json:"unreadCount"`
}

// ChatReadPayload accompanies EventChatRead, confirming the mark back to
// the reader's own sessions along with their resulting unread count.
type ChatReadPayload struct {
	RoomID      uuid.UUID `json:"chatRoomId"`
	UnreadCount int64     `json:"unreadCount"`
}

// UserReadPayload accompanies EventUserReadMessages, telling the other
// members who caught up.
type UserReadPayload struct {
	RoomID   uuid.UUID `json:"chatRoomId"`
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
}

// TypingPayload accompanies EventUserTyping.
type TypingPayload struct {
	RoomID   uuid.UUID `json:"chatRoomId"`
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	IsTyping bool      `json:"isTyping"`
}

// PresencePayload accompanies EventUserOnline and EventUserOffline.
type PresencePayload struct {
	UserID uuid.UUID `json:"userId"`
}

// Fanout delivers events to live connections. The websocket hub implements
// it; the service never addresses individual sockets, only rooms and users.
type Fanout interface {
	// ToRoom sends the event to every connection subscribed to the room.
	ToRoom(roomID uuid.UUID, event Event)
	// ToRoomExcept sends to the room, skipping all of one user's sessions.
	ToRoomExcept(roomID, except uuid.UUID, event Event)
	// ToUser sends the event to all of one user's sessions.
	ToUser(userID uuid.UUID, event Event)
}

// NopFanout discards all events. Used when no live layer is attached.
type NopFanout struct{}

func (NopFanout) ToRoom(uuid.UUID, Event)                  {}
func (NopFanout) ToRoomExcept(uuid.UUID, uuid.UUID, Event) {}
func (NopFanout) ToUser(uuid.UUID, Event)                  {}
