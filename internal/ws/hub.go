// Package ws carries the live connection layer: a hub of websocket
// sessions addressable by room and by user, with presence tied to the
// session lifecycle. A user can hold several sessions at once; they go
// offline only when the last one disconnects.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/chat"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/metrics"
)

// ChatService is the slice of the chat workflows the hub drives on behalf
// of connected clients.
type ChatService interface {
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	RoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	MarkRead(ctx context.Context, roomID, userID uuid.UUID) (int64, error)
	Typing(ctx context.Context, roomID, userID uuid.UUID, isTyping bool) error
}

// Presence is the slice of the presence service the hub needs.
type Presence interface {
	SetOnline(ctx context.Context, userID uuid.UUID, metadata map[string]string) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	Touch(ctx context.Context, userID uuid.UUID, metadata map[string]string) error
}

// Publisher forwards locally produced events to the other instances.
// The redis Bridge implements it; nil means single-instance mode.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

const commandTimeout = 10 * time.Second

// Hub is the session registry. It implements chat.Fanout, so the chat
// service can address rooms and users without knowing about sockets.
type Hub struct {
	chats    ChatService
	presence Presence
	log      zerolog.Logger

	// instanceID distinguishes this process on the cross-instance bus so
	// it can skip events it published itself.
	instanceID string

	mu        sync.RWMutex
	rooms     map[uuid.UUID]map[*Client]bool
	users     map[uuid.UUID]map[*Client]bool
	publisher Publisher
}

// NewHub creates a hub. Attach a cross-instance publisher with SetPublisher.
func NewHub(chats ChatService, presence Presence, log zerolog.Logger) *Hub {
	return &Hub{
		chats:      chats,
		presence:   presence,
		log:        log,
		instanceID: ulid.Make().String(),
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		users:      make(map[uuid.UUID]map[*Client]bool),
	}
}

// InstanceID identifies this process on the event bus.
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// SetPublisher attaches the cross-instance event bus. Startup wiring only.
func (h *Hub) SetPublisher(p Publisher) {
	h.publisher = p
}

// register adds a session. The first session of a user flips them online
// and announces it to everyone connected.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	first := len(h.users[c.userID]) == 0
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]bool)
	}
	h.users[c.userID][c] = true
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	h.log.Debug().
		Str("user_id", c.userID.String()).
		Str("session_id", c.sessionID).
		Bool("first_session", first).
		Msg("session registered")

	if first {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := h.presence.SetOnline(ctx, c.userID, c.metadata); err != nil {
			h.log.Warn().Err(err).Str("user_id", c.userID.String()).Msg("set online failed")
		}
		h.Broadcast(chat.Event{
			Type: chat.EventUserOnline,
			Data: chat.PresencePayload{UserID: c.userID},
		})
	}
}

// unregister drops a session. The user goes offline only when this was
// their last one.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	var last bool
	if sessions, ok := h.users[c.userID]; ok && sessions[c] {
		delete(sessions, c)
		close(c.send)
		metrics.WSConnections.Dec()
		if len(sessions) == 0 {
			delete(h.users, c.userID)
			last = true
		}
	}
	for roomID, members := range h.rooms {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()

	h.log.Debug().
		Str("user_id", c.userID.String()).
		Str("session_id", c.sessionID).
		Bool("last_session", last).
		Msg("session unregistered")

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := h.presence.SetOffline(ctx, c.userID); err != nil {
			h.log.Warn().Err(err).Str("user_id", c.userID.String()).Msg("set offline failed")
		}
		h.Broadcast(chat.Event{
			Type: chat.EventUserOffline,
			Data: chat.PresencePayload{UserID: c.userID},
		})
	}
}

// joinRoom subscribes one session to a room after a membership check.
func (h *Hub) joinRoom(ctx context.Context, c *Client, roomID uuid.UUID) error {
	ok, err := h.chats.IsMember(ctx, roomID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotRoomMember
	}
	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
	h.mu.Unlock()
	return nil
}

func (h *Hub) leaveRoom(c *Client, roomID uuid.UUID) {
	h.mu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()
}

// subscribeAll joins the session to every room the user is a member of.
func (h *Hub) subscribeAll(ctx context.Context, c *Client) error {
	ids, err := h.chats.RoomIDs(ctx, c.userID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	for _, roomID := range ids {
		if h.rooms[roomID] == nil {
			h.rooms[roomID] = make(map[*Client]bool)
		}
		h.rooms[roomID][c] = true
	}
	h.mu.Unlock()
	return nil
}

// ToRoom implements chat.Fanout.
func (h *Hub) ToRoom(roomID uuid.UUID, event chat.Event) {
	h.deliverRoom(roomID, uuid.Nil, event)
	h.publish(Envelope{Scope: scopeRoom, RoomID: roomID, Event: event})
}

// ToRoomExcept implements chat.Fanout.
func (h *Hub) ToRoomExcept(roomID, except uuid.UUID, event chat.Event) {
	h.deliverRoom(roomID, except, event)
	h.publish(Envelope{Scope: scopeRoomExcept, RoomID: roomID, ExceptID: except, Event: event})
}

// ToUser implements chat.Fanout.
func (h *Hub) ToUser(userID uuid.UUID, event chat.Event) {
	h.deliverUser(userID, event)
	h.publish(Envelope{Scope: scopeUser, UserID: userID, Event: event})
}

// Broadcast sends the event to every connected session.
func (h *Hub) Broadcast(event chat.Event) {
	h.deliverAll(event)
	h.publish(Envelope{Scope: scopeAll, Event: event})
}

func (h *Hub) deliverRoom(roomID, except uuid.UUID, event chat.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.Type).Msg("event marshal failed")
		return
	}
	metrics.WSEventsSent.WithLabelValues(event.Type).Inc()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		if except != uuid.Nil && c.userID == except {
			continue
		}
		if event.Type == chat.EventNotification && !c.wantsNotifications() {
			continue
		}
		c.trySend(data)
	}
}

func (h *Hub) deliverUser(userID uuid.UUID, event chat.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.Type).Msg("event marshal failed")
		return
	}
	metrics.WSEventsSent.WithLabelValues(event.Type).Inc()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		if event.Type == chat.EventNotification && !c.wantsNotifications() {
			continue
		}
		c.trySend(data)
	}
}

func (h *Hub) deliverAll(event chat.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.Type).Msg("event marshal failed")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sessions := range h.users {
		for c := range sessions {
			c.trySend(data)
		}
	}
}

func (h *Hub) publish(env Envelope) {
	if h.publisher == nil {
		return
	}
	env.Instance = h.instanceID
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, env); err != nil {
		h.log.Warn().Err(err).Str("event", env.Event.Type).Msg("event publish failed")
	}
}

// Deliver applies an envelope received from another instance to the local
// registry. Self-published envelopes were already delivered locally.
func (h *Hub) Deliver(env Envelope) {
	if env.Instance == h.instanceID {
		return
	}
	switch env.Scope {
	case scopeRoom:
		h.deliverRoom(env.RoomID, uuid.Nil, env.Event)
	case scopeRoomExcept:
		h.deliverRoom(env.RoomID, env.ExceptID, env.Event)
	case scopeUser:
		h.deliverUser(env.UserID, env.Event)
	case scopeAll:
		h.deliverAll(env.Event)
	}
}

// SessionCount reports the number of live sessions for a user.
func (h *Hub) SessionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// ConnectionCount reports the total number of live sessions.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, sessions := range h.users {
		n += len(sessions)
	}
	return n
}
