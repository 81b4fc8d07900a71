package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/chat"
)

const eventsChannel = "ws_events"

// Envelope scopes.
const (
	scopeRoom       = "room"
	scopeRoomExcept = "roomExcept"
	scopeUser       = "user"
	scopeAll        = "all"
)

// Envelope wraps an event with its addressing for the cross-instance bus.
type Envelope struct {
	Instance string     `json:"instance"`
	Scope    string     `json:"scope"`
	RoomID   uuid.UUID  `json:"roomId,omitempty"`
	UserID   uuid.UUID  `json:"userId,omitempty"`
	ExceptID uuid.UUID  `json:"exceptId,omitempty"`
	Event    chat.Event `json:"event"`
}

// Bridge relays hub events between instances over redis pub/sub. Every
// instance publishes its fanout and applies everyone else's; the instance
// id in the envelope prevents double delivery.
type Bridge struct {
	client *redis.Client
	hub    *Hub
	log    zerolog.Logger
}

// NewBridge wires a hub to the shared event channel.
func NewBridge(client *redis.Client, hub *Hub, log zerolog.Logger) *Bridge {
	b := &Bridge{client: client, hub: hub, log: log}
	hub.SetPublisher(b)
	return b
}

// Publish implements Publisher.
func (b *Bridge) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, eventsChannel, data).Err()
}

// Run subscribes to the event channel and applies remote envelopes to the
// local hub until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, eventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn().Err(err).Msg("bad event envelope")
				continue
			}
			b.hub.Deliver(env)
		}
	}
}
