package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/chat"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum command size allowed from peer.
	maxCommandSize = 4096

	sendBuffer = 256
)

var errNotRoomMember = errors.New("not a member of this chat")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client commands.
const (
	cmdSubscribeToChats  = "subscribeToChats"
	cmdJoinChat          = "joinChat"
	cmdLeaveChat         = "leaveChat"
	cmdMarkChatAsRead    = "markChatAsRead"
	cmdTyping            = "typing"
	cmdUserActivity      = "userActivity"
	cmdSubscribeNotify   = "subscribeToNotifications"
	cmdUnsubscribeNotify = "unsubscribeFromNotifications"
)

type command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type roomCommand struct {
	RoomID uuid.UUID `json:"chatRoomId"`
}

type typingCommand struct {
	RoomID   uuid.UUID `json:"chatRoomId"`
	IsTyping bool      `json:"isTyping"`
}

// Client is one websocket session. A user may hold several at once, each
// with its own room subscriptions.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID    uuid.UUID
	sessionID string
	metadata  map[string]string

	// notifications gates delivery of notification events to this session.
	notifications atomic.Bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, metadata map[string]string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		userID:    userID,
		sessionID: ulid.Make().String(),
		metadata:  metadata,
	}
}

func (c *Client) wantsNotifications() bool {
	return c.notifications.Load()
}

// trySend queues data without blocking. A session that cannot keep up
// drops events; the client resyncs over the REST surface.
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// readPump reads client commands until the connection drops, then
// unregisters the session.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxCommandSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("user_id", c.userID.String()).Msg("websocket read error")
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.sendError("invalid command")
			continue
		}
		if err := c.handle(cmd); err != nil {
			c.sendError(err.Error())
		}
	}
}

func (c *Client) handle(cmd command) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch cmd.Type {
	case cmdSubscribeToChats:
		return c.hub.subscribeAll(ctx, c)

	case cmdJoinChat:
		var rc roomCommand
		if err := json.Unmarshal(cmd.Data, &rc); err != nil {
			return errors.New("invalid chatRoomId")
		}
		return c.hub.joinRoom(ctx, c, rc.RoomID)

	case cmdLeaveChat:
		var rc roomCommand
		if err := json.Unmarshal(cmd.Data, &rc); err != nil {
			return errors.New("invalid chatRoomId")
		}
		c.hub.leaveRoom(c, rc.RoomID)
		return nil

	case cmdMarkChatAsRead:
		var rc roomCommand
		if err := json.Unmarshal(cmd.Data, &rc); err != nil {
			return errors.New("invalid chatRoomId")
		}
		// The resulting count travels on the chatRead event the service
		// fans out to this user's sessions.
		_, err := c.hub.chats.MarkRead(ctx, rc.RoomID, c.userID)
		return err

	case cmdTyping:
		var tc typingCommand
		if err := json.Unmarshal(cmd.Data, &tc); err != nil {
			return errors.New("invalid typing payload")
		}
		return c.hub.chats.Typing(ctx, tc.RoomID, c.userID, tc.IsTyping)

	case cmdUserActivity:
		return c.hub.presence.Touch(ctx, c.userID, c.metadata)

	case cmdSubscribeNotify:
		c.notifications.Store(true)
		return nil

	case cmdUnsubscribeNotify:
		c.notifications.Store(false)
		return nil

	default:
		return errors.New("unknown command type")
	}
}

func (c *Client) sendError(msg string) {
	data, err := json.Marshal(chat.Event{Type: "error", Data: map[string]string{"message": msg}})
	if err != nil {
		return
	}
	c.trySend(data)
}

// writePump writes queued events to the connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades the request and runs the session. The caller has
// already authenticated the user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID, metadata map[string]string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h, conn, userID, metadata)
	h.register(client)

	go client.writePump()
	go client.readPump()
}
