package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/metrics"
)

// OpenPrivateChatRequest represents the private chat request body.
type OpenPrivateChatRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

// OpenPrivateChat finds or creates the private room with another user.
func (h *Handler) OpenPrivateChat(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req OpenPrivateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	room, err := h.chats.OpenPrivateRoom(r.Context(), user.ID, req.UserID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, room)
}

// MyChats returns the caller's chat list with members, unread counts,
// the latest message and live presence per member.
func (h *Handler) MyChats(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	summaries, err := h.chats.ListRooms(r.Context(), user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}

	out := make([]map[string]any, len(summaries))
	for i, s := range summaries {
		members := make([]map[string]any, len(s.Members))
		for j := range s.Members {
			status := h.presence.GetStatus(r.Context(), s.Members[j].ID)
			members[j] = map[string]any{
				"user":     &s.Members[j],
				"isOnline": status.IsOnline,
			}
		}
		out[i] = map[string]any{
			"room":        s.Room,
			"members":     members,
			"unreadCount": s.UnreadCount,
			"lastMessage": s.LastMessage,
		}
	}
	h.JSON(w, http.StatusOK, map[string]any{"chats": out})
}

// GetChatMessages returns a page of room history, newest first.
func (h *Handler) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	roomID, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid chat room ID")
		return
	}
	limit, offset := pagination(r, 50, 100)

	messages, err := h.chats.ListMessages(r.Context(), roomID, user.ID, limit, offset)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// SendChatMessageRequest represents the message request body.
type SendChatMessageRequest struct {
	Message string `json:"message"`
	Type    string `json:"message_type"`
}

// SendChatMessage appends a message to a room. Delivery to live sessions
// happens inside the chat service.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	roomID, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid chat room ID")
		return
	}

	var req SendChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.chats.SendMessage(r.Context(), roomID, user.ID, req.Message, req.Type)
	if err != nil {
		h.AppError(w, err)
		return
	}

	if room, err := h.pg.GetRoom(r.Context(), roomID); err == nil && room != nil {
		metrics.MessagesSent.WithLabelValues(room.Kind).Inc()
	}
	h.JSON(w, http.StatusCreated, msg)
}

// MarkChatRead moves the caller's read watermark for the room to now and
// returns the resulting unread count.
func (h *Handler) MarkChatRead(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	roomID, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid chat room ID")
		return
	}

	unread, err := h.chats.MarkRead(r.Context(), roomID, user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"status": "read", "unreadCount": unread})
}

// LeaveChat hides a private conversation from the caller's chat list
// without deleting it for the other side.
func (h *Handler) LeaveChat(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	roomID, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid chat room ID")
		return
	}

	if err := h.chats.LeaveRoom(r.Context(), roomID, user.ID); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// DeleteChat removes a private conversation for both participants.
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	roomID, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid chat room ID")
		return
	}

	if err := h.chats.DeletePrivateRoom(r.Context(), roomID, user.ID); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ChatUnreadCount returns the caller's unread count for one room.
func (h *Handler) ChatUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	roomID, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid chat room ID")
		return
	}

	count, err := h.chats.UnreadCount(r.Context(), roomID, user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"unreadCount": count})
}

// TotalUnreadCount returns the caller's unread count summed over all
// their rooms.
func (h *Handler) TotalUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	count, err := h.chats.TotalUnread(r.Context(), user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"unreadCount": count})
}

// ChatMembers returns the public profiles of the room's members.
func (h *Handler) ChatMembers(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	roomID, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid chat room ID")
		return
	}

	members, err := h.chats.ListMembers(r.Context(), roomID, user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"members": members})
}

// ServeWS upgrades an authenticated request into a live session.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	h.hub.ServeWS(w, r, user.ID, map[string]string{
		"username": user.Username,
		"region":   user.Region,
	})
}
