// Package chat implements the messaging workflows: private and team rooms,
// message delivery, read watermarks and unread counts. Unread counts are
// always computed from the message log against the reader's watermark,
// never stored, so they cannot drift.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/apperr"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/store"
)

const maxMessageLength = 2000

// Service coordinates the chat workflows between the store and the live
// fanout layer.
type Service struct {
	store  store.DataStore
	fanout Fanout
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a chat service. Pass NopFanout when no live layer is
// attached.
func NewService(st store.DataStore, fanout Fanout, log zerolog.Logger) *Service {
	if fanout == nil {
		fanout = NopFanout{}
	}
	return &Service{
		store:  st,
		fanout: fanout,
		log:    log,
		now:    time.Now,
	}
}

// SetFanout swaps the fanout sink. Used during startup wiring, before any
// traffic flows.
func (s *Service) SetFanout(f Fanout) {
	s.fanout = f
}

// RoomSummary is one entry of a user's chat list.
type RoomSummary struct {
	Room        models.Room     `json:"room"`
	Members     []models.User   `json:"members"`
	UnreadCount int64           `json:"unreadCount"`
	LastMessage *models.Message `json:"lastMessage,omitempty"`
}

// OpenPrivateRoom finds or creates the private room between the caller and
// the other user. Re-opening an existing conversation returns the same
// room; two users opening it concurrently converge on one row.
func (s *Service) OpenPrivateRoom(ctx context.Context, me, other uuid.UUID) (*models.Room, error) {
	if me == other {
		return nil, apperr.Validationf("cannot open a chat with yourself")
	}

	target, err := s.store.GetUserByID(ctx, other)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.ErrNotFound
	}

	blocked, err := s.store.IsBlockedEither(ctx, me, other)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperr.Forbiddenf("messaging is not available between these users")
	}

	room, created, err := s.store.GetOrCreatePrivateRoom(ctx, me, other)
	if err != nil {
		return nil, err
	}

	// Memberships are idempotent, so ensuring them on every open also
	// heals a room one side previously left.
	now := s.now()
	if _, err := s.store.EnsureMembership(ctx, room.ID, me, now); err != nil {
		return nil, err
	}
	if _, err := s.store.EnsureMembership(ctx, room.ID, other, now); err != nil {
		return nil, err
	}

	if created {
		s.log.Info().
			Str("room_id", room.ID.String()).
			Str("user_id", me.String()).
			Str("other_id", other.String()).
			Msg("private room created")
	}
	return room, nil
}

// ListRooms returns the caller's chat list ordered by recent activity, with
// members, the latest message and the caller's unread count per room.
func (s *Service) ListRooms(ctx context.Context, userID uuid.UUID) ([]RoomSummary, error) {
	rooms, err := s.store.ListUserRooms(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		members, err := s.roomMemberProfiles(ctx, room.ID)
		if err != nil {
			return nil, err
		}

		unread, err := s.UnreadCount(ctx, room.ID, userID)
		if err != nil {
			return nil, err
		}

		var last *models.Message
		recent, err := s.store.ListMessages(ctx, room.ID, 1, 0)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			last = &recent[0]
		}

		summaries = append(summaries, RoomSummary{
			Room:        room,
			Members:     members,
			UnreadCount: unread,
			LastMessage: last,
		})
	}
	return summaries, nil
}

// GetRoom returns the room if the caller is a member.
func (s *Service) GetRoom(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	if _, err := s.requireMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.store.GetRoom(ctx, roomID)
}

// ListMembers returns the public profiles of everyone in the room. Caller
// must be a member.
func (s *Service) ListMembers(ctx context.Context, roomID, userID uuid.UUID) ([]models.User, error) {
	if _, err := s.requireMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.roomMemberProfiles(ctx, roomID)
}

// ListMessages returns a page of room history, newest first. Caller must
// be a member. Reading history does not move the read watermark.
func (s *Service) ListMessages(ctx context.Context, roomID, userID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if _, err := s.requireMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, roomID, limit, offset)
}

// SendMessage appends a message to the room and fans it out: the full
// message to every room member, plus a per-recipient unread count to each
// other member's sessions.
func (s *Service) SendMessage(ctx context.Context, roomID, authorID uuid.UUID, body, kind string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validationf("message cannot be empty")
	}
	if len(body) > maxMessageLength {
		return nil, apperr.Validationf("message is too long")
	}
	switch kind {
	case "":
		kind = models.MessageText
	case models.MessageText, models.MessageImage, models.MessageSystem:
	default:
		return nil, apperr.Validationf("unknown message type %q", kind)
	}

	if _, err := s.requireMembership(ctx, roomID, authorID); err != nil {
		return nil, err
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, apperr.ErrNotFound
	}

	members, err := s.store.ListRoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	// A block between the two parties freezes a private room without
	// deleting its history.
	if room.Kind == models.RoomPrivate {
		for _, m := range members {
			if m.UserID == authorID {
				continue
			}
			blocked, err := s.store.IsBlockedEither(ctx, authorID, m.UserID)
			if err != nil {
				return nil, err
			}
			if blocked {
				return nil, apperr.Forbiddenf("messaging is not available between these users")
			}
		}
	}

	msg, err := s.store.CreateMessage(ctx, &models.Message{
		RoomID: roomID,
		UserID: authorID,
		Body:   body,
		Kind:   kind,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchRoomActivity(ctx, roomID, msg.CreatedAt); err != nil {
		s.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("room activity update failed")
	}

	if msg.Author == nil {
		if author, err := s.store.GetUserByID(ctx, authorID); err == nil && author != nil {
			msg.Author = author.PublicProfile()
		}
	}

	s.fanout.ToRoom(roomID, Event{
		Type: EventNewMessage,
		Data: NewMessagePayload{RoomID: roomID, Message: msg},
	})

	for _, m := range members {
		if m.UserID == authorID {
			continue
		}
		unread, err := s.store.CountMessagesAfter(ctx, roomID, m.UserID, &m.LastReadAt)
		if err != nil {
			s.log.Warn().Err(err).
				Str("room_id", roomID.String()).
				Str("user_id", m.UserID.String()).
				Msg("unread count failed")
			continue
		}
		s.fanout.ToUser(m.UserID, Event{
			Type: EventUnreadCountUpdate,
			Data: UnreadPayload{RoomID: roomID, UnreadCount: unread},
		})
	}

	return msg, nil
}

// MarkRead moves the caller's read watermark to now and returns the
// resulting unread count, zero once the mark lands. It confirms the mark
// back to the caller's sessions and tells the other members the caller
// caught up. Idempotent: marking an already-read room emits nothing.
func (s *Service) MarkRead(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	if _, err := s.requireMembership(ctx, roomID, userID); err != nil {
		return 0, err
	}

	at := s.now()
	updated, err := s.store.MarkRead(ctx, roomID, userID, at)
	if err != nil {
		return 0, err
	}
	unread, err := s.UnreadCount(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	if !updated {
		return unread, nil
	}

	s.fanout.ToUser(userID, Event{
		Type: EventChatRead,
		Data: ChatReadPayload{RoomID: roomID, UnreadCount: unread},
	})
	s.fanout.ToRoomExcept(roomID, userID, Event{
		Type: EventUserReadMessages,
		Data: UserReadPayload{RoomID: roomID, UserID: userID, Username: s.username(ctx, userID)},
	})
	return unread, nil
}

// DeletePrivateRoom removes a private conversation, its memberships and
// its history, for both sides. Team rooms live and die with their team
// and cannot be deleted here.
func (s *Service) DeletePrivateRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	if _, err := s.requireMembership(ctx, roomID, userID); err != nil {
		return err
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return apperr.ErrNotFound
	}
	if room.Kind != models.RoomPrivate {
		return apperr.Forbiddenf("only private chats can be deleted")
	}
	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	s.log.Info().
		Str("room_id", roomID.String()).
		Str("user_id", userID.String()).
		Msg("private room deleted")
	return nil
}

// LeaveRoom drops the caller's membership in a private room, hiding the
// conversation from their chat list. The other side keeps theirs, and
// re-opening the conversation restores the membership with a fresh read
// watermark. Team room membership follows team membership and cannot be
// dropped here.
func (s *Service) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	if _, err := s.requireMembership(ctx, roomID, userID); err != nil {
		return err
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return apperr.ErrNotFound
	}
	if room.Kind != models.RoomPrivate {
		return apperr.Forbiddenf("team chat membership follows team membership")
	}
	return s.store.RemoveMembership(ctx, roomID, userID)
}

// UnreadCount computes the caller's unread count for one room: messages
// created after the read watermark by other authors.
func (s *Service) UnreadCount(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	m, err := s.requireMembership(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	return s.store.CountMessagesAfter(ctx, roomID, userID, &m.LastReadAt)
}

// TotalUnread sums the caller's unread counts across all their rooms.
func (s *Service) TotalUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	memberships, err := s.store.ListUserMemberships(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, m := range memberships {
		n, err := s.store.CountMessagesAfter(ctx, m.RoomID, userID, &m.LastReadAt)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// RoomIDs returns the ids of every room the user belongs to. The live
// layer uses it to subscribe a fresh connection to all of its rooms.
func (s *Service) RoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	memberships, err := s.store.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.RoomID)
	}
	return ids, nil
}

// IsMember reports whether the user belongs to the room. The live layer
// uses it to authorize room subscriptions.
func (s *Service) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	m, err := s.store.GetMembership(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// Typing relays a typing indicator to the other members of the room. It is
// never persisted.
func (s *Service) Typing(ctx context.Context, roomID, userID uuid.UUID, isTyping bool) error {
	if _, err := s.requireMembership(ctx, roomID, userID); err != nil {
		return err
	}
	s.fanout.ToRoomExcept(roomID, userID, Event{
		Type: EventUserTyping,
		Data: TypingPayload{RoomID: roomID, UserID: userID, Username: s.username(ctx, userID), IsTyping: isTyping},
	})
	return nil
}

// username resolves a display name for fanout payloads. Best effort: an
// event without a name still beats no event.
func (s *Service) username(ctx context.Context, userID uuid.UUID) string {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil || u == nil {
		return ""
	}
	return u.Username
}

func (s *Service) requireMembership(ctx context.Context, roomID, userID uuid.UUID) (*models.Membership, error) {
	m, err := s.store.GetMembership(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.ErrNotMember
	}
	return m, nil
}

func (s *Service) roomMemberProfiles(ctx context.Context, roomID uuid.UUID) ([]models.User, error) {
	memberships, err := s.store.ListRoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(memberships))
	for _, m := range memberships {
		u, err := s.store.GetUserByID(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			users = append(users, *u.PublicProfile())
		}
	}
	return users, nil
}
