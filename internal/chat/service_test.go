package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/apperr"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/store"
)

type memberKey struct {
	room uuid.UUID
	user uuid.UUID
}

type pairKey struct {
	a uuid.UUID
	b uuid.UUID
}

// fakeStore implements the slice of DataStore the chat service touches.
// Unimplemented methods panic through the embedded nil interface.
type fakeStore struct {
	store.DataStore

	users       map[uuid.UUID]*models.User
	rooms       map[uuid.UUID]*models.Room
	privatePair map[pairKey]uuid.UUID
	memberships map[memberKey]*models.Membership
	messages    []models.Message
	blocks      map[pairKey]bool

	now func() time.Time
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		users:       map[uuid.UUID]*models.User{},
		rooms:       map[uuid.UUID]*models.Room{},
		privatePair: map[pairKey]uuid.UUID{},
		memberships: map[memberKey]*models.Membership{},
		blocks:      map[pairKey]bool{},
		now:         now,
	}
}

func sortedPair(a, b uuid.UUID) pairKey {
	if a.String() > b.String() {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

func (f *fakeStore) addUser(username string) uuid.UUID {
	id := uuid.New()
	f.users[id] = &models.User{ID: id, Username: username, Email: username + "@example.com"}
	return id
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeStore) IsBlockedEither(_ context.Context, a, b uuid.UUID) (bool, error) {
	return f.blocks[sortedPair(a, b)], nil
}

func (f *fakeStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	return f.rooms[id], nil
}

func (f *fakeStore) GetOrCreatePrivateRoom(_ context.Context, a, b uuid.UUID) (*models.Room, bool, error) {
	key := sortedPair(a, b)
	if id, ok := f.privatePair[key]; ok {
		return f.rooms[id], false, nil
	}
	room := &models.Room{ID: uuid.New(), Kind: models.RoomPrivate, LastActivity: f.now(), CreatedAt: f.now()}
	f.rooms[room.ID] = room
	f.privatePair[key] = room.ID
	return room, true, nil
}

func (f *fakeStore) EnsureMembership(_ context.Context, roomID, userID uuid.UUID, at time.Time) (*models.Membership, error) {
	key := memberKey{room: roomID, user: userID}
	if m, ok := f.memberships[key]; ok {
		return m, nil
	}
	m := &models.Membership{ID: uuid.New(), RoomID: roomID, UserID: userID, LastReadAt: at, CreatedAt: at}
	f.memberships[key] = m
	return m, nil
}

func (f *fakeStore) GetMembership(_ context.Context, roomID, userID uuid.UUID) (*models.Membership, error) {
	return f.memberships[memberKey{room: roomID, user: userID}], nil
}

func (f *fakeStore) ListRoomMembers(_ context.Context, roomID uuid.UUID) ([]models.Membership, error) {
	var out []models.Membership
	for _, m := range f.memberships {
		if m.RoomID == roomID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUserMemberships(_ context.Context, userID uuid.UUID) ([]models.Membership, error) {
	var out []models.Membership
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUserRooms(_ context.Context, userID uuid.UUID) ([]models.Room, error) {
	var out []models.Room
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, *f.rooms[m.RoomID])
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m *models.Message) (*models.Message, error) {
	msg := *m
	msg.ID = uuid.New()
	msg.CreatedAt = f.now()
	f.messages = append(f.messages, msg)
	out := msg
	return &out, nil
}

func (f *fakeStore) ListMessages(_ context.Context, roomID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var all []models.Message
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].RoomID == roomID {
			all = append(all, f.messages[i])
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeStore) CountMessagesAfter(_ context.Context, roomID, excludeAuthor uuid.UUID, after *time.Time) (int64, error) {
	var n int64
	for _, m := range f.messages {
		if m.RoomID != roomID || m.UserID == excludeAuthor {
			continue
		}
		if after != nil && !m.CreatedAt.After(*after) {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeStore) TouchRoomActivity(_ context.Context, id uuid.UUID, at time.Time) error {
	if r, ok := f.rooms[id]; ok {
		r.LastActivity = at
	}
	return nil
}

func (f *fakeStore) MarkRead(_ context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error) {
	m, ok := f.memberships[memberKey{room: roomID, user: userID}]
	if !ok {
		return false, nil
	}
	if !at.After(m.LastReadAt) {
		return false, nil
	}
	m.LastReadAt = at
	return true, nil
}

func (f *fakeStore) RemoveMembership(_ context.Context, roomID, userID uuid.UUID) error {
	delete(f.memberships, memberKey{room: roomID, user: userID})
	return nil
}

func (f *fakeStore) DeleteRoom(_ context.Context, id uuid.UUID) error {
	delete(f.rooms, id)
	for key := range f.memberships {
		if key.room == id {
			delete(f.memberships, key)
		}
	}
	var kept []models.Message
	for _, m := range f.messages {
		if m.RoomID != id {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	for pair, roomID := range f.privatePair {
		if roomID == id {
			delete(f.privatePair, pair)
		}
	}
	return nil
}

type sentEvent struct {
	target string
	id     uuid.UUID
	except uuid.UUID
	event  Event
}

// recordingFanout captures every event the service emits.
type recordingFanout struct {
	sent []sentEvent
}

func (r *recordingFanout) ToRoom(roomID uuid.UUID, e Event) {
	r.sent = append(r.sent, sentEvent{target: "room", id: roomID, event: e})
}

func (r *recordingFanout) ToRoomExcept(roomID, except uuid.UUID, e Event) {
	r.sent = append(r.sent, sentEvent{target: "roomExcept", id: roomID, except: except, event: e})
}

func (r *recordingFanout) ToUser(userID uuid.UUID, e Event) {
	r.sent = append(r.sent, sentEvent{target: "user", id: userID, event: e})
}

func (r *recordingFanout) ofType(eventType string) []sentEvent {
	var out []sentEvent
	for _, s := range r.sent {
		if s.event.Type == eventType {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *fakeStore
	fanout *recordingFanout
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &start
	now := func() time.Time { return *clock }
	fs := newFakeStore(now)
	fanout := &recordingFanout{}
	svc := NewService(fs, fanout, zerolog.Nop())
	svc.now = now
	return &fixture{svc: svc, store: fs, fanout: fanout, clock: clock}
}

func (fx *fixture) advance(d time.Duration) {
	*fx.clock = fx.clock.Add(d)
}

func TestOpenPrivateRoom(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")

	room, err := fx.svc.OpenPrivateRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("OpenPrivateRoom: %v", err)
	}
	if room.Kind != models.RoomPrivate {
		t.Fatalf("kind = %q", room.Kind)
	}

	for _, id := range []uuid.UUID{alice, bob} {
		if fx.store.memberships[memberKey{room: room.ID, user: id}] == nil {
			t.Fatalf("missing membership for %s", id)
		}
	}

	// Opening from the other side returns the same room.
	again, err := fx.svc.OpenPrivateRoom(ctx, bob, alice)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again.ID != room.ID {
		t.Fatalf("expected the same room, got %s and %s", room.ID, again.ID)
	}
}

func TestOpenPrivateRoomWithSelf(t *testing.T) {
	fx := newFixture(t)
	alice := fx.store.addUser("alice")

	_, err := fx.svc.OpenPrivateRoom(context.Background(), alice, alice)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestOpenPrivateRoomBlocked(t *testing.T) {
	fx := newFixture(t)
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	fx.store.blocks[sortedPair(alice, bob)] = true

	_, err := fx.svc.OpenPrivateRoom(context.Background(), alice, bob)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	_, err = fx.svc.OpenPrivateRoom(context.Background(), bob, alice)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("reverse direction err = %v, want forbidden", err)
	}
}

func TestSendMessageFansOut(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	fx.advance(time.Minute)
	msg, err := fx.svc.SendMessage(ctx, room.ID, alice, "gl hf", "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Kind != models.MessageText {
		t.Fatalf("kind = %q, want text default", msg.Kind)
	}
	if msg.Author == nil || msg.Author.Username != "alice" {
		t.Fatalf("author not attached: %+v", msg.Author)
	}
	if msg.Author.Email != "" {
		t.Fatal("author email must not leak")
	}

	news := fx.fanout.ofType(EventNewMessage)
	if len(news) != 1 || news[0].target != "room" || news[0].id != room.ID {
		t.Fatalf("newMessage fanout = %+v", news)
	}

	unreads := fx.fanout.ofType(EventUnreadCountUpdate)
	if len(unreads) != 1 || unreads[0].target != "user" || unreads[0].id != bob {
		t.Fatalf("unread fanout = %+v", unreads)
	}
	if got := unreads[0].event.Data.(UnreadPayload).UnreadCount; got != 1 {
		t.Fatalf("unread pushed = %d, want 1", got)
	}
}

func TestSendMessageValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "   ", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank body err = %v", err)
	}
	long := strings.Repeat("a", maxMessageLength+1)
	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, long, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("long body err = %v", err)
	}
	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "hi", "voice"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad kind err = %v", err)
	}

	outsider := fx.store.addUser("eve")
	if _, err := fx.svc.SendMessage(ctx, room.ID, outsider, "hi", ""); !errors.Is(err, apperr.ErrNotMember) {
		t.Fatalf("outsider err = %v", err)
	}
}

func TestSendMessageBlockedFreezesRoom(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	fx.store.blocks[sortedPair(alice, bob)] = true

	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "hey", ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("blocker send err = %v", err)
	}
	if _, err := fx.svc.SendMessage(ctx, room.ID, bob, "hey", ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("blocked send err = %v", err)
	}
}

func TestUnreadCountLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	fx.advance(10 * time.Second)
	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "first", ""); err != nil {
		t.Fatal(err)
	}
	fx.advance(10 * time.Second)
	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "second", ""); err != nil {
		t.Fatal(err)
	}

	if n, _ := fx.svc.UnreadCount(ctx, room.ID, bob); n != 2 {
		t.Fatalf("bob unread = %d, want 2", n)
	}
	// Own messages never count as unread.
	if n, _ := fx.svc.UnreadCount(ctx, room.ID, alice); n != 0 {
		t.Fatalf("alice unread = %d, want 0", n)
	}

	fx.advance(10 * time.Second)
	if n, err := fx.svc.MarkRead(ctx, room.ID, bob); err != nil || n != 0 {
		t.Fatalf("MarkRead = %d, %v; want 0", n, err)
	}
	if n, _ := fx.svc.UnreadCount(ctx, room.ID, bob); n != 0 {
		t.Fatalf("bob unread after read = %d, want 0", n)
	}

	fx.advance(10 * time.Second)
	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "third", ""); err != nil {
		t.Fatal(err)
	}
	if n, _ := fx.svc.UnreadCount(ctx, room.ID, bob); n != 1 {
		t.Fatalf("bob unread after new message = %d, want 1", n)
	}
}

func TestMarkReadEvents(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	fx.advance(time.Second)
	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "ping", ""); err != nil {
		t.Fatal(err)
	}

	fx.advance(time.Second)
	unread, err := fx.svc.MarkRead(ctx, room.ID, bob)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if unread != 0 {
		t.Fatalf("unread after mark = %d, want 0", unread)
	}

	reads := fx.fanout.ofType(EventChatRead)
	if len(reads) != 1 || reads[0].target != "user" || reads[0].id != bob {
		t.Fatalf("chatRead fanout = %+v", reads)
	}
	if p := reads[0].event.Data.(ChatReadPayload); p.RoomID != room.ID || p.UnreadCount != 0 {
		t.Fatalf("chatRead payload = %+v", p)
	}
	peers := fx.fanout.ofType(EventUserReadMessages)
	if len(peers) != 1 || peers[0].target != "roomExcept" || peers[0].except != bob {
		t.Fatalf("userReadMessages fanout = %+v", peers)
	}
	if p := peers[0].event.Data.(UserReadPayload); p.UserID != bob || p.Username != "bob" {
		t.Fatalf("userReadMessages payload = %+v", p)
	}

	// Marking again without new activity must stay silent.
	before := len(fx.fanout.sent)
	if _, err := fx.svc.MarkRead(ctx, room.ID, bob); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if len(fx.fanout.sent) != before {
		t.Fatal("idempotent mark-read must not emit events")
	}
}

func TestTotalUnread(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	carol := fx.store.addUser("carol")

	roomAB, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)
	roomCB, _ := fx.svc.OpenPrivateRoom(ctx, carol, bob)

	fx.advance(time.Second)
	if _, err := fx.svc.SendMessage(ctx, roomAB.ID, alice, "one", ""); err != nil {
		t.Fatal(err)
	}
	fx.advance(time.Second)
	if _, err := fx.svc.SendMessage(ctx, roomCB.ID, carol, "two", ""); err != nil {
		t.Fatal(err)
	}
	fx.advance(time.Second)
	if _, err := fx.svc.SendMessage(ctx, roomCB.ID, carol, "three", ""); err != nil {
		t.Fatal(err)
	}

	if n, err := fx.svc.TotalUnread(ctx, bob); err != nil || n != 3 {
		t.Fatalf("total unread = %d, %v; want 3", n, err)
	}
}

func TestListRooms(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	fx.advance(time.Second)
	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "hello", ""); err != nil {
		t.Fatal(err)
	}

	summaries, err := fx.svc.ListRooms(ctx, bob)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("rooms = %d, want 1", len(summaries))
	}
	s := summaries[0]
	if s.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", s.UnreadCount)
	}
	if s.LastMessage == nil || s.LastMessage.Body != "hello" {
		t.Fatalf("lastMessage = %+v", s.LastMessage)
	}
	if len(s.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(s.Members))
	}
	for _, m := range s.Members {
		if m.Email != "" {
			t.Fatal("member emails must not leak")
		}
	}
}

func TestDeletePrivateRoom(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	outsider := fx.store.addUser("eve")
	if err := fx.svc.DeletePrivateRoom(ctx, room.ID, outsider); !errors.Is(err, apperr.ErrNotMember) {
		t.Fatalf("outsider delete err = %v", err)
	}

	if err := fx.svc.DeletePrivateRoom(ctx, room.ID, bob); err != nil {
		t.Fatalf("DeletePrivateRoom: %v", err)
	}
	if fx.store.rooms[room.ID] != nil {
		t.Fatal("room should be gone")
	}

	// A fresh conversation after deletion gets a new room.
	again, err := fx.svc.OpenPrivateRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("reopen after delete: %v", err)
	}
	if again.ID == room.ID {
		t.Fatal("deleted room must not be resurrected")
	}
}

func TestLeaveRoomHidesOneSide(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	if err := fx.svc.LeaveRoom(ctx, room.ID, bob); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}

	rooms, err := fx.svc.ListRooms(ctx, bob)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 0 {
		t.Fatalf("bob still sees %d rooms after leaving", len(rooms))
	}
	// The other side keeps the conversation.
	rooms, err = fx.svc.ListRooms(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 {
		t.Fatalf("alice rooms = %d, want 1", len(rooms))
	}

	// Re-opening restores bob's membership in the same room.
	again, err := fx.svc.OpenPrivateRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again.ID != room.ID {
		t.Fatal("reopening must reuse the existing room")
	}
	if fx.store.memberships[memberKey{room: room.ID, user: bob}] == nil {
		t.Fatal("bob's membership should be restored")
	}
}

func TestDeleteTeamRoomForbidden(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")

	room := &models.Room{ID: uuid.New(), Kind: models.RoomTeam}
	fx.store.rooms[room.ID] = room
	fx.store.memberships[memberKey{room: room.ID, user: alice}] = &models.Membership{
		ID: uuid.New(), RoomID: room.ID, UserID: alice,
	}

	if err := fx.svc.DeletePrivateRoom(ctx, room.ID, alice); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("team room delete err = %v, want forbidden", err)
	}
}

func TestTypingRelay(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	if err := fx.svc.Typing(ctx, room.ID, alice, true); err != nil {
		t.Fatalf("Typing: %v", err)
	}
	typing := fx.fanout.ofType(EventUserTyping)
	if len(typing) != 1 || typing[0].target != "roomExcept" || typing[0].except != alice {
		t.Fatalf("typing fanout = %+v", typing)
	}
	if p := typing[0].event.Data.(TypingPayload); p.UserID != alice || p.Username != "alice" || !p.IsTyping {
		t.Fatalf("typing payload = %+v", p)
	}

	outsider := fx.store.addUser("eve")
	if err := fx.svc.Typing(ctx, room.ID, outsider, true); !errors.Is(err, apperr.ErrNotMember) {
		t.Fatalf("outsider typing err = %v", err)
	}
}

// TestReadEventWireFields pins the JSON field names clients depend on for
// the read and typing events.
func TestReadEventWireFields(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	alice := fx.store.addUser("alice")
	bob := fx.store.addUser("bob")
	room, _ := fx.svc.OpenPrivateRoom(ctx, alice, bob)

	fx.advance(time.Second)
	if _, err := fx.svc.SendMessage(ctx, room.ID, alice, "ping", ""); err != nil {
		t.Fatal(err)
	}
	fx.advance(time.Second)
	if _, err := fx.svc.MarkRead(ctx, room.ID, bob); err != nil {
		t.Fatal(err)
	}
	if err := fx.svc.Typing(ctx, room.ID, bob, true); err != nil {
		t.Fatal(err)
	}

	want := map[string][]string{
		EventChatRead:         {"chatRoomId", "unreadCount"},
		EventUserReadMessages: {"chatRoomId", "userId", "username"},
		EventUserTyping:       {"userId", "username", "isTyping"},
	}
	for eventType, keys := range want {
		sent := fx.fanout.ofType(eventType)
		if len(sent) != 1 {
			t.Fatalf("%s events = %d, want 1", eventType, len(sent))
		}
		data, err := json.Marshal(sent[0].event.Data)
		if err != nil {
			t.Fatalf("marshal %s: %v", eventType, err)
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			t.Fatalf("unmarshal %s: %v", eventType, err)
		}
		for _, key := range keys {
			if _, ok := fields[key]; !ok {
				t.Errorf("%s payload missing %q: %s", eventType, key, data)
			}
		}
	}
}
