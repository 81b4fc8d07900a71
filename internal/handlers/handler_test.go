package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/api/middleware"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/apperr"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/auth"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/chat"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/presence"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/store"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/ws"
)

type blockPair struct {
	blocker uuid.UUID
	blocked uuid.UUID
}

type chatKey struct {
	room uuid.UUID
	user uuid.UUID
}

// fakeDB implements the slice of DataStore the HTTP handlers touch.
type fakeDB struct {
	store.DataStore

	users         map[uuid.UUID]*models.User
	usersByEmail  map[string]uuid.UUID
	teams         map[uuid.UUID]*models.Team
	blocks        map[blockPair]bool
	applications  map[uuid.UUID]*models.Application
	invitations   map[uuid.UUID]*models.Invitation
	notifications map[uuid.UUID]*models.Notification
	memberships   map[chatKey]*models.Membership
	messages      []models.Message
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:         map[uuid.UUID]*models.User{},
		usersByEmail:  map[string]uuid.UUID{},
		teams:         map[uuid.UUID]*models.Team{},
		blocks:        map[blockPair]bool{},
		applications:  map[uuid.UUID]*models.Application{},
		invitations:   map[uuid.UUID]*models.Invitation{},
		notifications: map[uuid.UUID]*models.Notification{},
		memberships:   map[chatKey]*models.Membership{},
	}
}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	if _, exists := f.usersByEmail[u.Email]; exists {
		return nil, apperr.ErrDuplicate
	}
	user := *u
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = &user
	f.usersByEmail[user.Email] = user.ID
	return &user, nil
}

func (f *fakeDB) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (f *fakeDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	id, ok := f.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	return f.GetUserByID(context.Background(), id)
}

func (f *fakeDB) UpdateUser(_ context.Context, u *models.User) error {
	copied := *u
	f.users[u.ID] = &copied
	return nil
}

func (f *fakeDB) CreateTeamWithCaptain(_ context.Context, t *models.Team) (*models.Team, *models.Room, error) {
	team := *t
	team.ID = uuid.New()
	team.CreatedAt = time.Now()
	team.UpdatedAt = team.CreatedAt
	f.teams[team.ID] = &team
	f.users[t.CaptainID].TeamID = &team.ID
	room := &models.Room{ID: uuid.New(), Kind: models.RoomTeam, TeamID: &team.ID}
	copied := team
	return &copied, room, nil
}

func (f *fakeDB) UpdateTeam(_ context.Context, t *models.Team) error {
	if _, ok := f.teams[t.ID]; !ok {
		return apperr.ErrNotFound
	}
	copied := *t
	f.teams[t.ID] = &copied
	return nil
}

func (f *fakeDB) DeleteTeam(_ context.Context, teamID uuid.UUID) error {
	if _, ok := f.teams[teamID]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.teams, teamID)
	for _, u := range f.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			u.TeamID = nil
		}
	}
	return nil
}

func (f *fakeDB) LeaveTeam(_ context.Context, teamID, userID uuid.UUID) error {
	u, ok := f.users[userID]
	if !ok || u.TeamID == nil || *u.TeamID != teamID {
		return apperr.ErrNotFound
	}
	u.TeamID = nil
	return nil
}

func (f *fakeDB) GetTeam(_ context.Context, id uuid.UUID) (*models.Team, error) {
	t, ok := f.teams[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (f *fakeDB) GetTeamRoom(_ context.Context, teamID uuid.UUID) (*models.Room, error) {
	if _, ok := f.teams[teamID]; !ok {
		return nil, nil
	}
	id := teamID
	return &models.Room{ID: uuid.New(), Kind: models.RoomTeam, TeamID: &id}, nil
}

func (f *fakeDB) ListTeamMembers(_ context.Context, teamID uuid.UUID) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeDB) CreateBlock(_ context.Context, blocker, blocked uuid.UUID) error {
	f.blocks[blockPair{blocker, blocked}] = true
	return nil
}

func (f *fakeDB) DeleteBlock(_ context.Context, blocker, blocked uuid.UUID) error {
	delete(f.blocks, blockPair{blocker, blocked})
	return nil
}

func (f *fakeDB) IsBlockedEither(_ context.Context, a, b uuid.UUID) (bool, error) {
	return f.blocks[blockPair{a, b}] || f.blocks[blockPair{b, a}], nil
}

func (f *fakeDB) ListBlockedUsers(_ context.Context, blocker uuid.UUID) ([]models.User, error) {
	var out []models.User
	for pair := range f.blocks {
		if pair.blocker == blocker {
			if u, ok := f.users[pair.blocked]; ok {
				out = append(out, *u.PublicProfile())
			}
		}
	}
	return out, nil
}

func (f *fakeDB) CreateApplication(_ context.Context, a *models.Application) (*models.Application, error) {
	for _, existing := range f.applications {
		if existing.TeamID == a.TeamID && existing.UserID == a.UserID && existing.Status == models.StatusPending {
			return nil, apperr.ErrDuplicate
		}
	}
	app := *a
	app.ID = uuid.New()
	app.Status = models.StatusPending
	app.CreatedAt = time.Now()
	f.applications[app.ID] = &app
	return &app, nil
}

func (f *fakeDB) GetApplication(_ context.Context, id uuid.UUID) (*models.Application, error) {
	a, ok := f.applications[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeDB) ListUserApplications(_ context.Context, userID uuid.UUID) ([]models.Application, error) {
	var out []models.Application
	for _, a := range f.applications {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeDB) ListTeamApplications(_ context.Context, teamID uuid.UUID) ([]models.Application, error) {
	var out []models.Application
	for _, a := range f.applications {
		if a.TeamID == teamID && a.Status == models.StatusPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteApplication(_ context.Context, id uuid.UUID) error {
	if _, ok := f.applications[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.applications, id)
	return nil
}

func (f *fakeDB) RejectApplication(_ context.Context, id uuid.UUID) error {
	a, ok := f.applications[id]
	if !ok {
		return apperr.ErrNotFound
	}
	a.Status = models.StatusRejected
	return nil
}

func (f *fakeDB) AcceptApplication(_ context.Context, id uuid.UUID) (*models.Application, *models.Room, error) {
	a, ok := f.applications[id]
	if !ok {
		return nil, nil, apperr.ErrNotFound
	}
	user := f.users[a.UserID]
	if user.TeamID != nil {
		return nil, nil, apperr.Validationf("user has already joined another team")
	}
	teamID := a.TeamID
	user.TeamID = &teamID
	a.Status = models.StatusAccepted
	copied := *a
	room := &models.Room{ID: uuid.New(), Kind: models.RoomTeam, TeamID: &teamID}
	return &copied, room, nil
}

func (f *fakeDB) CreateInvitation(_ context.Context, inv *models.Invitation) (*models.Invitation, error) {
	for _, existing := range f.invitations {
		if existing.TeamID == inv.TeamID && existing.InvitedUserID == inv.InvitedUserID && existing.Status == models.StatusPending {
			return nil, apperr.ErrDuplicate
		}
	}
	created := *inv
	created.ID = uuid.New()
	created.Status = models.StatusPending
	created.CreatedAt = time.Now()
	f.invitations[created.ID] = &created
	copied := created
	return &copied, nil
}

func (f *fakeDB) GetInvitation(_ context.Context, id uuid.UUID) (*models.Invitation, error) {
	inv, ok := f.invitations[id]
	if !ok {
		return nil, nil
	}
	copied := *inv
	return &copied, nil
}

func (f *fakeDB) ListTeamInvitations(_ context.Context, teamID uuid.UUID) ([]models.Invitation, error) {
	var out []models.Invitation
	for _, inv := range f.invitations {
		if inv.TeamID == teamID && inv.Status == models.StatusPending {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeDB) ListUserInvitations(_ context.Context, userID uuid.UUID) ([]models.Invitation, error) {
	var out []models.Invitation
	for _, inv := range f.invitations {
		if inv.InvitedUserID == userID && inv.Status == models.StatusPending {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteInvitation(_ context.Context, id uuid.UUID) error {
	if _, ok := f.invitations[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.invitations, id)
	return nil
}

func (f *fakeDB) RejectInvitation(_ context.Context, id uuid.UUID) error {
	inv, ok := f.invitations[id]
	if !ok {
		return apperr.ErrNotFound
	}
	inv.Status = models.StatusRejected
	return nil
}

func (f *fakeDB) AcceptInvitation(_ context.Context, id uuid.UUID) (*models.Invitation, *models.Room, error) {
	inv, ok := f.invitations[id]
	if !ok {
		return nil, nil, apperr.ErrNotFound
	}
	user := f.users[inv.InvitedUserID]
	if user.TeamID != nil {
		return nil, nil, apperr.Validationf("user has already joined another team")
	}
	teamID := inv.TeamID
	user.TeamID = &teamID
	inv.Status = models.StatusAccepted
	copied := *inv
	room := &models.Room{ID: uuid.New(), Kind: models.RoomTeam, TeamID: &teamID}
	return &copied, room, nil
}

func (f *fakeDB) GetMembership(_ context.Context, roomID, userID uuid.UUID) (*models.Membership, error) {
	m, ok := f.memberships[chatKey{room: roomID, user: userID}]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (f *fakeDB) MarkRead(_ context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error) {
	m, ok := f.memberships[chatKey{room: roomID, user: userID}]
	if !ok || !at.After(m.LastReadAt) {
		return false, nil
	}
	m.LastReadAt = at
	return true, nil
}

func (f *fakeDB) CountMessagesAfter(_ context.Context, roomID, excludeAuthor uuid.UUID, after *time.Time) (int64, error) {
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

func (f *fakeDB) CreateNotification(_ context.Context, n *models.Notification) (*models.Notification, error) {
	created := *n
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	f.notifications[created.ID] = &created
	copied := created
	return &copied, nil
}

func (f *fakeDB) ListNotifications(_ context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeDB) MarkNotificationRead(_ context.Context, id, userID uuid.UUID) error {
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return apperr.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (f *fakeDB) MarkAllNotificationsRead(_ context.Context, userID uuid.UUID) error {
	for _, n := range f.notifications {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (f *fakeDB) DeleteNotification(_ context.Context, id, userID uuid.UUID) error {
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(f.notifications, id)
	return nil
}

// fakeProfileCache records invalidations; reads always miss.
type fakeProfileCache struct {
	invalidatedUsers []uuid.UUID
	invalidatedTeams []uuid.UUID
}

func (c *fakeProfileCache) Ping(context.Context) error { return nil }

func (c *fakeProfileCache) GetCachedUser(context.Context, uuid.UUID) *models.User { return nil }

func (c *fakeProfileCache) CacheUser(context.Context, *models.User) {}

func (c *fakeProfileCache) GetCachedTeam(context.Context, uuid.UUID) *models.Team { return nil }

func (c *fakeProfileCache) CacheTeam(context.Context, *models.Team) {}

func (c *fakeProfileCache) InvalidateUser(_ context.Context, id uuid.UUID) {
	c.invalidatedUsers = append(c.invalidatedUsers, id)
}

func (c *fakeProfileCache) InvalidateUsers(_ context.Context, ids []uuid.UUID) {
	c.invalidatedUsers = append(c.invalidatedUsers, ids...)
}

func (c *fakeProfileCache) InvalidateTeam(_ context.Context, id uuid.UUID) {
	c.invalidatedTeams = append(c.invalidatedTeams, id)
}

// memoryBackend is a minimal presence backend for handler tests.
type memoryBackend struct {
	values map[string]string
	sets   map[string]map[string]bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{values: map[string]string{}, sets: map[string]map[string]bool{}}
}

func (b *memoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *memoryBackend) SetEx(_ context.Context, key, value string, _ time.Duration) error {
	b.values[key] = value
	return nil
}

func (b *memoryBackend) Del(_ context.Context, key string) error {
	delete(b.values, key)
	return nil
}

func (b *memoryBackend) SAdd(_ context.Context, set, member string) error {
	if b.sets[set] == nil {
		b.sets[set] = map[string]bool{}
	}
	b.sets[set][member] = true
	return nil
}

func (b *memoryBackend) SRem(_ context.Context, set, member string) error {
	delete(b.sets[set], member)
	return nil
}

func (b *memoryBackend) SMembers(_ context.Context, set string) ([]string, error) {
	var out []string
	for m := range b.sets[set] {
		out = append(out, m)
	}
	return out, nil
}

type testEnv struct {
	db       *fakeDB
	cache    *fakeProfileCache
	tokens   *auth.Manager
	presence *presence.Service
	handler  *Handler
	router   *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newFakeDB()
	cache := &fakeProfileCache{}
	tokens := auth.NewManager("test-secret", time.Hour)
	log := zerolog.Nop()

	pres := presence.New(newMemoryBackend(), presence.DefaultTTL, log)
	chatSvc := chat.NewService(db, nil, log)
	hub := ws.NewHub(chatSvc, pres, log)
	chatSvc.SetFanout(hub)

	h := NewHandler(db, cache, chatSvc, hub, pres, tokens, log)
	authMw := middleware.NewAuthMiddleware(db, tokens)

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(authMw.RequireAuth)
		r.Get("/api/auth/me", h.Me)
		r.Put("/api/users/me", h.UpdateMe)
		r.Get("/api/users/online", h.OnlineUsers)
		r.Get("/api/users/blocked", h.ListBlockedUsers)
		r.Get("/api/users/{id}", h.GetUser)
		r.Post("/api/users/{id}/block", h.BlockUser)
		r.Delete("/api/users/{id}/block", h.UnblockUser)
		r.Post("/api/teams", h.CreateTeam)
		r.Post("/api/teams/leave", h.LeaveTeam)
		r.Get("/api/teams/{id}", h.GetTeam)
		r.Put("/api/teams/{id}", h.UpdateTeam)
		r.Delete("/api/teams/{id}", h.DeleteTeam)
		r.Delete("/api/teams/{id}/members/{userId}", h.RemoveMember)
		r.Post("/api/applications", h.Apply)
		r.Get("/api/applications/my", h.ListMyApplications)
		r.Post("/api/applications/{id}/accept", h.AcceptApplication)
		r.Post("/api/applications/{id}/reject", h.RejectApplication)
		r.Delete("/api/applications/{id}", h.CancelApplication)
		r.Get("/api/teams/{id}/invitations", h.ListTeamInvitations)
		r.Post("/api/teams/{id}/invitations", h.Invite)
		r.Get("/api/invitations/my", h.ListMyInvitations)
		r.Post("/api/invitations/{id}/accept", h.AcceptInvitation)
		r.Post("/api/invitations/{id}/reject", h.RejectInvitation)
		r.Delete("/api/invitations/{id}", h.CancelInvitation)
		r.Get("/api/notifications", h.ListNotifications)
		r.Post("/api/notifications/read-all", h.MarkAllNotificationsRead)
		r.Post("/api/notifications/{id}/read", h.MarkNotificationRead)
		r.Delete("/api/notifications/{id}", h.DeleteNotification)
		r.Post("/api/chat/{id}/read", h.MarkChatRead)
	})

	return &testEnv{db: db, cache: cache, tokens: tokens, presence: pres, handler: h, router: r}
}

// seedChatMember adds a room membership with the watermark in the past so
// a fresh mark-read always moves it.
func (e *testEnv) seedChatMember(t *testing.T, roomID, userID uuid.UUID) {
	t.Helper()
	e.db.memberships[chatKey{room: roomID, user: userID}] = &models.Membership{
		ID:         uuid.New(),
		RoomID:     roomID,
		UserID:     userID,
		LastReadAt: time.Now().Add(-time.Hour),
	}
}

// seedUser creates a user directly in the fake store and returns it with
// a valid token.
func (e *testEnv) seedUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	user, err := e.db.CreateUser(context.Background(), &models.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: string(hash),
		Region:       "eu-west",
	})
	if err != nil {
		t.Fatal(err)
	}
	token, err := e.tokens.Issue(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	return user, token
}

// seedTeam creates a team captained by the given user.
func (e *testEnv) seedTeam(t *testing.T, captain *models.User, name string) *models.Team {
	t.Helper()
	team := &models.Team{
		ID:        uuid.New(),
		Name:      name,
		CaptainID: captain.ID,
		Region:    captain.Region,
	}
	e.db.teams[team.ID] = team
	e.db.users[captain.ID].TeamID = &team.ID
	return team
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return out
}
