package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

// UserFilter narrows user search results. Zero values mean "any".
type UserFilter struct {
	Region        string
	MinMMR        int
	MaxMMR        int
	Role          string
	SearchingOnly bool
	Limit         int
	Offset        int
}

// TeamFilter narrows team search results.
type TeamFilter struct {
	Region        string
	MMR           int
	Role          string
	SearchingOnly bool
	ScrimOnly     bool
	Limit         int
	Offset        int
}

// DataStore defines the persistent storage operations the services and
// handlers consume. PostgresStore implements it; tests use fakes.
type DataStore interface {
	Close()
	Ping(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	UpdateLastOnline(ctx context.Context, id uuid.UUID, at time.Time) error
	SearchUsers(ctx context.Context, f UserFilter) ([]models.User, error)

	// Teams
	CreateTeamWithCaptain(ctx context.Context, t *models.Team) (*models.Team, *models.Room, error)
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	GetTeamRoom(ctx context.Context, teamID uuid.UUID) (*models.Room, error)
	ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]models.User, error)
	UpdateTeam(ctx context.Context, t *models.Team) error
	DeleteTeam(ctx context.Context, teamID uuid.UUID) error
	LeaveTeam(ctx context.Context, teamID, userID uuid.UUID) error
	SearchTeams(ctx context.Context, f TeamFilter) ([]models.Team, error)

	// Rooms and memberships
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetOrCreatePrivateRoom(ctx context.Context, a, b uuid.UUID) (*models.Room, bool, error)
	DeleteRoom(ctx context.Context, id uuid.UUID) error
	TouchRoomActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	EnsureMembership(ctx context.Context, roomID, userID uuid.UUID, at time.Time) (*models.Membership, error)
	GetMembership(ctx context.Context, roomID, userID uuid.UUID) (*models.Membership, error)
	ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	ListRoomMembers(ctx context.Context, roomID uuid.UUID) ([]models.Membership, error)
	RemoveMembership(ctx context.Context, roomID, userID uuid.UUID) error
	MarkRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error)
	ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error)

	// Messages
	CreateMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.Message, error)
	CountMessagesAfter(ctx context.Context, roomID, excludeAuthor uuid.UUID, after *time.Time) (int64, error)

	// Blocks
	CreateBlock(ctx context.Context, blocker, blocked uuid.UUID) error
	DeleteBlock(ctx context.Context, blocker, blocked uuid.UUID) error
	IsBlockedEither(ctx context.Context, a, b uuid.UUID) (bool, error)
	ListBlockedUsers(ctx context.Context, blocker uuid.UUID) ([]models.User, error)

	// Applications
	CreateApplication(ctx context.Context, a *models.Application) (*models.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListTeamApplications(ctx context.Context, teamID uuid.UUID) ([]models.Application, error)
	ListUserApplications(ctx context.Context, userID uuid.UUID) ([]models.Application, error)
	DeleteApplication(ctx context.Context, id uuid.UUID) error
	RejectApplication(ctx context.Context, id uuid.UUID) error
	AcceptApplication(ctx context.Context, id uuid.UUID) (*models.Application, *models.Room, error)

	// Invitations
	CreateInvitation(ctx context.Context, inv *models.Invitation) (*models.Invitation, error)
	GetInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	ListTeamInvitations(ctx context.Context, teamID uuid.UUID) ([]models.Invitation, error)
	ListUserInvitations(ctx context.Context, userID uuid.UUID) ([]models.Invitation, error)
	DeleteInvitation(ctx context.Context, id uuid.UUID) error
	RejectInvitation(ctx context.Context, id uuid.UUID) error
	AcceptInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, *models.Room, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error
	DeleteNotification(ctx context.Context, id, userID uuid.UUID) error
}
