package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/apperr"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

const applicationColumns = `id, team_id, user_id, status, message, created_at, updated_at`

func scanApplication(row pgx.Row) (*models.Application, error) {
	a := &models.Application{}
	err := row.Scan(&a.ID, &a.TeamID, &a.UserID, &a.Status, &a.Message,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// CreateApplication inserts a pending application. The partial unique index
// on (team_id, user_id) WHERE pending turns a duplicate submission race
// into apperr.ErrDuplicate.
func (s *PostgresStore) CreateApplication(ctx context.Context, a *models.Application) (*models.Application, error) {
	created, err := scanApplication(s.pool.QueryRow(ctx, `
		INSERT INTO team_applications (team_id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING `+applicationColumns,
		a.TeamID, a.UserID, a.Message))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.ErrDuplicate
		}
		return nil, err
	}
	return created, nil
}

// GetApplication retrieves an application by id.
func (s *PostgresStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM team_applications WHERE id = $1`, id))
}

// ListTeamApplications returns pending applications for a team with the
// applicant profile joined in, newest first.
func (s *PostgresStore) ListTeamApplications(ctx context.Context, teamID uuid.UUID) ([]models.Application, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.team_id, a.user_id, a.status, a.message, a.created_at, a.updated_at,
			u.id, u.username, u.avatar_url, u.region, u.mmr_rating, u.preferred_roles, u.about_me, u.tags
		FROM team_applications a
		JOIN users u ON u.id = a.user_id
		WHERE a.team_id = $1 AND a.status = 'pending'
		ORDER BY a.created_at DESC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		var a models.Application
		u := &models.User{}
		if err := rows.Scan(&a.ID, &a.TeamID, &a.UserID, &a.Status, &a.Message,
			&a.CreatedAt, &a.UpdatedAt,
			&u.ID, &u.Username, &u.AvatarURL, &u.Region, &u.MMRRating,
			&u.PreferredRoles, &u.AboutMe, &u.Tags); err != nil {
			return nil, err
		}
		a.Applicant = u
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// ListUserApplications returns a user's applications with teams joined in.
func (s *PostgresStore) ListUserApplications(ctx context.Context, userID uuid.UUID) ([]models.Application, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.team_id, a.user_id, a.status, a.message, a.created_at, a.updated_at,
			t.id, t.name, t.avatar_url, t.region, t.captain_id
		FROM team_applications a
		JOIN teams t ON t.id = a.team_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		var a models.Application
		t := &models.Team{}
		if err := rows.Scan(&a.ID, &a.TeamID, &a.UserID, &a.Status, &a.Message,
			&a.CreatedAt, &a.UpdatedAt,
			&t.ID, &t.Name, &t.AvatarURL, &t.Region, &t.CaptainID); err != nil {
			return nil, err
		}
		a.Team = t
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// DeleteApplication removes an application (cancellation).
func (s *PostgresStore) DeleteApplication(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM team_applications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// RejectApplication marks a pending application rejected.
func (s *PostgresStore) RejectApplication(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE team_applications SET status = 'rejected', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// AcceptApplication accepts a pending application in one transaction:
// status flip, the applicant joins the team, and a membership in the team
// chat room is created. Fails whole if the applicant joined another team
// meanwhile. Returns the updated application and the team room so the
// caller can fan out.
func (s *PostgresStore) AcceptApplication(ctx context.Context, id uuid.UUID) (*models.Application, *models.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	app, err := scanApplication(tx.QueryRow(ctx, `
		UPDATE team_applications SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+applicationColumns, id))
	if err != nil {
		return nil, nil, err
	}
	if app == nil {
		return nil, nil, apperr.ErrNotFound
	}

	room, err := s.joinTeamTx(ctx, tx, app.TeamID, app.UserID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return app, room, nil
}

// joinTeamTx assigns the user to the team and adds them to the team chat
// room inside the caller's transaction.
func (s *PostgresStore) joinTeamTx(ctx context.Context, tx pgx.Tx, teamID, userID uuid.UUID) (*models.Room, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE users SET team_id = $2, updated_at = NOW()
		WHERE id = $1 AND team_id IS NULL`, userID, teamID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.Validationf("user has already joined another team")
	}

	room, err := scanRoom(tx.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM chat_rooms
		WHERE team_id = $1 AND kind = 'team'`, teamID))
	if err != nil {
		return nil, err
	}
	if room != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_room_members (room_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (room_id, user_id) DO NOTHING`,
			room.ID, userID); err != nil {
			return nil, err
		}
	}
	return room, nil
}

const invitationColumns = `id, team_id, invited_user_id, inviter_id, status, message, created_at, updated_at`

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := row.Scan(&inv.ID, &inv.TeamID, &inv.InvitedUserID, &inv.InviterID,
		&inv.Status, &inv.Message, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

// CreateInvitation inserts a pending invitation; duplicates surface as
// apperr.ErrDuplicate via the partial unique index.
func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	created, err := scanInvitation(s.pool.QueryRow(ctx, `
		INSERT INTO invitations (team_id, invited_user_id, inviter_id, message)
		VALUES ($1, $2, $3, $4)
		RETURNING `+invitationColumns,
		inv.TeamID, inv.InvitedUserID, inv.InviterID, inv.Message))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.ErrDuplicate
		}
		return nil, err
	}
	return created, nil
}

// GetInvitation retrieves an invitation by id.
func (s *PostgresStore) GetInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	return scanInvitation(s.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id))
}

// ListTeamInvitations returns pending invitations sent by a team.
func (s *PostgresStore) ListTeamInvitations(ctx context.Context, teamID uuid.UUID) ([]models.Invitation, error) {
	return s.listInvitations(ctx,
		`WHERE i.team_id = $1 AND i.status = 'pending'`, teamID)
}

// ListUserInvitations returns a user's pending invitations.
func (s *PostgresStore) ListUserInvitations(ctx context.Context, userID uuid.UUID) ([]models.Invitation, error) {
	return s.listInvitations(ctx,
		`WHERE i.invited_user_id = $1 AND i.status = 'pending'`, userID)
}

func (s *PostgresStore) listInvitations(ctx context.Context, where string, arg any) ([]models.Invitation, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT i.id, i.team_id, i.invited_user_id, i.inviter_id, i.status, i.message,
			i.created_at, i.updated_at,
			t.id, t.name, t.avatar_url, t.region, t.captain_id,
			u.id, u.username, u.avatar_url
		FROM invitations i
		JOIN teams t ON t.id = i.team_id
		JOIN users u ON u.id = i.inviter_id
		%s
		ORDER BY i.created_at DESC`, where), arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		t := &models.Team{}
		u := &models.User{}
		if err := rows.Scan(&inv.ID, &inv.TeamID, &inv.InvitedUserID, &inv.InviterID,
			&inv.Status, &inv.Message, &inv.CreatedAt, &inv.UpdatedAt,
			&t.ID, &t.Name, &t.AvatarURL, &t.Region, &t.CaptainID,
			&u.ID, &u.Username, &u.AvatarURL); err != nil {
			return nil, err
		}
		inv.Team = t
		inv.Inviter = u
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// DeleteInvitation removes an invitation (cancellation by the captain).
func (s *PostgresStore) DeleteInvitation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// RejectInvitation marks a pending invitation rejected.
func (s *PostgresStore) RejectInvitation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invitations SET status = 'rejected', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// AcceptInvitation mirrors AcceptApplication for invitations.
func (s *PostgresStore) AcceptInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, *models.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	inv, err := scanInvitation(tx.QueryRow(ctx, `
		UPDATE invitations SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+invitationColumns, id))
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, apperr.ErrNotFound
	}

	room, err := s.joinTeamTx(ctx, tx, inv.TeamID, inv.InvitedUserID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return inv, room, nil
}

const notificationColumns = `id, user_id, type, title, message, is_read,
	related_entity_type, related_entity_id, created_at`

// CreateNotification persists an in-app notification.
func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	created := &models.Notification{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, title, message, related_entity_type, related_entity_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		n.UserID, n.Type, n.Title, n.Message, n.RelatedEntityType, n.RelatedEntityID,
	).Scan(&created.ID, &created.UserID, &created.Type, &created.Title,
		&created.Message, &created.IsRead, &created.RelatedEntityType,
		&created.RelatedEntityID, &created.CreatedAt)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *PostgresStore) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.IsRead, &n.RelatedEntityType, &n.RelatedEntityID, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// MarkNotificationRead marks one notification read; scoped to the owner.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks everything read for the user.
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE`, userID)
	return err
}

// DeleteNotification removes a notification; scoped to the owner.
func (s *PostgresStore) DeleteNotification(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
