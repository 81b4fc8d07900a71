package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/apperr"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

const roomColumns = `id, kind, name, team_id, last_activity, created_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	r := &models.Room{}
	err := row.Scan(&r.ID, &r.Kind, &r.Name, &r.TeamID, &r.LastActivity, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// privatePairKey builds the sorted two-id key enforcing one private room
// per unordered user pair.
func privatePairKey(a, b uuid.UUID) string {
	if a.String() < b.String() {
		return a.String() + ":" + b.String()
	}
	return b.String() + ":" + a.String()
}

// GetRoom retrieves a room by id.
func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1`, id))
}

// GetOrCreatePrivateRoom returns the private room for the unordered pair
// (a, b), creating it with both memberships when absent. A concurrent
// creation loses on the pair-key unique index and falls back to fetching
// the winner's room. The bool reports whether this call created the room.
func (s *PostgresStore) GetOrCreatePrivateRoom(ctx context.Context, a, b uuid.UUID) (*models.Room, bool, error) {
	pairKey := privatePairKey(a, b)

	room, err := scanRoom(s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE private_pair_key = $1`, pairKey))
	if err != nil {
		return nil, false, err
	}
	if room != nil {
		return room, false, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	room, err = scanRoom(tx.QueryRow(ctx, `
		INSERT INTO chat_rooms (kind, private_pair_key)
		VALUES ('private', $1)
		RETURNING `+roomColumns, pairKey))
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race: another request created the room first.
			room, err = scanRoom(s.pool.QueryRow(ctx,
				`SELECT `+roomColumns+` FROM chat_rooms WHERE private_pair_key = $1`, pairKey))
			if err != nil || room == nil {
				return nil, false, err
			}
			return room, false, nil
		}
		return nil, false, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO chat_room_members (room_id, user_id)
		VALUES ($1, $2), ($1, $3)`,
		room.ID, a, b); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return room, true, nil
}

// DeleteRoom removes a room; memberships and messages cascade.
func (s *PostgresStore) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// TouchRoomActivity bumps the room's last_activity timestamp.
func (s *PostgresStore) TouchRoomActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chat_rooms SET last_activity = $2 WHERE id = $1`, id, at)
	return err
}

const membershipColumns = `id, room_id, user_id, last_read_at, created_at`

func scanMembership(row pgx.Row) (*models.Membership, error) {
	m := &models.Membership{}
	err := row.Scan(&m.ID, &m.RoomID, &m.UserID, &m.LastReadAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// EnsureMembership creates the (room, user) membership with last_read_at
// set to the given time, or returns the existing one untouched. The unique
// constraint on (room_id, user_id) makes concurrent calls safe.
func (s *PostgresStore) EnsureMembership(ctx context.Context, roomID, userID uuid.UUID, at time.Time) (*models.Membership, error) {
	m, err := scanMembership(s.pool.QueryRow(ctx, `
		INSERT INTO chat_room_members (room_id, user_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING
		RETURNING `+membershipColumns,
		roomID, userID, at))
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	// Conflict: the membership already existed.
	return s.GetMembership(ctx, roomID, userID)
}

// GetMembership retrieves a membership; nil if the user never joined.
func (s *PostgresStore) GetMembership(ctx context.Context, roomID, userID uuid.UUID) (*models.Membership, error) {
	return scanMembership(s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM chat_room_members
		WHERE room_id = $1 AND user_id = $2`, roomID, userID))
}

// ListUserMemberships returns every room membership the user holds.
func (s *PostgresStore) ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+membershipColumns+` FROM chat_room_members
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListRoomMembers returns all memberships of a room.
func (s *PostgresStore) ListRoomMembers(ctx context.Context, roomID uuid.UUID) ([]models.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+membershipColumns+` FROM chat_room_members
		WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// RemoveMembership deletes the (room, user) row.
func (s *PostgresStore) RemoveMembership(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM chat_room_members WHERE room_id = $1 AND user_id = $2`,
		roomID, userID)
	return err
}

// MarkRead moves the user's last-read watermark. Returns false when the
// membership does not exist.
func (s *PostgresStore) MarkRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_room_members SET last_read_at = $3
		WHERE room_id = $1 AND user_id = $2`,
		roomID, userID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListUserRooms returns the rooms the user belongs to, most recently
// active first.
func (s *PostgresStore) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.kind, r.name, r.team_id, r.last_activity, r.created_at
		FROM chat_rooms r
		JOIN chat_room_members m ON m.room_id = r.id
		WHERE m.user_id = $1
		ORDER BY r.last_activity DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

// CreateMessage appends a message to the room's log.
func (s *PostgresStore) CreateMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	created := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (room_id, user_id, body, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING id, room_id, user_id, body, kind, created_at`,
		m.RoomID, m.UserID, m.Body, m.Kind,
	).Scan(&created.ID, &created.RoomID, &created.UserID, &created.Body,
		&created.Kind, &created.CreatedAt)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListMessages retrieves messages newest first with the author joined in.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.room_id, m.user_id, m.body, m.kind, m.created_at,
			u.id, u.username, u.avatar_url
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3`, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		author := &models.User{}
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Body, &m.Kind,
			&m.CreatedAt, &author.ID, &author.Username, &author.AvatarURL); err != nil {
			return nil, err
		}
		m.Author = author
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CountMessagesAfter counts messages in the room created after the given
// time and authored by someone else. A nil time counts all messages not
// authored by the excluded user.
func (s *PostgresStore) CountMessagesAfter(ctx context.Context, roomID, excludeAuthor uuid.UUID, after *time.Time) (int64, error) {
	var count int64
	var err error
	if after == nil {
		err = s.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM chat_messages
			WHERE room_id = $1 AND user_id != $2`,
			roomID, excludeAuthor).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM chat_messages
			WHERE room_id = $1 AND user_id != $2 AND created_at > $3`,
			roomID, excludeAuthor, *after).Scan(&count)
	}
	return count, err
}

// CreateBlock records that blocker blocked blocked. Idempotent.
func (s *PostgresStore) CreateBlock(ctx context.Context, blocker, blocked uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_blocks (blocker_user_id, blocked_user_id)
		VALUES ($1, $2)
		ON CONFLICT (blocker_user_id, blocked_user_id) DO NOTHING`,
		blocker, blocked)
	return err
}

// DeleteBlock removes a block row.
func (s *PostgresStore) DeleteBlock(ctx context.Context, blocker, blocked uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM user_blocks
		WHERE blocker_user_id = $1 AND blocked_user_id = $2`,
		blocker, blocked)
	return err
}

// IsBlockedEither reports whether either user has blocked the other. The
// row is directional; messaging treats the block as symmetric.
func (s *PostgresStore) IsBlockedEither(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_blocks
			WHERE (blocker_user_id = $1 AND blocked_user_id = $2)
			   OR (blocker_user_id = $2 AND blocked_user_id = $1)
		)`, a, b).Scan(&exists)
	return exists, err
}

// ListBlockedUsers returns the users the blocker has blocked.
func (s *PostgresStore) ListBlockedUsers(ctx context.Context, blocker uuid.UUID) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE id IN (SELECT blocked_user_id FROM user_blocks WHERE blocker_user_id = $1)`,
		blocker)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
