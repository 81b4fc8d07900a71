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

const teamColumns = `id, name, description, avatar_url, captain_id, region,
	game_modes, mmr_range_min, mmr_range_max, required_roles, tags,
	is_searching, looking_for_scrim, created_at, updated_at`

func scanTeam(row pgx.Row) (*models.Team, error) {
	t := &models.Team{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.AvatarURL, &t.CaptainID,
		&t.Region, &t.GameModes, &t.MMRRangeMin, &t.MMRRangeMax,
		&t.RequiredRoles, &t.Tags, &t.IsSearching, &t.LookingForScrim,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// CreateTeamWithCaptain creates a team, assigns the captain to it, creates
// the team chat room and the captain's membership, all in one transaction.
func (s *PostgresStore) CreateTeamWithCaptain(ctx context.Context, t *models.Team) (*models.Team, *models.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	team, err := scanTeam(tx.QueryRow(ctx, `
		INSERT INTO teams (name, description, captain_id, region, game_modes,
			mmr_range_min, mmr_range_max, required_roles, tags, is_searching,
			looking_for_scrim)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+teamColumns,
		t.Name, t.Description, t.CaptainID, t.Region, t.GameModes,
		t.MMRRangeMin, t.MMRRangeMax, t.RequiredRoles, t.Tags,
		t.IsSearching, t.LookingForScrim,
	))
	if err != nil {
		return nil, nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users SET team_id = $2, updated_at = NOW()
		WHERE id = $1 AND team_id IS NULL`,
		t.CaptainID, team.ID)
	if err != nil {
		return nil, nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil, apperr.Validationf("you are already in a team")
	}

	room := &models.Room{}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_rooms (kind, name, team_id)
		VALUES ('team', $1, $2)
		RETURNING id, kind, name, team_id, last_activity, created_at`,
		fmt.Sprintf("Team %s", team.Name), team.ID,
	).Scan(&room.ID, &room.Kind, &room.Name, &room.TeamID, &room.LastActivity, &room.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO chat_room_members (room_id, user_id) VALUES ($1, $2)`,
		room.ID, t.CaptainID); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return team, room, nil
}

// GetTeam retrieves a team by id.
func (s *PostgresStore) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	return scanTeam(s.pool.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1`, id))
}

// GetTeamRoom retrieves the chat room belonging to a team.
func (s *PostgresStore) GetTeamRoom(ctx context.Context, teamID uuid.UUID) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM chat_rooms
		WHERE team_id = $1 AND kind = 'team'`, teamID))
}

// ListTeamMembers returns all users currently on the team.
func (s *PostgresStore) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE team_id = $1 ORDER BY created_at`, teamID)
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

// UpdateTeam updates the mutable team fields and invalidates nothing here;
// the caller wraps this with cache invalidation.
func (s *PostgresStore) UpdateTeam(ctx context.Context, t *models.Team) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE teams
		SET name = $2, description = $3, avatar_url = $4, region = $5,
			game_modes = $6, mmr_range_min = $7, mmr_range_max = $8,
			required_roles = $9, tags = $10, is_searching = $11,
			looking_for_scrim = $12, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.AvatarURL, t.Region, t.GameModes,
		t.MMRRangeMin, t.MMRRangeMax, t.RequiredRoles, t.Tags,
		t.IsSearching, t.LookingForScrim,
	)
	return err
}

// DeleteTeam releases all members, removes the team room (memberships and
// messages cascade), applications and invitations, then the team row.
func (s *PostgresStore) DeleteTeam(ctx context.Context, teamID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE users SET team_id = NULL, updated_at = NOW() WHERE team_id = $1`, teamID); err != nil {
		return err
	}
	// chat_rooms, team_applications and invitations cascade from the team row.
	tag, err := tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return tx.Commit(ctx)
}

// LeaveTeam removes a non-captain member from the team and its chat room.
func (s *PostgresStore) LeaveTeam(ctx context.Context, teamID, userID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users SET team_id = NULL, updated_at = NOW()
		WHERE id = $1 AND team_id = $2`, userID, teamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM chat_room_members
		WHERE user_id = $1 AND room_id IN
			(SELECT id FROM chat_rooms WHERE team_id = $2 AND kind = 'team')`,
		userID, teamID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SearchTeams finds teams matching the filter, most recently active first.
func (s *PostgresStore) SearchTeams(ctx context.Context, f TeamFilter) ([]models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE TRUE`
	args := []any{}

	if f.Region != "" {
		args = append(args, f.Region)
		query += fmt.Sprintf(" AND region = $%d", len(args))
	}
	if f.MMR > 0 {
		args = append(args, f.MMR)
		query += fmt.Sprintf(" AND mmr_range_min <= $%d AND mmr_range_max >= $%d", len(args), len(args))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		query += fmt.Sprintf(" AND $%d = ANY(required_roles)", len(args))
	}
	if f.SearchingOnly {
		query += " AND is_searching = TRUE"
	}
	if f.ScrimOnly {
		query += " AND looking_for_scrim = TRUE"
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}
