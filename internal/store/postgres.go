package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/apperr"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// isUniqueViolation reports whether err is a unique-constraint violation.
// Get-or-create paths treat it as "already exists, fetch and return".
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const userColumns = `id, email, username, password_hash, avatar_url, region,
	mmr_rating, preferred_roles, about_me, tags, is_searching, team_id,
	last_online, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.AvatarURL,
		&u.Region, &u.MMRRating, &u.PreferredRoles, &u.AboutMe, &u.Tags,
		&u.IsSearching, &u.TeamID, &u.LastOnline, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a new user. Returns apperr.ErrDuplicate if the email
// or username is taken.
func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	created, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (email, username, password_hash, region, mmr_rating,
			preferred_roles, about_me, tags, is_searching)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+userColumns,
		u.Email, u.Username, u.PasswordHash, u.Region, u.MMRRating,
		u.PreferredRoles, u.AboutMe, u.Tags, u.IsSearching,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.ErrDuplicate
		}
		return nil, err
	}
	return created, nil
}

// GetUserByID retrieves a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// UpdateUser updates the mutable profile fields.
func (s *PostgresStore) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET username = $2, avatar_url = $3, region = $4, mmr_rating = $5,
			preferred_roles = $6, about_me = $7, tags = $8, is_searching = $9,
			updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.Username, u.AvatarURL, u.Region, u.MMRRating,
		u.PreferredRoles, u.AboutMe, u.Tags, u.IsSearching,
	)
	if isUniqueViolation(err) {
		return apperr.ErrDuplicate
	}
	return err
}

// UpdateLastOnline stamps the persisted last_online field. Distinct from
// live presence, which lives in Redis.
func (s *PostgresStore) UpdateLastOnline(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_online = $2 WHERE id = $1`, id, at)
	return err
}

// SearchUsers finds players matching the filter, most recently online first.
func (s *PostgresStore) SearchUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE TRUE`
	args := []any{}

	if f.Region != "" {
		args = append(args, f.Region)
		query += fmt.Sprintf(" AND region = $%d", len(args))
	}
	if f.MinMMR > 0 {
		args = append(args, f.MinMMR)
		query += fmt.Sprintf(" AND mmr_rating >= $%d", len(args))
	}
	if f.MaxMMR > 0 {
		args = append(args, f.MaxMMR)
		query += fmt.Sprintf(" AND mmr_rating <= $%d", len(args))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		query += fmt.Sprintf(" AND $%d = ANY(preferred_roles)", len(args))
	}
	if f.SearchingOnly {
		query += " AND is_searching = TRUE AND team_id IS NULL"
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY last_online DESC NULLS LAST LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
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
