package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Schema statements applied in order at startup. Every statement is
// idempotent so the server can run them on each boot.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email           TEXT NOT NULL UNIQUE,
		username        TEXT NOT NULL UNIQUE,
		password_hash   TEXT NOT NULL,
		avatar_url      TEXT NOT NULL DEFAULT '',
		region          TEXT NOT NULL,
		mmr_rating      INT NOT NULL DEFAULT 0,
		preferred_roles TEXT[] NOT NULL DEFAULT '{}',
		about_me        TEXT NOT NULL DEFAULT '',
		tags            TEXT[] NOT NULL DEFAULT '{}',
		is_searching    BOOLEAN NOT NULL DEFAULT FALSE,
		team_id         UUID,
		last_online     TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS teams (
		id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name              TEXT NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		avatar_url        TEXT NOT NULL DEFAULT '',
		captain_id        UUID NOT NULL REFERENCES users(id),
		region            TEXT NOT NULL,
		game_modes        TEXT[] NOT NULL DEFAULT '{}',
		mmr_range_min     INT NOT NULL DEFAULT 0,
		mmr_range_max     INT NOT NULL DEFAULT 0,
		required_roles    TEXT[] NOT NULL DEFAULT '{}',
		tags              TEXT[] NOT NULL DEFAULT '{}',
		is_searching      BOOLEAN NOT NULL DEFAULT TRUE,
		looking_for_scrim BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_team_id_fkey`,
	`ALTER TABLE users ADD CONSTRAINT users_team_id_fkey
		FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE SET NULL`,

	// private_pair_key is the two member ids joined in sorted order. The
	// unique index turns the duplicate-private-room race into a constraint
	// violation the insert path handles as "fetch existing".
	`CREATE TABLE IF NOT EXISTS chat_rooms (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		kind             TEXT NOT NULL CHECK (kind IN ('private', 'team')),
		name             TEXT NOT NULL DEFAULT '',
		team_id          UUID REFERENCES teams(id) ON DELETE CASCADE,
		private_pair_key TEXT,
		last_activity    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_private_pair_key
		ON chat_rooms (private_pair_key) WHERE private_pair_key IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS chat_room_members (
		id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		room_id      UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
		user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		last_read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (room_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS chat_messages (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		room_id    UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL REFERENCES users(id),
		body       TEXT NOT NULL,
		kind       TEXT NOT NULL DEFAULT 'text' CHECK (kind IN ('text', 'image', 'system')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_room_created
		ON chat_messages (room_id, created_at)`,

	// Partial unique index: one pending application per (team, user).
	`CREATE TABLE IF NOT EXISTS team_applications (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		team_id    UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status     TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
		message    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS team_applications_pending
		ON team_applications (team_id, user_id) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS invitations (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		team_id         UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		invited_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		inviter_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
		message         TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS invitations_pending
		ON invitations (team_id, invited_user_id) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS user_blocks (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		blocker_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		blocked_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (blocker_user_id, blocked_user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id             UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type                TEXT NOT NULL CHECK (type IN ('application', 'invitation', 'message', 'system')),
		title               TEXT NOT NULL,
		message             TEXT NOT NULL,
		is_read             BOOLEAN NOT NULL DEFAULT FALSE,
		related_entity_type TEXT NOT NULL DEFAULT '',
		related_entity_id   UUID,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_read
		ON notifications (user_id, is_read)`,
}

// RunMigrations applies the schema against the given database.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect for migrations: %w", err)
	}
	defer conn.Close(ctx)

	for i, stmt := range migrations {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
