package db

import (
	"context"
	"fmt"
)

// schema is idempotent; EnsureSchema runs it on every start when
// AUTO_MIGRATE is set. IDs are text because events created offline carry
// client-generated UUIDs and owners are identified by external uid.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id           TEXT PRIMARY KEY,
		external_uid TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		avatar_url   TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS friendships (
		user_id   TEXT NOT NULL,
		friend_id TEXT NOT NULL,
		PRIMARY KEY (user_id, friend_id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id                TEXT PRIMARY KEY,
		backend_id        TEXT,
		title             TEXT NOT NULL,
		description       TEXT,
		location          TEXT NOT NULL DEFAULT '',
		start_at          TIMESTAMPTZ NOT NULL,
		end_at            TIMESTAMPTZ,
		lat               DOUBLE PRECISION,
		lng               DOUBLE PRECISION,
		privacy           TEXT NOT NULL DEFAULT 'public',
		owner_id          TEXT,
		shared_invite_ids TEXT[] NOT NULL DEFAULT '{}',
		categories        TEXT[] NOT NULL DEFAULT '{}',
		image_url         TEXT,
		deleted_at        TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS events_start_at_idx ON events (start_at) WHERE deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS event_attendees (
		event_id     TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		status       TEXT NOT NULL,
		arrival_at   TIMESTAMPTZ,
		responded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_invites (
		event_id     TEXT NOT NULL,
		from_user_id TEXT NOT NULL,
		to_user_id   TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (event_id, from_user_id, to_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS hidden_events (
		user_id   TEXT NOT NULL,
		event_id  TEXT NOT NULL,
		hidden_at TIMESTAMPTZ,
		PRIMARY KEY (user_id, event_id)
	)`,
	`CREATE TABLE IF NOT EXISTS blocked_users (
		user_id         TEXT NOT NULL,
		blocked_user_id TEXT NOT NULL,
		PRIMARY KEY (user_id, blocked_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id          TEXT PRIMARY KEY,
		reporter_id TEXT NOT NULL,
		kind        TEXT NOT NULL,
		target_id   TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS event_images (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		content_type TEXT NOT NULL,
		data         BYTEA NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS viewer_locations (
		user_id     TEXT PRIMARY KEY,
		lat         DOUBLE PRECISION NOT NULL,
		lng         DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
}

func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
