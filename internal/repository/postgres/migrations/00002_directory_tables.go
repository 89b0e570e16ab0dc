package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upDirectoryTables, downDirectoryTables)
}

// The membership back office owns these tables. They are created here only
// when missing so a local database has something to read.
func upDirectoryTables(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			first_name TEXT,
			last_name  TEXT,
			status     TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			location      TEXT,
			starts_at     TIMESTAMPTZ NOT NULL,
			rsvp_deadline TIMESTAMPTZ,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS event_rsvps (
			event_id   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			response   TEXT NOT NULL,
			plus_one   BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (event_id, user_id)
		)`,
	)
}

// Down leaves the shared tables alone.
func downDirectoryTables(context.Context, *sql.Tx) error { return nil }
