// Package migrations registers the schema with goose. Each file adds one
// versioned Go migration.
package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upMailerTables, downMailerTables)
}

func upMailerTables(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`CREATE TABLE email_campaigns (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			type             TEXT NOT NULL,
			status           TEXT NOT NULL DEFAULT 'queued',
			total_recipients INTEGER NOT NULL DEFAULT 0,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE email_queue (
			id            TEXT PRIMARY KEY,
			campaign_id   TEXT REFERENCES email_campaigns(id) ON DELETE SET NULL,
			to_email      TEXT NOT NULL,
			to_name       TEXT,
			subject       TEXT NOT NULL,
			html_body     TEXT NOT NULL,
			text_body     TEXT,
			status        TEXT NOT NULL DEFAULT 'pending',
			priority      INTEGER NOT NULL DEFAULT 1,
			scheduled_for TIMESTAMPTZ,
			next_retry_at TIMESTAMPTZ,
			error_message TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sent_at       TIMESTAMPTZ,
			failed_at     TIMESTAMPTZ
		)`,
		`CREATE INDEX idx_email_queue_due ON email_queue (priority DESC, created_at)
			WHERE status IN ('pending', 'scheduled')`,
		`CREATE INDEX idx_email_queue_campaign ON email_queue (campaign_id)`,
		`CREATE TABLE email_quotas (
			date        DATE PRIMARY KEY,
			emails_sent INTEGER NOT NULL DEFAULT 0,
			quota_limit INTEGER NOT NULL
		)`,
		`CREATE TABLE rsvp_tokens (
			token              TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL,
			event_id           TEXT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at         TIMESTAMPTZ NOT NULL,
			used_at            TIMESTAMPTZ,
			used_for_response  TEXT,
			used_with_plus_one BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX idx_rsvp_tokens_pair ON rsvp_tokens (user_id, event_id) WHERE used_at IS NULL`,
		`CREATE TABLE scheduled_email_jobs (
			id              TEXT PRIMARY KEY,
			job_type        TEXT NOT NULL,
			entity_type     TEXT NOT NULL,
			entity_id       TEXT NOT NULL,
			scheduled_for   TIMESTAMPTZ NOT NULL,
			status          TEXT NOT NULL DEFAULT 'active',
			last_run_date   TIMESTAMPTZ,
			next_run_date   TIMESTAMPTZ,
			recurrence_rule TEXT,
			run_count       INTEGER NOT NULL DEFAULT 0,
			failure_count   INTEGER NOT NULL DEFAULT 0,
			last_error      TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX uq_scheduled_email_jobs_active
			ON scheduled_email_jobs (job_type, entity_type, entity_id) WHERE status = 'active'`,
		`CREATE TABLE email_jobs (
			id               TEXT PRIMARY KEY,
			created_by       TEXT NOT NULL,
			subject          TEXT NOT NULL,
			body             TEXT NOT NULL,
			is_html          BOOLEAN NOT NULL DEFAULT TRUE,
			status           TEXT NOT NULL DEFAULT 'pending',
			total_recipients INTEGER NOT NULL,
			processed_count  INTEGER NOT NULL DEFAULT 0,
			success_count    INTEGER NOT NULL DEFAULT 0,
			failed_count     INTEGER NOT NULL DEFAULT 0,
			scheduled_for    TIMESTAMPTZ,
			started_at       TIMESTAMPTZ,
			completed_at     TIMESTAMPTZ,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE email_job_recipients (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			job_id        TEXT NOT NULL REFERENCES email_jobs(id) ON DELETE CASCADE,
			email         TEXT NOT NULL,
			position      INTEGER NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT,
			processed_at  TIMESTAMPTZ,
			UNIQUE (job_id, position)
		)`,
		`CREATE INDEX idx_email_job_recipients_pending ON email_job_recipients (job_id, position)
			WHERE status = 'pending'`,
	)
}

func downMailerTables(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`DROP TABLE IF EXISTS email_job_recipients`,
		`DROP TABLE IF EXISTS email_jobs`,
		`DROP TABLE IF EXISTS scheduled_email_jobs`,
		`DROP TABLE IF EXISTS rsvp_tokens`,
		`DROP TABLE IF EXISTS email_quotas`,
		`DROP TABLE IF EXISTS email_queue`,
		`DROP TABLE IF EXISTS email_campaigns`,
	)
}

func execAll(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
