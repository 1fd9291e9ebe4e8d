package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Schema creates the pipeline tables. Applied idempotently at startup.
//
// The two partial unique indexes on email_logs are the dedup guarantee: the
// ledger's Reserve is a conditional insert against them, so at most one
// attempt per (user, rule, message) and one user-level entry per
// (user, message) ever reaches the AI step.
//
// is_user_level marks genuine user-level skip rows. Rule deletion cascades
// SET NULL onto rule_id, and those detached rows must stay out of both the
// user-level unique index and the user-level dedup lookup: they are history,
// not a claim on the message.
const Schema = `
CREATE TABLE IF NOT EXISTS mailbox_credentials (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL DEFAULT '',
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL,
	connected_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_connected  BOOLEAN NOT NULL DEFAULT true,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rules (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL,
	name           VARCHAR(255) NOT NULL,
	description    TEXT,
	rule_text      TEXT NOT NULL,
	provider       VARCHAR(50) NOT NULL,
	model          VARCHAR(100) NOT NULL,
	is_active      BOOLEAN NOT NULL DEFAULT true,
	is_published   BOOLEAN NOT NULL DEFAULT false,
	skip_archived  BOOLEAN NOT NULL DEFAULT false,
	skip_read      BOOLEAN NOT NULL DEFAULT false,
	skip_labeled   BOOLEAN NOT NULL DEFAULT false,
	skip_starred   BOOLEAN NOT NULL DEFAULT false,
	skip_important BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_rules_user ON rules (user_id);

CREATE TABLE IF NOT EXISTS email_logs (
	id               UUID PRIMARY KEY,
	user_id          TEXT NOT NULL,
	rule_id          UUID REFERENCES rules (id) ON DELETE SET NULL,
	is_user_level    BOOLEAN NOT NULL DEFAULT false,
	gmail_message_id VARCHAR(255) NOT NULL,
	email_subject    VARCHAR(500),
	email_from       VARCHAR(255),
	email_snippet    TEXT,
	ai_response      TEXT,
	status           VARCHAR(50) NOT NULL DEFAULT 'pending',
	error            TEXT,
	actions_executed JSONB,
	processed_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_email_logs_rule
	ON email_logs (user_id, rule_id, gmail_message_id) WHERE rule_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_email_logs_user
	ON email_logs (user_id, gmail_message_id) WHERE is_user_level;
CREATE INDEX IF NOT EXISTS idx_email_logs_user_created
	ON email_logs (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS skip_filters (
	id          UUID PRIMARY KEY,
	user_id     TEXT NOT NULL,
	filter_type VARCHAR(20) NOT NULL,
	value       TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, filter_type, value)
);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id    TEXT PRIMARY KEY,
	debug_mode BOOLEAN NOT NULL DEFAULT false,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema applies the schema.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
