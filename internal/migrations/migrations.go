// Copyright 2025 James Ross
// Package migrations applies the schema this system needs directly
// against a *sql.DB, the way a small operational tool does rather than
// pulling in a migration runner: every statement is idempotent
// (CREATE TABLE/INDEX IF NOT EXISTS) so Apply can run on every
// process start.
package migrations

import (
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS pig_state (
		pig_id TEXT PRIMARY KEY,
		sticky_route TEXT,
		last_event TEXT,
		last_event_at TIMESTAMP,
		moving_started_at TIMESTAMP,
		fired_pre30_for_tag TEXT,
		fired_pre15_for_tag TEXT,
		first_notif_at TIMESTAMP,
		last_notif_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS notifications_outbox (
		id BIGSERIAL PRIMARY KEY,
		dedup_key TEXT NOT NULL,
		pig_id TEXT NOT NULL,
		notif_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'NEW',
		approval_status TEXT NOT NULL DEFAULT 'PENDING',
		approval_token TEXT NOT NULL,
		attempt_count INT NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMP NOT NULL DEFAULT now(),
		locked_by TEXT NOT NULL DEFAULT '',
		locked_at TIMESTAMP,
		last_error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT now(),
		updated_at TIMESTAMP NOT NULL DEFAULT now(),
		sent_at TIMESTAMP,
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_dedup_key ON notifications_outbox (dedup_key)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_claimable ON notifications_outbox (status, approval_status, next_attempt_at)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending_approval ON notifications_outbox (approval_status, id)`,

	`CREATE TABLE IF NOT EXISTS position_samples (
		id BIGSERIAL PRIMARY KEY,
		pig_id TEXT NOT NULL,
		ts TIMESTAMP NOT NULL,
		kp DOUBLE PRECISION,
		channel INT,
		created_at TIMESTAMP NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_position_samples_pig_ts ON position_samples (pig_id, ts)`,

	`CREATE TABLE IF NOT EXISTS gc_to_kp (
		gc INT PRIMARY KEY,
		kp DOUBLE PRECISION NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS pois (
		id BIGSERIAL PRIMARY KEY,
		route TEXT NOT NULL,
		tag TEXT NOT NULL,
		valve_type TEXT NOT NULL DEFAULT '',
		kp DOUBLE PRECISION,
		channel INT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pois_route ON pois (route)`,

	`CREATE TABLE IF NOT EXISTS gaps (
		id BIGSERIAL PRIMARY KEY,
		route TEXT NOT NULL,
		kind TEXT NOT NULL,
		kp DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gaps_route ON gaps (route)`,
}

// Apply runs every schema statement in order. Each statement is
// idempotent, so Apply is safe to call on every process start.
func Apply(db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrations: statement %d: %w", i, err)
		}
	}
	return nil
}
