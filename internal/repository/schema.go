package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is portable between PostgreSQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS id_sequences (
	name TEXT PRIMARY KEY,
	value BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS matching_suggestions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	student_id TEXT NOT NULL,
	course TEXT NOT NULL,
	request TEXT NOT NULL,
	ranked_tutors TEXT NOT NULL,
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_matching_suggestions_student ON matching_suggestions (student_id)`,
	`CREATE TABLE IF NOT EXISTS conflicts (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	resource TEXT NOT NULL,
	department TEXT NOT NULL DEFAULT '',
	slot TEXT NOT NULL DEFAULT '',
	details TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	open_key TEXT UNIQUE,
	created_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP NULL
)`,
	`CREATE TABLE IF NOT EXISTS conflict_requests (
	id TEXT PRIMARY KEY,
	conflict_id TEXT NOT NULL REFERENCES conflicts (id),
	booking_id TEXT NOT NULL,
	student_id TEXT NOT NULL,
	course TEXT NOT NULL DEFAULT '',
	slot TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	resolution TEXT NULL,
	resolved_by TEXT NULL,
	resolved_at TIMESTAMP NULL,
	version BIGINT NOT NULL DEFAULT 1
)`,
	`CREATE INDEX IF NOT EXISTS idx_conflict_requests_conflict ON conflict_requests (conflict_id)`,
	`CREATE INDEX IF NOT EXISTS idx_conflict_requests_booking ON conflict_requests (booking_id)`,
	`CREATE TABLE IF NOT EXISTS manual_assignments (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	tutor_id TEXT NOT NULL,
	coordinator_id TEXT NOT NULL,
	reason TEXT NOT NULL,
	course TEXT NULL,
	slot TEXT NULL,
	origin_suggestion_id TEXT NULL,
	origin_conflict_request_id TEXT NULL,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
	seq BIGINT PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	actor_id TEXT NOT NULL,
	actor_role TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	details TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS tutors (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	subjects TEXT NOT NULL,
	availability TEXT NOT NULL,
	workload INTEGER NOT NULL DEFAULT 0,
	average_rating DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS bookings (
	id TEXT PRIMARY KEY,
	tutor_id TEXT NOT NULL,
	room_id TEXT NOT NULL DEFAULT '',
	student_id TEXT NOT NULL,
	course TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	start_at TIMESTAMP NOT NULL,
	end_at TIMESTAMP NOT NULL,
	status TEXT NOT NULL
)`,
}

// Migrate creates missing tables. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
