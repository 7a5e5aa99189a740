package db

import "fmt"

// schema holds all table definitions. Timestamps are epoch milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS attendees (
	id                 TEXT PRIMARY KEY,
	full_name          TEXT NOT NULL,
	short_name         TEXT NOT NULL DEFAULT '',
	not_exist_on_cloud INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
	group_id           TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	not_exist_on_cloud INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attendee_group_mappings (
	attendee_id TEXT NOT NULL,
	group_id    TEXT NOT NULL,
	PRIMARY KEY (attendee_id, group_id)
);

CREATE TABLE IF NOT EXISTS events (
	id                       TEXT PRIMARY KEY,
	title                    TEXT NOT NULL UNIQUE,
	date                     TEXT NOT NULL,
	time                     TEXT NOT NULL,
	cloud_event_id           TEXT NOT NULL DEFAULT '',
	last_processed_row_index INTEGER NOT NULL DEFAULT 0,
	not_exist_on_cloud       INTEGER NOT NULL DEFAULT 0,
	created_at               INTEGER NOT NULL,
	updated_at               INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance_records (
	event_id    TEXT NOT NULL,
	attendee_id TEXT NOT NULL,
	state       TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	PRIMARY KEY (event_id, attendee_id)
);

CREATE TABLE IF NOT EXISTS selection_queue (
	attendee_id TEXT PRIMARY KEY,
	excluded    INTEGER NOT NULL DEFAULT 0,
	added_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_jobs (
	job_id      INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id    TEXT NOT NULL,
	event_title TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS queue_archives (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id    TEXT NOT NULL,
	event_title TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	data        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	trigger_id    TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	operation     TEXT NOT NULL,
	params        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	stack_trace   TEXT NOT NULL DEFAULT '',
	timestamp     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_jobs_created_at ON sync_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_queue_archives_timestamp ON queue_archives(timestamp);
CREATE INDEX IF NOT EXISTS idx_sync_logs_trigger_id ON sync_logs(trigger_id);
CREATE INDEX IF NOT EXISTS idx_attendance_records_attendee ON attendance_records(attendee_id);
`

// InitSchema creates all tables if they don't exist. The whole statement
// batch runs inside one transaction.
func (db *DB) InitSchema() error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return tx.Commit()
}
