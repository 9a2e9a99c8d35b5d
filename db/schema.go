// ABOUTME: Database schema definitions and migrations
// ABOUTME: Creates the leads, run_locks, and pass_runs tables
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	name TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	preferred_day TEXT NOT NULL DEFAULT '',
	preferred_time TEXT NOT NULL DEFAULT '',
	services TEXT NOT NULL DEFAULT '[]',
	message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	thread_id TEXT NOT NULL DEFAULT '',
	followed_up INTEGER NOT NULL DEFAULT 0,
	questionnaire_answered INTEGER NOT NULL DEFAULT 0,
	appointment_scheduled INTEGER NOT NULL DEFAULT 0,
	match_method TEXT NOT NULL DEFAULT '',
	reminder_sent_at DATETIME,
	summary TEXT NOT NULL DEFAULT '',
	raw_response TEXT NOT NULL DEFAULT '',
	parsed_response TEXT,
	scheduled_at DATETIME,
	scheduled_event_id TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_leads_followed_up ON leads(followed_up);

CREATE TABLE IF NOT EXISTS run_locks (
	name TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pass_runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	status TEXT NOT NULL CHECK(status IN ('running', 'complete', 'failed')),
	processed INTEGER NOT NULL DEFAULT 0,
	matched INTEGER NOT NULL DEFAULT 0,
	reminders_sent INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_pass_runs_started_at ON pass_runs(started_at DESC);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
