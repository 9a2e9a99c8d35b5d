// ABOUTME: Database operations for the pass_runs audit table
// ABOUTME: Records when each reconciliation pass started, how it ended, and its counters
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/leadsync/models"
)

// PassRepository stores one row per reconciliation pass.
type PassRepository struct {
	db *sql.DB
}

// NewPassRepository creates a new pass repository.
func NewPassRepository(db *sql.DB) *PassRepository {
	return &PassRepository{db: db}
}

// StartPass records a pass as running.
func (r *PassRepository) StartPass(ctx context.Context, id string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pass_runs (id, started_at, status)
		VALUES (?, ?, ?)
	`, id, startedAt.UTC(), models.PassRunning)
	if err != nil {
		return fmt.Errorf("failed to start pass: %w", err)
	}
	return nil
}

// FinishPass stores the final status and counters of a pass.
func (r *PassRepository) FinishPass(ctx context.Context, run *models.PassRun) error {
	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}
	var errMsg sql.NullString
	if run.ErrorMessage != "" {
		errMsg = sql.NullString{String: run.ErrorMessage, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pass_runs (id, started_at, finished_at, status, processed, matched, reminders_sent, errors, skipped, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			processed = excluded.processed,
			matched = excluded.matched,
			reminders_sent = excluded.reminders_sent,
			errors = excluded.errors,
			skipped = excluded.skipped,
			error_message = excluded.error_message
	`, run.ID, run.StartedAt.UTC(), finishedAt, run.Status,
		run.Processed, run.Matched, run.RemindersSent, run.Errors, run.Skipped, errMsg)
	if err != nil {
		return fmt.Errorf("failed to finish pass: %w", err)
	}
	return nil
}

// RecentPasses returns the latest passes, newest first.
func (r *PassRepository) RecentPasses(ctx context.Context, limit int) ([]*models.PassRun, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, processed, matched, reminders_sent, errors, skipped, error_message
		FROM pass_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()

	var runs []*models.PassRun
	for rows.Next() {
		var run models.PassRun
		var finishedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.Status,
			&run.Processed, &run.Matched, &run.RemindersSent, &run.Errors, &run.Skipped, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		run.ErrorMessage = errMsg.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
