// ABOUTME: Lease-based run lock stored in the run_locks table
// ABOUTME: Lets overlapping invocations on one host share a single advisory lock
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunLockRepository stores named leases with an owner token and expiry.
type RunLockRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunLockRepository creates a new run lock repository.
func NewRunLockRepository(db *sql.DB) *RunLockRepository {
	return &RunLockRepository{db: db, now: time.Now}
}

// TryAcquire takes the named lease if it is free, expired, or already held
// by owner. It never blocks.
func (r *RunLockRepository) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := r.now()
	expires := now.Add(ttl).UnixMilli()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO run_locks (name, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE run_locks.expires_at <= ? OR run_locks.owner = excluded.owner
	`, name, owner, expires, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
	}
	return n == 1, nil
}

// Release drops the lease if owner still holds it.
func (r *RunLockRepository) Release(ctx context.Context, name, owner string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM run_locks WHERE name = ? AND owner = ?`, name, owner)
	if err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", name, err)
	}
	return nil
}

// Holder returns the current owner of a live lease, or "" if none.
func (r *RunLockRepository) Holder(ctx context.Context, name string) (string, error) {
	var owner string
	err := r.db.QueryRowContext(ctx, `
		SELECT owner FROM run_locks WHERE name = ? AND expires_at > ?
	`, name, r.now().UnixMilli()).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read run lock %s: %w", name, err)
	}
	return owner, nil
}
