package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultPurgeLimit = 500

// LockoutRepository keeps one row per username with the failures counted
// since the last lock and the end of the current lock, if any.
type LockoutRepository struct {
	db *sql.DB
}

func NewLockoutRepository(db *sql.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

func (r *LockoutRepository) ActiveLock(ctx context.Context, username string, now time.Time) (*time.Time, error) {
	var until time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT locked_until FROM login_lockouts WHERE username = $1 AND locked_until > $2`,
		username, now.UTC(),
	).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lockout: %w", err)
	}

	until = until.UTC()
	return &until, nil
}

// RecordFailure counts one failed login in a single statement. While a lock
// is active the row is left alone and the existing lock is returned. The
// failure that reaches maxFailures starts a new lock and resets the count.
func (r *LockoutRepository) RecordFailure(ctx context.Context, username string, maxFailures int, lockFor time.Duration, now time.Time) (*time.Time, error) {
	var until sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO login_lockouts AS l (username, failures, locked_until, last_failure_at)
		VALUES (
			$1,
			CASE WHEN $2::int <= 1 THEN 0 ELSE 1 END,
			CASE WHEN $2::int <= 1 THEN $3::timestamptz END,
			$4
		)
		ON CONFLICT (username) DO UPDATE SET
			failures = CASE
				WHEN l.locked_until > $4 THEN l.failures
				WHEN l.failures + 1 >= $2::int THEN 0
				ELSE l.failures + 1
			END,
			locked_until = CASE
				WHEN l.locked_until > $4 THEN l.locked_until
				WHEN l.failures + 1 >= $2::int THEN $3::timestamptz
			END,
			last_failure_at = $4
		RETURNING locked_until
	`, username, maxFailures, now.Add(lockFor).UTC(), now.UTC()).Scan(&until)
	if err != nil {
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	if !until.Valid {
		return nil, nil
	}

	lockedUntil := until.Time.UTC()
	return &lockedUntil, nil
}

func (r *LockoutRepository) Clear(ctx context.Context, username string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM login_lockouts WHERE username = $1`, username); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

// PurgeStale removes up to limit rows whose last failure is older than before
// and that hold no running lock.
func (r *LockoutRepository) PurgeStale(ctx context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = defaultPurgeLimit
	}

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM login_lockouts
		WHERE username IN (
			SELECT username FROM login_lockouts
			WHERE last_failure_at < $1
			  AND (locked_until IS NULL OR locked_until <= NOW())
			ORDER BY last_failure_at
			LIMIT $2
		)
	`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("purge lockouts: %w", err)
	}

	return res.RowsAffected()
}
