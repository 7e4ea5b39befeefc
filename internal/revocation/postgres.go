package revocation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`, jti, time.Now().UTC(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}

	return nil
}

func (r *PostgresRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)
	`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}

	return exists, nil
}

func (r *PostgresRegistry) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM revoked_tokens
		WHERE expires_at <= $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purged revoked tokens rows affected: %w", err)
	}

	return affected, nil
}
