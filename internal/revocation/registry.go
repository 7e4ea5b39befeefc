package revocation

import (
	"context"
	"time"
)

// Registry records revoked token identifiers. Revoke is idempotent and a
// completed Revoke is visible to every later IsRevoked call.
type Registry interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Purger drops entries whose token has passed its natural expiry. Expired
// tokens are rejected before revocation is consulted, so purging does not
// change what callers observe.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

type Entry struct {
	JTI       string    `json:"jti"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
