package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "revoked:"

// RedisRegistry stores one key per revoked jti; the key TTL is the token's
// remaining lifetime so Redis evicts it once the token could no longer be used.
type RedisRegistry struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRegistry(ctx context.Context, redisURL string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisRegistryFromClient(client), nil
}

func NewRedisRegistryFromClient(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	now := r.now()
	ttl := expiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := r.client.SetNX(ctx, redisKeyPrefix+jti, now.Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke token: %w", err)
	}

	return nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, redisKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redis lookup token: %w", err)
	}

	return exists == 1, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
