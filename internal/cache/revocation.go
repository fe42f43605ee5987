package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedSessionPrefix = "session:revoked:"

// TokenRevocationCache mirrors session revocations into Redis so hot paths can
// reject a revoked session without a database round trip. The database stays
// authoritative; a miss here never means the session is active.
type TokenRevocationCache struct {
	client redis.Cmdable
}

// NewTokenRevocationCache wraps a redis client. A nil client yields a nil cache.
func NewTokenRevocationCache(client redis.Cmdable) *TokenRevocationCache {
	if client == nil {
		return nil
	}
	return &TokenRevocationCache{client: client}
}

func revokedKey(sessionID string) string {
	return revokedSessionPrefix + sessionID
}

// RevokeSession marks the session revoked for ttl.
func (c *TokenRevocationCache) RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	if err := c.client.Set(ctx, revokedKey(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache revocation: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether a revocation marker exists for the session.
func (c *TokenRevocationCache) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	if c == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, revokedKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read revocation: %w", err)
	}
	return n > 0, nil
}
