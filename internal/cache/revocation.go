package cache

import (
	"context"
	"fmt"
	"time"
)

func revokedKey(jti string) string {
	return redisKey("revoked", jti)
}

// RevokeToken marks a token id as revoked until ttl elapses, which should be
// the token's remaining lifetime. The key expires with the token, so the
// revocation set never outgrows the live sessions.
func (c *Cache) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether jti was revoked.
func (c *Cache) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}
