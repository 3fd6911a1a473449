// Package cache holds the Redis state shared between notesd instances:
// rate-limit buckets and revoked refresh-token ids. Notes and users are
// never cached here.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyNamespace prefixes every key notesd writes.
const keyNamespace = "notesd"

const (
	connectTimeout = 5 * time.Second
	// Both callers fail open, so a slow Redis must not hold a request for long.
	commandTimeout = 500 * time.Millisecond
)

// Cache wraps the Redis client behind the two operations notesd needs.
type Cache struct {
	client *redis.Client
}

// New parses redisURL, sizes the pool and verifies the server is reachable.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// A request touches at most one bucket and one revocation key.
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.DialTimeout = connectTimeout
	opt.ReadTimeout = commandTimeout
	opt.WriteTimeout = commandTimeout
	opt.PoolTimeout = commandTimeout
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity for the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// redisKey joins parts under the notesd namespace, e.g. notesd:ratelimit:auth:<hash>.
func redisKey(parts ...string) string {
	return keyNamespace + ":" + strings.Join(parts, ":")
}
