package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit describes a token bucket.
type Limit struct {
	Rate  float64 // tokens per second
	Burst int     // bucket capacity
}

// PerMinute returns a Limit refilling n tokens per minute.
func PerMinute(n, burst int) Limit {
	return Limit{Rate: float64(n) / 60.0, Burst: burst}
}

// PerSecond returns a Limit refilling n tokens per second.
func PerSecond(n, burst int) Limit {
	return Limit{Rate: float64(n), Burst: burst}
}

// Unlimited reports whether the limit disables checking.
func (l Limit) Unlimited() bool {
	return l.Rate <= 0 || l.Burst <= 0
}

// ttl keeps a bucket alive long enough to refill completely.
func (l Limit) ttl() int {
	secs := int(math.Ceil(float64(l.Burst)/l.Rate)) + 1
	if secs < 10 {
		secs = 10
	}
	return secs
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes atomically.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'last_update', tostring(now))
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// Allow consumes one token from the bucket identified by scope and subject.
// Subjects are hashed so raw IPs and user ids never reach Redis.
// On Redis errors the request is allowed and the error is returned for logging.
func (c *Cache) Allow(ctx context.Context, scope, subject string, limit Limit) (*RateLimitResult, error) {
	if limit.Unlimited() {
		return &RateLimitResult{Allowed: true}, nil
	}

	key := redisKey("ratelimit", scope, hashKey(subject))
	now := float64(time.Now().UnixMilli()) / 1000.0

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		limit.Rate, limit.Burst, now, limit.ttl(),
	).Int64Slice()
	if err != nil {
		return &RateLimitResult{
			Allowed:   true,
			Limit:     limit.Burst,
			Remaining: int64(limit.Burst),
			ResetAt:   time.Now().Add(time.Minute),
		}, fmt.Errorf("rate limit script: %w", err)
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Limit:      limit.Burst,
		Remaining:  result[2],
		ResetAt:    time.Now().Add(time.Duration(float64(time.Second) / limit.Rate)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}, nil
}

// hashKey creates a truncated SHA256 hash of a bucket subject.
func hashKey(subject string) string {
	hash := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
