package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// windowScript is an atomic sliding-window counter over a sorted set.
// ARGV is {now_micro, window_micro, limit}; it returns {allowed, count}.
var windowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
    redis.call('PEXPIRE', key, math.ceil(window / 1000))
    return {1, count + 1}
end
return {0, count}
`)

const waitPoll = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter as a Redis sliding window.
// The monitor loop uses it as the per-market alert cooldown: one alert
// per market per window, shared across bot instances.
type RateLimiter struct {
	rdb *redis.Client
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a rate limiter on the shared client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying()}
}

// Allow reports whether an event for key fits under limit within the
// window, counting it if so.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	result, err := windowScript.Run(ctx, rl.rdb,
		[]string{"ratelimit:" + key},
		time.Now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit %s: bad script result", key)
	}
	return result[0] == 1, nil
}

// Wait blocks until one event per second is allowed for key, polling
// until the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		allowed, err := rl.Allow(ctx, key, 1, time.Second)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}
