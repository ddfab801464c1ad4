package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// releaseScript deletes the lock only when the stored token is ours, so a
// holder whose TTL expired cannot release a lock someone else re-acquired.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager implements domain.LockManager with SET NX + TTL. The whale
// sync uses it so only one bot instance hits the leaderboard per interval.
type LockManager struct {
	rdb *redis.Client
}

var _ domain.LockManager = (*LockManager)(nil)

// NewLockManager creates a lock manager on the shared client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.Underlying()}
}

// Acquire takes the lock or returns domain.ErrLockHeld. The returned
// unlock function is idempotent and releases against a fresh context, so
// it still works during shutdown when the caller's context is gone.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	redisKey := "lock:" + key

	ok, err := lm.rdb.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, lm.rdb, []string{redisKey}, token).Err()
		})
	}
	return unlock, nil
}
