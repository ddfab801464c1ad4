package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	whaleTTL         = 2 * time.Hour
	whaleMovesMaxLen = 100
)

// WhaleCache implements domain.WhaleCache.
//
// Key schema:
//
//	copytrading:traders        - JSON array of leaderboard traders
//	copytrading:moves:{wallet} - list of JSON moves, newest first, capped
//	copytrading:last_sync      - Unix seconds of the last successful sync
//
// Everything expires after two hours so the hourly sync keeps the data warm
// and a stalled scheduler leaves no stale leaderboard behind.
type WhaleCache struct {
	rdb *redis.Client
}

// NewWhaleCache creates a WhaleCache backed by the given Client.
func NewWhaleCache(c *Client) *WhaleCache {
	return &WhaleCache{rdb: c.Underlying()}
}

const (
	whaleTradersKey  = "copytrading:traders"
	whaleLastSyncKey = "copytrading:last_sync"
)

func whaleMovesKey(wallet string) string { return "copytrading:moves:" + wallet }

// SaveTraders replaces the cached leaderboard.
func (wc *WhaleCache) SaveTraders(ctx context.Context, traders []domain.WhaleTrader) error {
	data, err := json.Marshal(traders)
	if err != nil {
		return fmt.Errorf("redis: marshal traders: %w", err)
	}
	if err := wc.rdb.Set(ctx, whaleTradersKey, data, whaleTTL).Err(); err != nil {
		return fmt.Errorf("redis: save traders: %w", err)
	}
	return nil
}

// Traders returns the cached leaderboard, or domain.ErrNotFound when no sync
// has run yet.
func (wc *WhaleCache) Traders(ctx context.Context) ([]domain.WhaleTrader, error) {
	data, err := wc.rdb.Get(ctx, whaleTradersKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get traders: %w", err)
	}
	var traders []domain.WhaleTrader
	if err := json.Unmarshal(data, &traders); err != nil {
		return nil, fmt.Errorf("redis: unmarshal traders: %w", err)
	}
	return traders, nil
}

// SaveMoves prepends the given moves to a trader's activity list.
func (wc *WhaleCache) SaveMoves(ctx context.Context, wallet string, moves []domain.WhaleMove) error {
	if len(moves) == 0 {
		return nil
	}
	key := whaleMovesKey(wallet)

	// LPush pushes in argument order, so reverse to keep newest at index 0.
	vals := make([]interface{}, 0, len(moves))
	for i := len(moves) - 1; i >= 0; i-- {
		data, err := json.Marshal(moves[i])
		if err != nil {
			return fmt.Errorf("redis: marshal move %s: %w", wallet, err)
		}
		vals = append(vals, data)
	}

	pipe := wc.rdb.TxPipeline()
	pipe.LPush(ctx, key, vals...)
	pipe.LTrim(ctx, key, 0, whaleMovesMaxLen-1)
	pipe.Expire(ctx, key, whaleTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save moves %s: %w", wallet, err)
	}
	return nil
}

// Moves returns up to limit recent moves for a wallet, newest first.
func (wc *WhaleCache) Moves(ctx context.Context, wallet string, limit int) ([]domain.WhaleMove, error) {
	if limit <= 0 || limit > whaleMovesMaxLen {
		limit = whaleMovesMaxLen
	}
	rows, err := wc.rdb.LRange(ctx, whaleMovesKey(wallet), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get moves %s: %w", wallet, err)
	}

	moves := make([]domain.WhaleMove, 0, len(rows))
	for _, row := range rows {
		var m domain.WhaleMove
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			continue
		}
		moves = append(moves, m)
	}
	return moves, nil
}

// SetLastSync records the completion time of a leaderboard sync.
func (wc *WhaleCache) SetLastSync(ctx context.Context, ts time.Time) error {
	if err := wc.rdb.Set(ctx, whaleLastSyncKey, ts.Unix(), whaleTTL).Err(); err != nil {
		return fmt.Errorf("redis: set last sync: %w", err)
	}
	return nil
}

// LastSync returns the time of the last successful sync, or domain.ErrNotFound
// when none has run within the TTL.
func (wc *WhaleCache) LastSync(ctx context.Context) (time.Time, error) {
	val, err := wc.rdb.Get(ctx, whaleLastSyncKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("redis: get last sync: %w", err)
	}
	sec, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: parse last sync: %w", err)
	}
	return time.Unix(sec, 0), nil
}

// Compile-time interface check.
var _ domain.WhaleCache = (*WhaleCache)(nil)
