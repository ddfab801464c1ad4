package domain

import (
	"context"
	"time"
)

// SnapshotStore keeps the rolling per-market snapshot history used for
// spike comparison.
type SnapshotStore interface {
	// Put stores the snapshot as both the latest value and the head of
	// the market's history list.
	Put(ctx context.Context, snap MarketSnapshot) error
	// GetLatest returns the most recent snapshot for a market.
	GetLatest(ctx context.Context, marketID string) (MarketSnapshot, error)
	// GetPrevious returns the snapshot captured immediately before the
	// latest one, or ErrNotFound when only one observation exists.
	GetPrevious(ctx context.Context, marketID string) (MarketSnapshot, error)
	// History returns up to limit snapshots, newest first.
	History(ctx context.Context, marketID string, limit int) ([]MarketSnapshot, error)
}

// PositionLedger is the hot-path record of open and closed positions.
type PositionLedger interface {
	Save(ctx context.Context, pos Position) error
	Get(ctx context.Context, id string) (Position, error)
	OpenIDs(ctx context.Context) ([]string, error)
	OpenPositions(ctx context.Context) ([]Position, error)
	MarkClosed(ctx context.Context, pos Position) error
	ClosedIDs(ctx context.Context) ([]string, error)
}

// PriceCache provides fast access to the latest prices.
type PriceCache interface {
	SetPrice(ctx context.Context, assetID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, assetID string) (float64, time.Time, error)
	GetPrices(ctx context.Context, assetIDs []string) (map[string]float64, error)
}

// WhaleCache stores leaderboard traders and their recent activity.
type WhaleCache interface {
	SaveTraders(ctx context.Context, traders []WhaleTrader) error
	Traders(ctx context.Context) ([]WhaleTrader, error)
	SaveMoves(ctx context.Context, wallet string, moves []WhaleMove) error
	Moves(ctx context.Context, wallet string, limit int) ([]WhaleMove, error)
	SetLastSync(ctx context.Context, ts time.Time) error
	LastSync(ctx context.Context) (time.Time, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// EventBus fans trading events out to interested subscribers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
