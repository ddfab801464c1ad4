package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
	"github.com/redis/go-redis/v9"
)

const positionTTL = 7 * 24 * time.Hour

// PositionLedger implements domain.PositionLedger. Each position is a JSON
// string keyed by ID, with two sets indexing membership by status.
//
// Key schema:
//
//	position:{id}    - JSON position, 7-day TTL
//	active_positions - set of open position IDs
//	closed_positions - set of closed position IDs
type PositionLedger struct {
	rdb *redis.Client
}

// NewPositionLedger creates a PositionLedger backed by the given Client.
func NewPositionLedger(c *Client) *PositionLedger {
	return &PositionLedger{rdb: c.Underlying()}
}

func positionKey(id string) string { return "position:" + id }

const (
	activeSetKey = "active_positions"
	closedSetKey = "closed_positions"
)

// Save stores an open position and registers it in the active set.
func (pl *PositionLedger) Save(ctx context.Context, pos domain.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("redis: marshal position %s: %w", pos.ID, err)
	}

	pipe := pl.rdb.TxPipeline()
	pipe.Set(ctx, positionKey(pos.ID), data, positionTTL)
	pipe.SAdd(ctx, activeSetKey, pos.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save position %s: %w", pos.ID, err)
	}
	return nil
}

// Get retrieves a position by ID.
// It returns domain.ErrNotFound when the key does not exist.
func (pl *PositionLedger) Get(ctx context.Context, id string) (domain.Position, error) {
	data, err := pl.rdb.Get(ctx, positionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("redis: get position %s: %w", id, err)
	}

	var pos domain.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return domain.Position{}, fmt.Errorf("redis: unmarshal position %s: %w", id, err)
	}
	return pos, nil
}

// OpenIDs returns the IDs of all open positions.
func (pl *PositionLedger) OpenIDs(ctx context.Context) ([]string, error) {
	ids, err := pl.rdb.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: open position ids: %w", err)
	}
	return ids, nil
}

// OpenPositions resolves every active-set member to a full position. Members
// whose position key has expired are pruned from the set rather than returned.
func (pl *PositionLedger) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	ids, err := pl.OpenIDs(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(ids))
	for _, id := range ids {
		pos, err := pl.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			_ = pl.rdb.SRem(ctx, activeSetKey, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// MarkClosed rewrites the position record and moves its ID from the active
// set to the closed set.
func (pl *PositionLedger) MarkClosed(ctx context.Context, pos domain.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("redis: marshal position %s: %w", pos.ID, err)
	}

	pipe := pl.rdb.TxPipeline()
	pipe.Set(ctx, positionKey(pos.ID), data, positionTTL)
	pipe.SRem(ctx, activeSetKey, pos.ID)
	pipe.SAdd(ctx, closedSetKey, pos.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mark closed %s: %w", pos.ID, err)
	}
	return nil
}

// ClosedIDs returns the IDs of all closed positions still within the TTL.
func (pl *PositionLedger) ClosedIDs(ctx context.Context) ([]string, error) {
	ids, err := pl.rdb.SMembers(ctx, closedSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: closed position ids: %w", err)
	}
	return ids, nil
}

// Compile-time interface check.
var _ domain.PositionLedger = (*PositionLedger)(nil)
