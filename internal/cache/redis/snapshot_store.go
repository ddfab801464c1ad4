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

const (
	snapshotTTL    = 1 * time.Hour
	historyMaxLen  = 10
	historyLastIdx = historyMaxLen - 1
)

// SnapshotStore implements domain.SnapshotStore using a latest-value key plus
// a capped list of recent observations per market.
//
// Key schema:
//
//	market:{id}:snapshot - string value with the latest JSON snapshot
//	market:{id}:history  - list of JSON snapshots, newest first, capped at 10
//
// Both keys carry a 1-hour TTL refreshed on every write, so markets that fall
// out of the polling set simply age out.
type SnapshotStore struct {
	rdb *redis.Client
}

// NewSnapshotStore creates a SnapshotStore backed by the given Client.
func NewSnapshotStore(c *Client) *SnapshotStore {
	return &SnapshotStore{rdb: c.Underlying()}
}

func snapshotKey(id string) string { return "market:" + id + ":snapshot" }
func historyKey(id string) string  { return "market:" + id + ":history" }

// Put stores the snapshot as the latest value and pushes it onto the head of
// the market's history list, trimming the list to its cap.
func (ss *SnapshotStore) Put(ctx context.Context, snap domain.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.MarketID, err)
	}

	hk := historyKey(snap.MarketID)

	pipe := ss.rdb.TxPipeline()
	pipe.Set(ctx, snapshotKey(snap.MarketID), data, snapshotTTL)
	pipe.LPush(ctx, hk, data)
	pipe.LTrim(ctx, hk, 0, historyLastIdx)
	pipe.Expire(ctx, hk, snapshotTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put snapshot %s: %w", snap.MarketID, err)
	}
	return nil
}

// GetLatest retrieves the most recent snapshot for a market.
// It returns domain.ErrNotFound when the key does not exist.
func (ss *SnapshotStore) GetLatest(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	data, err := ss.rdb.Get(ctx, snapshotKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", marketID, err)
	}
	return unmarshalSnapshot(marketID, data)
}

// GetPrevious retrieves the snapshot captured immediately before the latest
// one, i.e. index 1 of the history list. It returns domain.ErrNotFound when
// the market has fewer than two observations.
func (ss *SnapshotStore) GetPrevious(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	data, err := ss.rdb.LIndex(ctx, historyKey(marketID), 1).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get previous snapshot %s: %w", marketID, err)
	}
	return unmarshalSnapshot(marketID, data)
}

// History returns up to limit snapshots for the market, newest first. Entries
// that fail to decode are skipped.
func (ss *SnapshotStore) History(ctx context.Context, marketID string, limit int) ([]domain.MarketSnapshot, error) {
	if limit <= 0 || limit > historyMaxLen {
		limit = historyMaxLen
	}
	rows, err := ss.rdb.LRange(ctx, historyKey(marketID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: snapshot history %s: %w", marketID, err)
	}

	snaps := make([]domain.MarketSnapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := unmarshalSnapshot(marketID, []byte(row))
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func unmarshalSnapshot(marketID string, data []byte) (domain.MarketSnapshot, error) {
	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", marketID, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
