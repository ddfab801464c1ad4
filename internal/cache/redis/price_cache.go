package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// priceTTL keeps feed-fed marks from outliving a dead subscription.
const priceTTL = 5 * time.Minute

// PriceCache holds the latest trade price per token as a hash at
// "price:{tokenID}" with fields price and ts (Unix nanoseconds). The ws
// feed writes it; the engine reads it when marking open positions.
type PriceCache struct {
	rdb *redis.Client
}

var _ domain.PriceCache = (*PriceCache)(nil)

// NewPriceCache creates a price cache on the shared client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(tokenID string) string {
	return "price:" + tokenID
}

// SetPrice records a trade price and its observation time.
func (pc *PriceCache) SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error {
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, priceKey(tokenID), map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	pipe.Expire(ctx, priceKey(tokenID), priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", tokenID, err)
	}
	return nil
}

// GetPrice returns the cached price and its timestamp, or
// domain.ErrNotFound when no trade has been recorded.
func (pc *PriceCache) GetPrice(ctx context.Context, tokenID string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(tokenID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", tokenID, err)
	}
	price, ts, ok := parsePriceFields(vals)
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return price, ts, nil
}

// GetPrices fetches many tokens in one pipeline. Tokens with no cached
// trade are left out of the result.
func (pc *PriceCache) GetPrices(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	result := make(map[string]float64, len(tokenIDs))
	if len(tokenIDs) == 0 {
		return result, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(tokenIDs))
	for _, id := range tokenIDs {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: bulk get prices: %w", err)
	}

	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if price, _, ok := parsePriceFields(vals); ok {
			result[id] = price
		}
	}
	return result, nil
}

func parsePriceFields(vals map[string]string) (float64, time.Time, bool) {
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, false
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	nanos, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	return price, time.Unix(0, nanos), true
}
