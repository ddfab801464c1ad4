// Package feed streams last-trade prices for open positions over the CLOB
// WebSocket into the price cache, so exit checks between Gamma polls see
// fresher marks than the 1-second snapshot cadence alone provides.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
	"github.com/ranjan2829/PolyBrain/internal/platform/polymarket"
)

// refreshInterval controls how often the subscription set is reconciled
// against the open-position ledger.
const refreshInterval = 10 * time.Second

// PriceFeed keeps a WebSocket subscription for every open position's token
// and writes incoming trade prices into the cache.
type PriceFeed struct {
	wsURL  string
	ledger domain.PositionLedger
	prices domain.PriceCache
	logger *slog.Logger
}

// NewPriceFeed creates the feed.
func NewPriceFeed(wsURL string, ledger domain.PositionLedger, prices domain.PriceCache, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		wsURL:  wsURL,
		ledger: ledger,
		prices: prices,
		logger: logger.With(slog.String("component", "price_feed")),
	}
}

// Run connects and reconciles subscriptions until ctx is cancelled. A failed
// connection is retried with a flat delay; the WebSocket client handles
// in-connection reconnects itself.
func (f *PriceFeed) Run(ctx context.Context) error {
	f.logger.InfoContext(ctx, "price feed started")
	defer f.logger.InfoContext(ctx, "price feed stopped")

	for {
		if err := f.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.WarnContext(ctx, "price feed connection lost",
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *PriceFeed) runConnection(ctx context.Context) error {
	client := polymarket.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnTradePrice(func(tp polymarket.TradePrice) {
		if tp.AssetID == "" || tp.Price <= 0 {
			return
		}
		setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := f.prices.SetPrice(setCtx, tp.AssetID, tp.Price, tp.Timestamp); err != nil {
			f.logger.WarnContext(setCtx, "price cache write failed",
				slog.String("asset_id", tp.AssetID),
				slog.String("error", err.Error()),
			)
		}
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	subscribed := make(map[string]bool)
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	// Subscribe immediately, then reconcile on each tick.
	if err := f.reconcile(ctx, client, subscribed); err != nil {
		f.logger.WarnContext(ctx, "subscription reconcile failed",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.reconcile(ctx, client, subscribed); err != nil {
				f.logger.WarnContext(ctx, "subscription reconcile failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// reconcile diffs the open-position token set against the current
// subscriptions, subscribing to new tokens and dropping closed ones.
func (f *PriceFeed) reconcile(ctx context.Context, client *polymarket.WSClient, subscribed map[string]bool) error {
	open, err := f.ledger.OpenPositions(ctx)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(open))
	for _, pos := range open {
		if pos.TokenID != "" {
			want[pos.TokenID] = true
		}
	}

	var add, drop []string
	for id := range want {
		if !subscribed[id] {
			add = append(add, id)
		}
	}
	for id := range subscribed {
		if !want[id] {
			drop = append(drop, id)
		}
	}
	sort.Strings(add)
	sort.Strings(drop)

	if len(add) > 0 {
		if err := client.Subscribe(ctx, add); err != nil {
			return err
		}
		for _, id := range add {
			subscribed[id] = true
		}
		f.logger.DebugContext(ctx, "subscribed tokens", slog.Int("count", len(add)))
	}
	if len(drop) > 0 {
		if err := client.Unsubscribe(ctx, drop); err != nil {
			return err
		}
		for _, id := range drop {
			delete(subscribed, id)
		}
		f.logger.DebugContext(ctx, "unsubscribed tokens", slog.Int("count", len(drop)))
	}

	return nil
}
