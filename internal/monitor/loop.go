// Package monitor runs the main trading cycle: poll active markets, detect
// spikes, open positions, and watch the open book for exits.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/detector"
	"github.com/ranjan2829/PolyBrain/internal/domain"
	"github.com/ranjan2829/PolyBrain/internal/engine"
	"github.com/ranjan2829/PolyBrain/internal/notify"
)

// Loop drives one polling cycle per tick. Open positions are checked for
// exits before new markets are scanned, so a take-profit never waits behind
// a full market sweep.
type Loop struct {
	markets  domain.MarketSource
	detector *detector.Detector
	engine   *engine.Engine
	alerts   *notify.Alerts
	limiter  domain.RateLimiter
	bus      domain.EventBus
	logger   *slog.Logger

	pollInterval  time.Duration
	marketLimit   int
	summaryEvery  int
	alertCooldown time.Duration
}

// Config wires the loop dependencies.
type Config struct {
	Markets       domain.MarketSource
	Detector      *detector.Detector
	Engine        *engine.Engine
	Alerts        *notify.Alerts
	Limiter       domain.RateLimiter
	Bus           domain.EventBus
	Logger        *slog.Logger
	PollInterval  time.Duration
	MarketLimit   int
	SummaryEvery  int
	AlertCooldown time.Duration
}

// New creates the monitor loop.
func New(cfg Config) *Loop {
	return &Loop{
		markets:       cfg.Markets,
		detector:      cfg.Detector,
		engine:        cfg.Engine,
		alerts:        cfg.Alerts,
		limiter:       cfg.Limiter,
		bus:           cfg.Bus,
		logger:        cfg.Logger.With(slog.String("component", "monitor_loop")),
		pollInterval:  cfg.PollInterval,
		marketLimit:   cfg.MarketLimit,
		summaryEvery:  cfg.SummaryEvery,
		alertCooldown: cfg.AlertCooldown,
	}
}

// Run executes cycles at the configured interval until ctx is cancelled.
// A failed cycle is logged and the loop carries on; only context
// cancellation stops it.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "monitor loop started",
		slog.Duration("poll_interval", l.pollInterval),
		slog.Int("market_limit", l.marketLimit),
	)
	defer l.logger.InfoContext(ctx, "monitor loop stopped")

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cycle++
			if err := l.Cycle(ctx, cycle); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				l.logger.ErrorContext(ctx, "cycle failed",
					slog.Int("cycle", cycle),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Cycle runs one full pass: exits first, then the market scan, then the
// periodic portfolio summary.
func (l *Loop) Cycle(ctx context.Context, cycle int) error {
	closed, err := l.engine.MonitorAll(ctx)
	if err != nil {
		return fmt.Errorf("monitor: check open positions: %w", err)
	}
	for _, pos := range closed {
		if alertErr := l.alerts.PositionClosed(ctx, pos); alertErr != nil {
			l.logger.WarnContext(ctx, "close alert failed",
				slog.String("position_id", pos.ID),
				slog.String("error", alertErr.Error()),
			)
		}
		l.publish(ctx, "positions", map[string]any{
			"event":       "position_closed",
			"position_id": pos.ID,
			"market_id":   pos.MarketID,
			"exit_reason": pos.ExitReason,
			"profit":      pos.Profit,
		})
	}

	if err := l.scanMarkets(ctx); err != nil {
		return err
	}

	if l.summaryEvery > 0 && cycle%l.summaryEvery == 0 {
		sum, sumErr := l.engine.Summary(ctx)
		if sumErr != nil {
			l.logger.WarnContext(ctx, "portfolio summary failed",
				slog.String("error", sumErr.Error()),
			)
		} else if sum.OpenCount > 0 {
			if alertErr := l.alerts.PortfolioSummary(ctx, sum); alertErr != nil {
				l.logger.WarnContext(ctx, "summary alert failed",
					slog.String("error", alertErr.Error()),
				)
			}
		}
	}

	return nil
}

// scanMarkets fetches the active market list and runs spike detection on
// each market, most traded first.
func (l *Loop) scanMarkets(ctx context.Context) error {
	markets, err := l.markets.ActiveMarkets(ctx, l.marketLimit)
	if err != nil {
		return fmt.Errorf("monitor: fetch markets: %w", err)
	}

	sortMarkets(markets)

	for _, snap := range markets {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, checkErr := l.detector.Check(ctx, snap)
		if checkErr != nil {
			l.logger.WarnContext(ctx, "spike check failed",
				slog.String("market_id", snap.MarketID),
				slog.String("error", checkErr.Error()),
			)
			continue
		}
		if !result.HasSpikes() {
			continue
		}

		l.logger.InfoContext(ctx, "spikes detected",
			slog.String("market_id", result.MarketID),
			slog.String("question", result.Question),
			slog.Int("spike_count", len(result.Spikes)),
		)

		l.alertSpike(ctx, result)
		l.publish(ctx, "spikes", map[string]any{
			"event":       "spike_detected",
			"market_id":   result.MarketID,
			"question":    result.Question,
			"spike_count": len(result.Spikes),
		})

		pos, openErr := l.engine.OpenOnSpike(ctx, result)
		if openErr != nil {
			l.logger.ErrorContext(ctx, "entry failed",
				slog.String("market_id", result.MarketID),
				slog.String("error", openErr.Error()),
			)
			continue
		}
		if pos == nil {
			continue
		}
		if alertErr := l.alerts.PositionOpened(ctx, *pos); alertErr != nil {
			l.logger.WarnContext(ctx, "entry alert failed",
				slog.String("position_id", pos.ID),
				slog.String("error", alertErr.Error()),
			)
		}
		l.publish(ctx, "positions", map[string]any{
			"event":       "position_opened",
			"position_id": pos.ID,
			"market_id":   pos.MarketID,
			"outcome":     pos.Outcome,
			"buy_price":   pos.BuyPrice,
			"investment":  pos.Investment,
		})
	}

	return nil
}

// alertSpike sends the spike alert unless the market is inside its
// cooldown window. A rate limit of one alert per cooldown per market keeps
// a market that spikes every cycle from flooding the channels.
func (l *Loop) alertSpike(ctx context.Context, result domain.SpikeResult) {
	if l.limiter != nil && l.alertCooldown > 0 {
		allowed, err := l.limiter.Allow(ctx, "alerts:"+result.MarketID, 1, l.alertCooldown)
		if err != nil {
			l.logger.WarnContext(ctx, "alert rate limit check failed",
				slog.String("market_id", result.MarketID),
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			return
		}
	}

	if err := l.alerts.SpikeDetected(ctx, result); err != nil {
		l.logger.WarnContext(ctx, "spike alert failed",
			slog.String("market_id", result.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// publish pushes a trading event onto the bus for external subscribers.
// A missing bus or a failed publish never affects the cycle.
func (l *Loop) publish(ctx context.Context, channel string, event map[string]any) {
	if l.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := l.bus.Publish(ctx, channel, payload); err != nil {
		l.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// sortMarkets orders by volume descending, breaking ties by liquidity
// descending, so the busiest markets are examined first each cycle.
func sortMarkets(markets []domain.MarketSnapshot) {
	sort.SliceStable(markets, func(i, j int) bool {
		if markets[i].Volume != markets[j].Volume {
			return markets[i].Volume > markets[j].Volume
		}
		return markets[i].Liquidity > markets[j].Liquidity
	})
}
