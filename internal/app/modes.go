package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ranjan2829/PolyBrain/internal/advisor"
	"github.com/ranjan2829/PolyBrain/internal/detector"
	"github.com/ranjan2829/PolyBrain/internal/domain"
	"github.com/ranjan2829/PolyBrain/internal/engine"
	"github.com/ranjan2829/PolyBrain/internal/feed"
	"github.com/ranjan2829/PolyBrain/internal/monitor"
	"github.com/ranjan2829/PolyBrain/internal/pipeline"
	"github.com/ranjan2829/PolyBrain/internal/whales"
)

// TradeMode runs the full spike bot: the polling loop with live entries and
// exits, the WebSocket price feed, and the optional whale sync and archive
// jobs.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runLoop(ctx, deps, a.cfg.Trading.DryRun)
}

// MonitorMode runs the same loop with order submission disabled: spikes are
// detected, positions are simulated, alerts go out, but nothing touches the
// exchange.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode (no orders will be placed)")
	return a.runLoop(ctx, deps, true)
}

// WhalesMode runs only the leaderboard sync, for operating a dedicated
// copy-trading data collector.
func (a *App) WhalesMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting whales mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.buildWhaleSync(deps).Run(ctx)
	})
	return g.Wait()
}

// runLoop wires the detector, engine, and monitor loop and runs them with
// the configured background jobs.
func (a *App) runLoop(ctx context.Context, deps *Dependencies, dryRun bool) error {
	g, ctx := errgroup.WithContext(ctx)

	det := detector.New(detector.Config{
		Store:          deps.Snapshots,
		Logger:         a.logger,
		PriceThreshold: a.cfg.Trading.PriceSpikeThreshold,
		VolumeRatio:    a.cfg.Trading.VolumeSpikeThreshold,
		MinLiquidity:   a.cfg.Trading.MinLiquidity,
	})

	var adv domain.Advisor
	if a.cfg.Advisor.Enabled {
		adv = advisor.New(
			a.cfg.Advisor.BaseURL,
			a.cfg.Advisor.ApiKey,
			a.cfg.Advisor.Model,
			a.logger,
		)
	}

	eng := engine.New(engine.Config{
		Ledger:    deps.Ledger,
		Archive:   deps.PositionArchive,
		Exchange:  deps.Exchange,
		Markets:   deps.Markets,
		Prices:    deps.Prices,
		Snapshots: deps.Snapshots,
		Advisor:   adv,
		Policy: domain.RiskPolicy{
			MaxPositions:  a.cfg.Trading.MaxPositions,
			MaxSizeUSD:    a.cfg.Trading.MaxPositionSize,
			TakeProfitPct: a.cfg.Trading.MinProfitPct,
			StopLossPct:   a.cfg.Trading.MaxLossPct,
		},
		Logger:     a.logger,
		DryRun:     dryRun,
		StaleAfter: a.cfg.Feed.StaleAfter.Duration,
	})

	loop := monitor.New(monitor.Config{
		Markets:       deps.Markets,
		Detector:      det,
		Engine:        eng,
		Alerts:        deps.Alerts,
		Limiter:       deps.RateLimiter,
		Bus:           deps.EventBus,
		Logger:        a.logger,
		PollInterval:  a.cfg.Trading.PollInterval.Duration,
		MarketLimit:   a.cfg.Trading.MarketLimit,
		SummaryEvery:  a.cfg.Trading.SummaryEvery,
		AlertCooldown: a.cfg.Trading.AlertCooldown.Duration,
	})
	g.Go(func() error {
		return loop.Run(ctx)
	})

	if a.cfg.Feed.Enabled && a.cfg.Polymarket.WsHost != "" {
		priceFeed := feed.NewPriceFeed(
			a.cfg.Polymarket.WsHost+"/ws/market",
			deps.Ledger,
			deps.Prices,
			a.logger,
		)
		g.Go(func() error {
			return priceFeed.Run(ctx)
		})
	}

	if a.cfg.Whales.Enabled {
		sync := a.buildWhaleSync(deps)
		g.Go(func() error {
			return sync.Run(ctx)
		})
	}

	if deps.Archiver != nil {
		arch := pipeline.NewArchiver(
			deps.Archiver,
			a.cfg.Archive.RetentionDays,
			a.cfg.Archive.Interval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return arch.Run(ctx)
		})
	}

	a.logger.InfoContext(ctx, "all workers started",
		slog.Bool("dry_run", dryRun),
		slog.Bool("feed", a.cfg.Feed.Enabled),
		slog.Bool("whales", a.cfg.Whales.Enabled),
		slog.Bool("archiver", deps.Archiver != nil),
	)

	return g.Wait()
}

func (a *App) buildWhaleSync(deps *Dependencies) *whales.Sync {
	return whales.New(whales.Config{
		Source:           deps.DataAPI,
		Cache:            deps.WhaleCache,
		Store:            deps.WhaleMoves,
		Locks:            deps.LockManager,
		Alerts:           deps.Alerts,
		Logger:           a.logger,
		SyncInterval:     a.cfg.Whales.SyncInterval.Duration,
		LeaderboardLimit: a.cfg.Whales.LeaderboardLimit,
		MovesPerTrader:   a.cfg.Whales.MovesPerTrader,
		MinMoveUSD:       a.cfg.Whales.MinMoveUSD,
	})
}
