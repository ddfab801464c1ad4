package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// Engine owns the full position lifecycle: opening on upward price spikes,
// marking open positions against fresh prices, and closing when the exit
// rules fire. Redis is the source of truth for the hot path; Postgres keeps
// the durable archive and is written best-effort.
type Engine struct {
	ledger   domain.PositionLedger
	archive  domain.PositionArchive
	exchange domain.ExchangeClient
	markets  domain.MarketSource
	prices   domain.PriceCache
	snaps    domain.SnapshotStore
	advisor  domain.Advisor
	policy   domain.RiskPolicy
	logger   *slog.Logger

	// dryRun skips order submission while still tracking positions.
	dryRun bool

	// staleAfter bounds how old a ws-fed cache price may be before the
	// engine falls back to the market source.
	staleAfter time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// Config wires the engine dependencies. Archive and Advisor are optional.
type Config struct {
	Ledger     domain.PositionLedger
	Archive    domain.PositionArchive
	Exchange   domain.ExchangeClient
	Markets    domain.MarketSource
	Prices     domain.PriceCache
	Snapshots  domain.SnapshotStore
	Advisor    domain.Advisor
	Policy     domain.RiskPolicy
	Logger     *slog.Logger
	DryRun     bool
	StaleAfter time.Duration
}

// New creates a position lifecycle engine.
func New(cfg Config) *Engine {
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &Engine{
		ledger:     cfg.Ledger,
		archive:    cfg.Archive,
		exchange:   cfg.Exchange,
		markets:    cfg.Markets,
		prices:     cfg.Prices,
		snaps:      cfg.Snapshots,
		advisor:    cfg.Advisor,
		policy:     cfg.Policy,
		logger:     cfg.Logger.With(slog.String("component", "position_engine")),
		dryRun:     cfg.DryRun,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// OpenOnSpike evaluates a spike result and, when all gates pass, buys the
// cheapest outcome of the spiking market. It returns (nil, nil) when the
// entry is refused rather than failed: no upward price spike, position
// limit reached, no priced outcome, an already-open position on the same
// market, or an advisor veto.
func (e *Engine) OpenOnSpike(ctx context.Context, result domain.SpikeResult) (*domain.Position, error) {
	if _, ok := result.UpPriceSpike(); !ok {
		return nil, nil
	}

	open, err := e.ledger.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: list open positions: %w", err)
	}
	if !e.policy.CanOpen(len(open)) {
		e.logger.InfoContext(ctx, "entry refused: position limit reached",
			slog.String("market_id", result.MarketID),
			slog.Int("open_count", len(open)),
			slog.Int("max_positions", e.policy.MaxPositions),
		)
		return nil, nil
	}
	for _, pos := range open {
		if pos.MarketID == result.MarketID {
			e.logger.DebugContext(ctx, "entry refused: market already held",
				slog.String("market_id", result.MarketID),
				slog.String("position_id", pos.ID),
			)
			return nil, nil
		}
	}

	outcome, price, ok := result.Snapshot.BestEntry()
	if !ok {
		e.logger.WarnContext(ctx, "entry refused: no priced outcome",
			slog.String("market_id", result.MarketID),
		)
		return nil, nil
	}

	if e.advisor != nil {
		opinion, advErr := e.advisor.Assess(ctx, result)
		if advErr != nil {
			// Advisor failures never block an entry.
			e.logger.WarnContext(ctx, "advisor unavailable, proceeding",
				slog.String("market_id", result.MarketID),
				slog.String("error", advErr.Error()),
			)
		} else if !opinion.Proceed {
			e.logger.InfoContext(ctx, "entry refused: advisor veto",
				slog.String("market_id", result.MarketID),
				slog.Float64("confidence", opinion.Confidence),
				slog.String("rationale", opinion.Rationale),
			)
			return nil, nil
		}
	}

	investment := e.policy.EntrySize()
	shares := investment / price
	now := e.now().UTC()

	pos := domain.Position{
		ID:           uuid.NewString(),
		MarketID:     result.MarketID,
		ConditionID:  result.ConditionID,
		Question:     result.Question,
		Outcome:      outcome,
		TokenID:      result.Snapshot.TokenID(outcome),
		BuyPrice:     price,
		Shares:       shares,
		Investment:   investment,
		CurrentPrice: price,
		Status:       domain.PositionStatusOpen,
		OpenedAt:     now,
		UpdatedAt:    now,
	}

	if !e.dryRun {
		order := domain.OrderRequest{
			TokenID: pos.TokenID,
			Side:    domain.OrderSideBuy,
			Price:   price,
			Size:    shares,
		}
		res, orderErr := e.exchange.PlaceOrder(ctx, order)
		if orderErr != nil {
			return nil, fmt.Errorf("engine: buy order: %w", orderErr)
		}
		e.logger.InfoContext(ctx, "buy order filled",
			slog.String("order_id", res.OrderID),
			slog.String("token_id", pos.TokenID),
		)
	}

	if err := e.saveWithRetry(ctx, pos); err != nil {
		if e.dryRun {
			return nil, fmt.Errorf("engine: save position: %w", err)
		}
		// The order went through. Return the position anyway so the
		// caller can alert on it; the ledger is now out of sync.
		e.logger.ErrorContext(ctx, "order filled but ledger write failed",
			slog.String("position_id", pos.ID),
			slog.String("market_id", pos.MarketID),
			slog.String("error", err.Error()),
		)
		return &pos, nil
	}

	if e.archive != nil {
		if err := e.archive.Insert(ctx, pos); err != nil {
			e.logger.WarnContext(ctx, "archive insert failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	e.logger.InfoContext(ctx, "position opened",
		slog.String("position_id", pos.ID),
		slog.String("market_id", pos.MarketID),
		slog.String("outcome", outcome),
		slog.Float64("buy_price", price),
		slog.Float64("shares", shares),
		slog.Float64("investment", investment),
		slog.Bool("dry_run", e.dryRun),
	)

	return &pos, nil
}

// MonitorAll marks every open position against the freshest available
// price and closes the ones whose exit rules fire. It returns the
// positions closed this pass.
func (e *Engine) MonitorAll(ctx context.Context) ([]domain.Position, error) {
	open, err := e.ledger.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: list open positions: %w", err)
	}

	var closed []domain.Position
	for _, pos := range open {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		price, ok := e.resolvePrice(ctx, pos)
		if !ok {
			continue
		}

		pos.MarkPrice(price, e.now().UTC())
		if err := e.ledger.Save(ctx, pos); err != nil {
			e.logger.WarnContext(ctx, "position mark save failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}

		exit, reason := e.policy.ShouldExit(pos.ProfitPct)
		if !exit {
			continue
		}

		if err := e.Close(ctx, &pos, price, reason); err != nil {
			e.logger.ErrorContext(ctx, "position close failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		closed = append(closed, pos)
	}

	return closed, nil
}

// Close sells the position at the given price and records the closure.
// The ledger is updated even when the sell order fails, so a stuck
// exchange cannot wedge the book open; the discrepancy is logged for
// manual reconciliation.
func (e *Engine) Close(ctx context.Context, pos *domain.Position, price float64, reason string) error {
	if !e.dryRun {
		order := domain.OrderRequest{
			TokenID: pos.TokenID,
			Side:    domain.OrderSideSell,
			Price:   price,
			Size:    pos.Shares,
		}
		if _, err := e.exchange.PlaceOrder(ctx, order); err != nil {
			e.logger.ErrorContext(ctx, "sell order failed, closing ledger entry anyway",
				slog.String("position_id", pos.ID),
				slog.String("token_id", pos.TokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	pos.CloseAt(price, reason, e.now().UTC())

	if err := e.ledger.MarkClosed(ctx, *pos); err != nil {
		return fmt.Errorf("engine: mark closed: %w", err)
	}

	if e.archive != nil {
		if err := e.archive.RecordClose(ctx, *pos); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Entry row never made it to Postgres; insert the full
				// closed position instead.
				if insErr := e.archive.Insert(ctx, *pos); insErr != nil {
					e.logger.WarnContext(ctx, "archive close insert failed",
						slog.String("position_id", pos.ID),
						slog.String("error", insErr.Error()),
					)
				}
			} else {
				e.logger.WarnContext(ctx, "archive close failed",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	e.logger.InfoContext(ctx, "position closed",
		slog.String("position_id", pos.ID),
		slog.String("market_id", pos.MarketID),
		slog.String("exit_reason", reason),
		slog.Float64("sell_price", price),
		slog.Float64("profit", pos.Profit),
		slog.Float64("profit_pct", pos.ProfitPct),
	)

	return nil
}

// Summary aggregates the open book for periodic reporting.
func (e *Engine) Summary(ctx context.Context) (domain.PortfolioSummary, error) {
	open, err := e.ledger.OpenPositions(ctx)
	if err != nil {
		return domain.PortfolioSummary{}, fmt.Errorf("engine: list open positions: %w", err)
	}

	// Freshen marks from the ws-fed cache in one round trip; a position
	// without a cached price keeps its last persisted mark.
	tokenIDs := make([]string, 0, len(open))
	for _, pos := range open {
		tokenIDs = append(tokenIDs, pos.TokenID)
	}
	cached, err := e.prices.GetPrices(ctx, tokenIDs)
	if err != nil {
		e.logger.WarnContext(ctx, "bulk price lookup failed",
			slog.String("error", err.Error()),
		)
		cached = nil
	}

	sum := domain.PortfolioSummary{
		OpenCount: len(open),
		Positions: open,
	}
	for i := range open {
		if price, ok := cached[open[i].TokenID]; ok && price > 0 {
			open[i].MarkPrice(price, e.now())
		}
		sum.TotalInvested += open[i].Investment
		sum.TotalValue += open[i].Shares * open[i].CurrentPrice
	}
	sum.UnrealizedPnL = sum.TotalValue - sum.TotalInvested
	if sum.TotalInvested > 0 {
		sum.TotalProfitPct = sum.UnrealizedPnL / sum.TotalInvested * 100
	}

	return sum, nil
}

// resolvePrice finds the freshest price for a position's outcome, trying
// the latest stored snapshot, then the ws-fed price cache (rejecting stale
// entries), then a direct market fetch. A position with no resolvable
// price is skipped this cycle rather than marked against bad data.
func (e *Engine) resolvePrice(ctx context.Context, pos domain.Position) (float64, bool) {
	if snap, err := e.snaps.GetLatest(ctx, pos.MarketID); err == nil {
		if price, found := snap.Prices[pos.Outcome]; found && price > 0 {
			return price, true
		}
	}

	if price, ts, err := e.prices.GetPrice(ctx, pos.TokenID); err == nil && price > 0 {
		if e.now().Sub(ts) <= e.staleAfter {
			return price, true
		}
	}

	if snap, err := e.markets.Snapshot(ctx, pos.MarketID); err == nil {
		if price, found := snap.Prices[pos.Outcome]; found && price > 0 {
			return price, true
		}
	}

	e.logger.WarnContext(ctx, "no fresh price for position, skipping cycle",
		slog.String("position_id", pos.ID),
		slog.String("market_id", pos.MarketID),
		slog.String("outcome", pos.Outcome),
	)
	return 0, false
}

// saveWithRetry writes the position to the ledger, retrying once on
// failure. A transient Redis hiccup should not orphan a filled order.
func (e *Engine) saveWithRetry(ctx context.Context, pos domain.Position) error {
	err := e.ledger.Save(ctx, pos)
	if err == nil {
		return nil
	}
	e.logger.WarnContext(ctx, "ledger save failed, retrying",
		slog.String("position_id", pos.ID),
		slog.String("error", err.Error()),
	)
	return e.ledger.Save(ctx, pos)
}
