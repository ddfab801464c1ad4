package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// Alerts formats trading events into human-readable notifications and
// routes them through a Notifier.
type Alerts struct {
	notifier *Notifier
}

// NewAlerts wraps a Notifier with domain-aware formatting.
func NewAlerts(notifier *Notifier) *Alerts {
	return &Alerts{notifier: notifier}
}

// SpikeDetected announces the spikes found on one market.
func (a *Alerts) SpikeDetected(ctx context.Context, result domain.SpikeResult) error {
	title := fmt.Sprintf("Spike: %s", truncate(result.Question, 80))

	var b strings.Builder
	for _, s := range result.Spikes {
		switch s.Type {
		case domain.SpikeTypePrice:
			arrow, sign := "↑", "+"
			if s.Direction == domain.SpikeDirectionDown {
				arrow, sign = "↓", "-"
			}
			outcome := s.Outcome
			if outcome == "" {
				outcome = "avg"
			}
			fmt.Fprintf(&b, "%s %s: %.3f → %.3f (%s%.2f%%)\n",
				arrow, outcome, s.Previous, s.Current, sign, s.ChangePercent)
		case domain.SpikeTypeVolume:
			fmt.Fprintf(&b, "volume: $%.0f → $%.0f (%.1fx)\n",
				s.Previous, s.Current, s.ChangeRatio)
		}
	}
	fmt.Fprintf(&b, "volume $%.0f, liquidity $%.0f",
		result.Snapshot.Volume, result.Snapshot.Liquidity)

	return a.notifier.Notify(ctx, EventSpike, title, b.String())
}

// PositionOpened announces a new entry.
func (a *Alerts) PositionOpened(ctx context.Context, pos domain.Position) error {
	title := fmt.Sprintf("Opened: %s", truncate(pos.Question, 80))
	message := fmt.Sprintf("%s @ %.3f\n%.2f shares for $%.2f",
		pos.Outcome, pos.BuyPrice, pos.Shares, pos.Investment)
	return a.notifier.Notify(ctx, EventEntry, title, message)
}

// PositionClosed announces an exit with its realized result.
func (a *Alerts) PositionClosed(ctx context.Context, pos domain.Position) error {
	verdict := "LOSS"
	if pos.Profit >= 0 {
		verdict = "PROFIT"
	}
	title := fmt.Sprintf("Closed (%s): %s", verdict, truncate(pos.Question, 70))
	message := fmt.Sprintf("%s: %.3f → %.3f\n$%+.2f (%+.2f%%), reason: %s",
		pos.Outcome, pos.BuyPrice, pos.SellPrice, pos.Profit, pos.ProfitPct, pos.ExitReason)
	return a.notifier.Notify(ctx, EventExit, title, message)
}

// PortfolioSummary reports the open book.
func (a *Alerts) PortfolioSummary(ctx context.Context, sum domain.PortfolioSummary) error {
	title := fmt.Sprintf("Portfolio: %d open", sum.OpenCount)

	var b strings.Builder
	fmt.Fprintf(&b, "invested $%.2f, value $%.2f, unrealized $%+.2f (%+.2f%%)\n",
		sum.TotalInvested, sum.TotalValue, sum.UnrealizedPnL, sum.TotalProfitPct)
	for _, pos := range sum.Positions {
		fmt.Fprintf(&b, "%s %s: %.3f → %.3f (%+.2f%%)\n",
			truncate(pos.Question, 40), pos.Outcome, pos.BuyPrice, pos.CurrentPrice, pos.ProfitPct)
	}

	return a.notifier.Notify(ctx, EventSummary, title, strings.TrimRight(b.String(), "\n"))
}

// WhaleMove announces a large trader's fill.
func (a *Alerts) WhaleMove(ctx context.Context, move domain.WhaleMove) error {
	title := fmt.Sprintf("Whale %s: %s", move.Side, truncate(move.Question, 70))
	message := fmt.Sprintf("%s\n%s @ %.3f, $%.0f",
		shortWallet(move.Wallet), move.Outcome, move.Price, move.SizeUSD)
	return a.notifier.Notify(ctx, EventWhale, title, message)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func shortWallet(w string) string {
	if len(w) <= 12 {
		return w
	}
	return w[:6] + "..." + w[len(w)-4:]
}
