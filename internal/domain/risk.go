package domain

// Exit reasons recorded on closed positions and surfaced in alerts.
const (
	ExitReasonTakeProfit = "take_profit"
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonManual     = "manual"
)

// RiskPolicy bounds position count, entry size, and exit levels. All
// comparisons are boundary-inclusive: a move exactly at a threshold
// triggers it.
type RiskPolicy struct {
	MaxPositions  int     // concurrent open position cap
	MaxSizeUSD    float64 // dollars per entry
	TakeProfitPct float64 // positive, e.g. 2.0
	StopLossPct   float64 // negative, e.g. -5.0
}

// CanOpen reports whether another position may be opened given the
// current open count.
func (r RiskPolicy) CanOpen(openCount int) bool {
	return openCount < r.MaxPositions
}

// EntrySize returns the dollar amount to commit on a new entry.
func (r RiskPolicy) EntrySize() float64 { return r.MaxSizeUSD }

// ShouldExit evaluates the exit rules against an unrealized profit
// percent. Take-profit is checked before stop-loss.
func (r RiskPolicy) ShouldExit(profitPct float64) (bool, string) {
	if profitPct >= r.TakeProfitPct {
		return true, ExitReasonTakeProfit
	}
	if profitPct <= r.StopLossPct {
		return true, ExitReasonStopLoss
	}
	return false, ""
}
