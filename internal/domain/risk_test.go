package domain

import "testing"

func defaultPolicy() RiskPolicy {
	return RiskPolicy{
		MaxPositions:  5,
		MaxSizeUSD:    100,
		TakeProfitPct: 2.0,
		StopLossPct:   -5.0,
	}
}

func TestRiskPolicyCanOpen(t *testing.T) {
	p := defaultPolicy()
	if !p.CanOpen(0) {
		t.Error("CanOpen(0) = false, want true")
	}
	if !p.CanOpen(4) {
		t.Error("CanOpen(4) = false, want true")
	}
	if p.CanOpen(5) {
		t.Error("CanOpen(5) = true, want false")
	}
	if p.CanOpen(6) {
		t.Error("CanOpen(6) = true, want false")
	}
}

func TestRiskPolicyShouldExit(t *testing.T) {
	p := defaultPolicy()
	cases := []struct {
		name      string
		profitPct float64
		exit      bool
		reason    string
	}{
		{"flat", 0, false, ""},
		{"small gain", 1.99, false, ""},
		{"take profit boundary", 2.0, true, ExitReasonTakeProfit},
		{"large gain", 8.5, true, ExitReasonTakeProfit},
		{"small loss", -4.99, false, ""},
		{"stop loss boundary", -5.0, true, ExitReasonStopLoss},
		{"large loss", -20, true, ExitReasonStopLoss},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exit, reason := p.ShouldExit(tc.profitPct)
			if exit != tc.exit || reason != tc.reason {
				t.Errorf("ShouldExit(%v) = (%v, %q), want (%v, %q)",
					tc.profitPct, exit, reason, tc.exit, tc.reason)
			}
		})
	}
}

func TestPositionMarkAndClose(t *testing.T) {
	now := timeNow(t)
	pos := Position{BuyPrice: 0.50, Shares: 200, Investment: 100, Status: PositionStatusOpen}

	pos.MarkPrice(0.51, now)
	if got, want := pos.ProfitPct, 2.0; !closeEnough(got, want) {
		t.Errorf("ProfitPct = %v, want %v", got, want)
	}

	pos.CloseAt(0.51, ExitReasonTakeProfit, now)
	if pos.Status != PositionStatusClosed {
		t.Errorf("Status = %v, want closed", pos.Status)
	}
	if got, want := pos.SellAmount, 102.0; !closeEnough(got, want) {
		t.Errorf("SellAmount = %v, want %v", got, want)
	}
	if got, want := pos.Profit, 2.0; !closeEnough(got, want) {
		t.Errorf("Profit = %v, want %v", got, want)
	}
	if pos.ClosedAt == nil {
		t.Error("ClosedAt not set")
	}
}
