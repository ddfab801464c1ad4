package domain

import (
	"math"
	"testing"
	"time"
)

func timeNow(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSnapshotAvgPrice(t *testing.T) {
	s := MarketSnapshot{Prices: map[string]float64{"Yes": 0.6, "No": 0.4}}
	if got := s.AvgPrice(); !closeEnough(got, 0.5) {
		t.Errorf("AvgPrice() = %v, want 0.5", got)
	}
	if got := (MarketSnapshot{}).AvgPrice(); got != 0 {
		t.Errorf("AvgPrice() on empty snapshot = %v, want 0", got)
	}
}

func TestSnapshotBestEntry(t *testing.T) {
	s := MarketSnapshot{Prices: map[string]float64{"Yes": 0.62, "No": 0.38}}
	outcome, price, ok := s.BestEntry()
	if !ok || outcome != "No" || !closeEnough(price, 0.38) {
		t.Errorf("BestEntry() = (%q, %v, %v), want (No, 0.38, true)", outcome, price, ok)
	}

	// Zero prices are not tradable entries.
	s = MarketSnapshot{Prices: map[string]float64{"Yes": 0, "No": 0.99}}
	outcome, price, ok = s.BestEntry()
	if !ok || outcome != "No" {
		t.Errorf("BestEntry() skipped zero price: got (%q, %v, %v)", outcome, price, ok)
	}

	if _, _, ok := (MarketSnapshot{}).BestEntry(); ok {
		t.Error("BestEntry() on empty snapshot reported ok")
	}
}

func TestSnapshotTokenID(t *testing.T) {
	s := MarketSnapshot{
		ConditionID: "0xabc",
		TokenIDs:    map[string]string{"Yes": "71321045679252212594626385532706912750332728571942532289631379312455583992563"},
	}
	if got := s.TokenID("Yes"); got != s.TokenIDs["Yes"] {
		t.Errorf("TokenID(Yes) = %q, want mapped token", got)
	}
	if got := s.TokenID("No"); got != "0xabc-No" {
		t.Errorf("TokenID(No) = %q, want fallback composite", got)
	}
}
