package detector

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// memStore is an in-memory SnapshotStore keeping per-market history lists,
// newest first.
type memStore struct {
	history map[string][]domain.MarketSnapshot
}

func newMemStore() *memStore {
	return &memStore{history: make(map[string][]domain.MarketSnapshot)}
}

func (m *memStore) Put(_ context.Context, snap domain.MarketSnapshot) error {
	h := append([]domain.MarketSnapshot{snap}, m.history[snap.MarketID]...)
	if len(h) > 10 {
		h = h[:10]
	}
	m.history[snap.MarketID] = h
	return nil
}

func (m *memStore) GetLatest(_ context.Context, marketID string) (domain.MarketSnapshot, error) {
	h := m.history[marketID]
	if len(h) == 0 {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return h[0], nil
}

func (m *memStore) GetPrevious(_ context.Context, marketID string) (domain.MarketSnapshot, error) {
	h := m.history[marketID]
	if len(h) < 2 {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return h[1], nil
}

func (m *memStore) History(_ context.Context, marketID string, limit int) ([]domain.MarketSnapshot, error) {
	h := m.history[marketID]
	if limit < len(h) {
		h = h[:limit]
	}
	return h, nil
}

func newTestDetector(store domain.SnapshotStore) *Detector {
	return New(Config{
		Store:          store,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		PriceThreshold: 0.015,
		VolumeRatio:    1.5,
		MinLiquidity:   1000,
	})
}

func snapshot(volume, liquidity float64, prices map[string]float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:  "m1",
		Question:  "Will it rain tomorrow?",
		Volume:    volume,
		Liquidity: liquidity,
		Prices:    prices,
		Timestamp: time.Now(),
	}
}

func TestCheckFirstObservationHasNoSpikes(t *testing.T) {
	d := newTestDetector(newMemStore())

	res, err := d.Check(context.Background(), snapshot(5000, 2000, map[string]float64{"Yes": 0.50, "No": 0.50}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.HasSpikes() {
		t.Fatalf("expected no spikes on first observation, got %v", res.Spikes)
	}
}

func TestCheckIdenticalSnapshotsYieldNoSpikes(t *testing.T) {
	d := newTestDetector(newMemStore())
	snap := snapshot(5000, 2000, map[string]float64{"Yes": 0.50, "No": 0.50})

	if _, err := d.Check(context.Background(), snap); err != nil {
		t.Fatalf("first Check: %v", err)
	}
	res, err := d.Check(context.Background(), snap)
	if err != nil {
		t.Fatalf("second Check: %v", err)
	}
	if res.HasSpikes() {
		t.Fatalf("identical snapshots produced spikes: %v", res.Spikes)
	}
}

func TestCheckDetectsPriceSpike(t *testing.T) {
	d := newTestDetector(newMemStore())
	ctx := context.Background()

	if _, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.40, "No": 0.60})); err != nil {
		t.Fatalf("seed Check: %v", err)
	}
	// Both outcomes cross the 1.5% threshold (Yes +5%, No -3.33%), but only
	// the largest move is reported.
	res, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.42, "No": 0.58}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(res.Spikes) != 1 {
		t.Fatalf("expected one price spike, got %d: %v", len(res.Spikes), res.Spikes)
	}
	up, ok := res.UpPriceSpike()
	if !ok {
		t.Fatal("expected an upward price spike")
	}
	if up.Outcome != "Yes" {
		t.Errorf("spike outcome = %q, want Yes (largest move)", up.Outcome)
	}
	if got, want := up.ChangePercent, 5.0; !closeEnough(got, want) {
		t.Errorf("ChangePercent = %v, want %v", got, want)
	}
	if got, want := up.Threshold, 0.015; !closeEnough(got, want) {
		t.Errorf("Threshold = %v, want %v", got, want)
	}
}

func TestCheckDownSpikeCarriesMagnitude(t *testing.T) {
	d := newTestDetector(newMemStore())
	ctx := context.Background()

	if _, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.60})); err != nil {
		t.Fatalf("seed Check: %v", err)
	}
	res, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.57}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(res.Spikes) != 1 {
		t.Fatalf("expected one price spike, got %v", res.Spikes)
	}
	spike := res.Spikes[0]
	if spike.Direction != domain.SpikeDirectionDown {
		t.Errorf("direction = %q, want down", spike.Direction)
	}
	if got, want := spike.ChangePercent, 5.0; !closeEnough(got, want) {
		t.Errorf("ChangePercent = %v, want unsigned %v", got, want)
	}
}

func TestCheckBelowThresholdIgnored(t *testing.T) {
	d := newTestDetector(newMemStore())
	ctx := context.Background()

	if _, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.500})); err != nil {
		t.Fatalf("seed Check: %v", err)
	}
	// +1% is below the 1.5% threshold.
	res, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.505}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.HasSpikes() {
		t.Fatalf("sub-threshold move produced spikes: %v", res.Spikes)
	}
}

func TestCheckDetectsVolumeSpike(t *testing.T) {
	d := newTestDetector(newMemStore())
	ctx := context.Background()

	if _, err := d.Check(ctx, snapshot(1000, 2000, map[string]float64{"Yes": 0.50})); err != nil {
		t.Fatalf("seed Check: %v", err)
	}
	res, err := d.Check(ctx, snapshot(2000, 2000, map[string]float64{"Yes": 0.50}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(res.Spikes) != 1 {
		t.Fatalf("expected one volume spike, got %v", res.Spikes)
	}
	spike := res.Spikes[0]
	if spike.Type != domain.SpikeTypeVolume {
		t.Errorf("spike type = %q, want volume", spike.Type)
	}
	if got, want := spike.ChangeRatio, 2.0; !closeEnough(got, want) {
		t.Errorf("ChangeRatio = %v, want %v", got, want)
	}
	if got, want := spike.Threshold, 1.5; !closeEnough(got, want) {
		t.Errorf("Threshold = %v, want %v", got, want)
	}
}

func TestCheckSkipsIlliquidMarkets(t *testing.T) {
	store := newMemStore()
	d := newTestDetector(store)
	ctx := context.Background()

	if _, err := d.Check(ctx, snapshot(1000, 500, map[string]float64{"Yes": 0.50})); err != nil {
		t.Fatalf("seed Check: %v", err)
	}
	// Huge move, but liquidity is below the floor.
	res, err := d.Check(ctx, snapshot(5000, 500, map[string]float64{"Yes": 0.90}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.HasSpikes() {
		t.Fatalf("illiquid market produced spikes: %v", res.Spikes)
	}
	// Snapshots are still stored while the market is below the floor.
	if got := len(store.history["m1"]); got != 2 {
		t.Errorf("stored snapshots = %d, want 2", got)
	}
}

func TestCheckMeanFallbackOnOutcomeMismatch(t *testing.T) {
	d := newTestDetector(newMemStore())
	ctx := context.Background()

	if _, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.40, "No": 0.60})); err != nil {
		t.Fatalf("seed Check: %v", err)
	}
	// Outcome set changed; mean moves 0.50 -> 0.55 (+10%).
	res, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"A": 0.50, "B": 0.55, "C": 0.60}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(res.Spikes) != 1 {
		t.Fatalf("expected one mean-price spike, got %v", res.Spikes)
	}
	if res.Spikes[0].Outcome != "" {
		t.Errorf("mean-price spike should not name an outcome, got %q", res.Spikes[0].Outcome)
	}
	if got, want := res.Spikes[0].ChangePercent, 10.0; !closeEnough(got, want) {
		t.Errorf("ChangePercent = %v, want %v", got, want)
	}
}

func TestCheckComparesCommonOutcomesWhenSetChanges(t *testing.T) {
	d := newTestDetector(newMemStore())
	ctx := context.Background()

	if _, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.50, "No": 0.50})); err != nil {
		t.Fatalf("seed Check: %v", err)
	}
	// "No" was replaced by "Maybe", but "Yes" is present in both snapshots
	// and moved +20%; the per-outcome comparison must still see it.
	res, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"Yes": 0.60, "Maybe": 0.40}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(res.Spikes) != 1 {
		t.Fatalf("expected one price spike, got %v", res.Spikes)
	}
	if res.Spikes[0].Outcome != "Yes" {
		t.Errorf("spike outcome = %q, want Yes", res.Spikes[0].Outcome)
	}
	if got, want := res.Spikes[0].ChangePercent, 20.0; !closeEnough(got, want) {
		t.Errorf("ChangePercent = %v, want %v", got, want)
	}
}

func TestCheckMeanFallbackAfterZeroPreviousPrice(t *testing.T) {
	d := newTestDetector(newMemStore())
	ctx := context.Background()

	if _, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"A": 0, "B": 0.50})); err != nil {
		t.Fatalf("seed Check: %v", err)
	}
	// A's zero previous price disqualifies the per-outcome comparison and B
	// did not move, but the mean jumped 0.25 -> 0.50 and must be reported.
	res, err := d.Check(ctx, snapshot(5000, 2000, map[string]float64{"A": 0.50, "B": 0.50}))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(res.Spikes) != 1 {
		t.Fatalf("expected one mean-price spike, got %v", res.Spikes)
	}
	spike := res.Spikes[0]
	if spike.Outcome != "" {
		t.Errorf("mean-price spike should not name an outcome, got %q", spike.Outcome)
	}
	if got, want := spike.ChangePercent, 100.0; !closeEnough(got, want) {
		t.Errorf("ChangePercent = %v, want %v", got, want)
	}
}

func closeEnough(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
