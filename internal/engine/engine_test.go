package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeLedger struct {
	open     map[string]domain.Position
	closed   map[string]domain.Position
	saveErrs int // number of Save calls to fail before succeeding
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		open:   make(map[string]domain.Position),
		closed: make(map[string]domain.Position),
	}
}

func (f *fakeLedger) Save(_ context.Context, pos domain.Position) error {
	if f.saveErrs > 0 {
		f.saveErrs--
		return errors.New("redis down")
	}
	f.open[pos.ID] = pos
	return nil
}

func (f *fakeLedger) Get(_ context.Context, id string) (domain.Position, error) {
	if pos, ok := f.open[id]; ok {
		return pos, nil
	}
	if pos, ok := f.closed[id]; ok {
		return pos, nil
	}
	return domain.Position{}, domain.ErrNotFound
}

func (f *fakeLedger) OpenIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.open))
	for id := range f.open {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeLedger) OpenPositions(_ context.Context) ([]domain.Position, error) {
	out := make([]domain.Position, 0, len(f.open))
	for _, pos := range f.open {
		out = append(out, pos)
	}
	return out, nil
}

func (f *fakeLedger) MarkClosed(_ context.Context, pos domain.Position) error {
	delete(f.open, pos.ID)
	f.closed[pos.ID] = pos
	return nil
}

func (f *fakeLedger) ClosedIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.closed))
	for id := range f.closed {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeExchange struct {
	orders []domain.OrderRequest
	err    error
}

func (f *fakeExchange) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if f.err != nil {
		return domain.OrderResult{}, f.err
	}
	f.orders = append(f.orders, req)
	return domain.OrderResult{Success: true, OrderID: "ord-1"}, nil
}

type fakeSnapStore struct {
	latest map[string]domain.MarketSnapshot
}

func (f *fakeSnapStore) Put(_ context.Context, snap domain.MarketSnapshot) error {
	if f.latest == nil {
		f.latest = make(map[string]domain.MarketSnapshot)
	}
	f.latest[snap.MarketID] = snap
	return nil
}

func (f *fakeSnapStore) GetLatest(_ context.Context, marketID string) (domain.MarketSnapshot, error) {
	snap, ok := f.latest[marketID]
	if !ok {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeSnapStore) GetPrevious(_ context.Context, _ string) (domain.MarketSnapshot, error) {
	return domain.MarketSnapshot{}, domain.ErrNotFound
}

func (f *fakeSnapStore) History(_ context.Context, _ string, _ int) ([]domain.MarketSnapshot, error) {
	return nil, nil
}

type fakePriceCache struct {
	prices map[string]float64
	at     time.Time
}

func (f *fakePriceCache) SetPrice(_ context.Context, id string, p float64, ts time.Time) error {
	if f.prices == nil {
		f.prices = make(map[string]float64)
	}
	f.prices[id] = p
	f.at = ts
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, id string) (float64, time.Time, error) {
	p, ok := f.prices[id]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, f.at, nil
}

func (f *fakePriceCache) GetPrices(_ context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeMarkets struct {
	snaps map[string]domain.MarketSnapshot
}

func (f *fakeMarkets) ActiveMarkets(_ context.Context, _ int) ([]domain.MarketSnapshot, error) {
	out := make([]domain.MarketSnapshot, 0, len(f.snaps))
	for _, s := range f.snaps {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeMarkets) Snapshot(_ context.Context, marketID string) (domain.MarketSnapshot, error) {
	snap, ok := f.snaps[marketID]
	if !ok {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

type fakeAdvisor struct {
	opinion domain.AdvisorOpinion
	err     error
}

func (f *fakeAdvisor) Assess(_ context.Context, _ domain.SpikeResult) (domain.AdvisorOpinion, error) {
	return f.opinion, f.err
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

type testDeps struct {
	ledger   *fakeLedger
	exchange *fakeExchange
	snaps    *fakeSnapStore
	prices   *fakePriceCache
	markets  *fakeMarkets
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *testDeps) {
	t.Helper()
	deps := &testDeps{
		ledger:   newFakeLedger(),
		exchange: &fakeExchange{},
		snaps:    &fakeSnapStore{},
		prices:   &fakePriceCache{},
		markets:  &fakeMarkets{snaps: make(map[string]domain.MarketSnapshot)},
	}
	cfg := Config{
		Ledger:    deps.ledger,
		Exchange:  deps.exchange,
		Markets:   deps.markets,
		Prices:    deps.prices,
		Snapshots: deps.snaps,
		Policy: domain.RiskPolicy{
			MaxPositions:  5,
			MaxSizeUSD:    100,
			TakeProfitPct: 2.0,
			StopLossPct:   -5.0,
		},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		StaleAfter: 30 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), deps
}

func upSpikeResult(marketID string, prices map[string]float64) domain.SpikeResult {
	return domain.SpikeResult{
		MarketID: marketID,
		Question: "Will X happen?",
		Spikes: []domain.Spike{{
			Type:          domain.SpikeTypePrice,
			Direction:     domain.SpikeDirectionUp,
			Outcome:       "Yes",
			ChangePercent: 4.0,
		}},
		Snapshot: domain.MarketSnapshot{
			MarketID:  marketID,
			Question:  "Will X happen?",
			Prices:    prices,
			Volume:    10000,
			Liquidity: 5000,
			Timestamp: time.Now(),
		},
	}
}

// --------------------------------------------------------------------------
// OpenOnSpike
// --------------------------------------------------------------------------

func TestOpenOnSpikeBuysCheapestOutcome(t *testing.T) {
	e, deps := newTestEngine(t, nil)

	pos, err := e.OpenOnSpike(context.Background(), upSpikeResult("m1", map[string]float64{"Yes": 0.60, "No": 0.40}))
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	if pos == nil {
		t.Fatal("expected a position")
	}
	if pos.Outcome != "No" {
		t.Errorf("Outcome = %q, want No (cheapest)", pos.Outcome)
	}
	if pos.BuyPrice != 0.40 {
		t.Errorf("BuyPrice = %v, want 0.40", pos.BuyPrice)
	}
	if want := 100.0 / 0.40; pos.Shares != want {
		t.Errorf("Shares = %v, want %v", pos.Shares, want)
	}
	if pos.Investment != 100 {
		t.Errorf("Investment = %v, want 100", pos.Investment)
	}
	if len(deps.exchange.orders) != 1 {
		t.Fatalf("orders placed = %d, want 1", len(deps.exchange.orders))
	}
	if deps.exchange.orders[0].Side != domain.OrderSideBuy {
		t.Errorf("order side = %q, want BUY", deps.exchange.orders[0].Side)
	}
	if len(deps.ledger.open) != 1 {
		t.Errorf("open positions in ledger = %d, want 1", len(deps.ledger.open))
	}
}

func TestOpenOnSpikeNoUpwardSpikeRefused(t *testing.T) {
	e, deps := newTestEngine(t, nil)

	result := upSpikeResult("m1", map[string]float64{"Yes": 0.50})
	result.Spikes = []domain.Spike{{
		Type:      domain.SpikeTypePrice,
		Direction: domain.SpikeDirectionDown,
		Outcome:   "Yes",
	}}

	pos, err := e.OpenOnSpike(context.Background(), result)
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	if pos != nil {
		t.Fatalf("expected refusal, got position %v", pos)
	}
	if len(deps.exchange.orders) != 0 {
		t.Errorf("orders placed on refusal: %d", len(deps.exchange.orders))
	}
}

func TestOpenOnSpikePositionLimitRefused(t *testing.T) {
	e, deps := newTestEngine(t, func(cfg *Config) {
		cfg.Policy.MaxPositions = 1
	})
	deps.ledger.open["p1"] = domain.Position{ID: "p1", MarketID: "other"}

	pos, err := e.OpenOnSpike(context.Background(), upSpikeResult("m1", map[string]float64{"Yes": 0.50}))
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	if pos != nil {
		t.Fatal("expected refusal at position limit")
	}
}

func TestOpenOnSpikeDuplicateMarketRefused(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	deps.ledger.open["p1"] = domain.Position{ID: "p1", MarketID: "m1"}

	pos, err := e.OpenOnSpike(context.Background(), upSpikeResult("m1", map[string]float64{"Yes": 0.50}))
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	if pos != nil {
		t.Fatal("expected refusal for already-held market")
	}
}

func TestOpenOnSpikeAdvisorVeto(t *testing.T) {
	e, deps := newTestEngine(t, func(cfg *Config) {
		cfg.Advisor = &fakeAdvisor{opinion: domain.AdvisorOpinion{Proceed: false, Rationale: "late"}}
	})

	pos, err := e.OpenOnSpike(context.Background(), upSpikeResult("m1", map[string]float64{"Yes": 0.50}))
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	if pos != nil {
		t.Fatal("expected refusal on advisor veto")
	}
	if len(deps.exchange.orders) != 0 {
		t.Errorf("orders placed despite veto: %d", len(deps.exchange.orders))
	}
}

func TestOpenOnSpikeAdvisorErrorDoesNotBlock(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Advisor = &fakeAdvisor{err: errors.New("timeout")}
	})

	pos, err := e.OpenOnSpike(context.Background(), upSpikeResult("m1", map[string]float64{"Yes": 0.50}))
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	if pos == nil {
		t.Fatal("advisor failure should not block the entry")
	}
}

func TestOpenOnSpikeDryRunSkipsOrders(t *testing.T) {
	e, deps := newTestEngine(t, func(cfg *Config) {
		cfg.DryRun = true
	})

	pos, err := e.OpenOnSpike(context.Background(), upSpikeResult("m1", map[string]float64{"Yes": 0.50}))
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	if pos == nil {
		t.Fatal("expected a dry-run position")
	}
	if len(deps.exchange.orders) != 0 {
		t.Errorf("dry run placed %d orders", len(deps.exchange.orders))
	}
	if len(deps.ledger.open) != 1 {
		t.Errorf("dry-run position not tracked in ledger")
	}
}

func TestOpenOnSpikeLedgerRetrySucceeds(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	deps.ledger.saveErrs = 1 // first Save fails, retry succeeds

	pos, err := e.OpenOnSpike(context.Background(), upSpikeResult("m1", map[string]float64{"Yes": 0.50}))
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	if pos == nil {
		t.Fatal("expected a position after retry")
	}
	if len(deps.ledger.open) != 1 {
		t.Errorf("position not in ledger after retry")
	}
}

func TestOpenOnSpikeOrderFilledButLedgerDown(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	deps.ledger.saveErrs = 2 // both Save attempts fail

	pos, err := e.OpenOnSpike(context.Background(), upSpikeResult("m1", map[string]float64{"Yes": 0.50}))
	if err != nil {
		t.Fatalf("OpenOnSpike: %v", err)
	}
	// The order was filled: the caller still gets the position back.
	if pos == nil {
		t.Fatal("expected the filled position despite ledger failure")
	}
	if len(deps.exchange.orders) != 1 {
		t.Errorf("orders placed = %d, want 1", len(deps.exchange.orders))
	}
}

// --------------------------------------------------------------------------
// MonitorAll / Close
// --------------------------------------------------------------------------

func openPosition(id, marketID string, buyPrice float64) domain.Position {
	return domain.Position{
		ID:           id,
		MarketID:     marketID,
		Outcome:      "Yes",
		TokenID:      "tok-" + id,
		BuyPrice:     buyPrice,
		Shares:       100 / buyPrice,
		Investment:   100,
		CurrentPrice: buyPrice,
		Status:       domain.PositionStatusOpen,
		OpenedAt:     time.Now().UTC(),
	}
}

func TestMonitorAllClosesOnTakeProfit(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	deps.ledger.open["p1"] = openPosition("p1", "m1", 0.50)
	// +2% exactly: boundary-inclusive take-profit.
	deps.snaps.Put(context.Background(), domain.MarketSnapshot{
		MarketID: "m1",
		Prices:   map[string]float64{"Yes": 0.51},
	})

	closed, err := e.MonitorAll(context.Background())
	if err != nil {
		t.Fatalf("MonitorAll: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(closed))
	}
	if closed[0].ExitReason != domain.ExitReasonTakeProfit {
		t.Errorf("ExitReason = %q, want take_profit", closed[0].ExitReason)
	}
	if len(deps.ledger.closed) != 1 {
		t.Errorf("ledger closed count = %d, want 1", len(deps.ledger.closed))
	}
	// One sell order was placed.
	if len(deps.exchange.orders) != 1 || deps.exchange.orders[0].Side != domain.OrderSideSell {
		t.Errorf("expected one SELL order, got %v", deps.exchange.orders)
	}
}

func TestMonitorAllClosesOnStopLoss(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	deps.ledger.open["p1"] = openPosition("p1", "m1", 0.50)
	// -6% breaches the -5% stop.
	deps.snaps.Put(context.Background(), domain.MarketSnapshot{
		MarketID: "m1",
		Prices:   map[string]float64{"Yes": 0.47},
	})

	closed, err := e.MonitorAll(context.Background())
	if err != nil {
		t.Fatalf("MonitorAll: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(closed))
	}
	if closed[0].ExitReason != domain.ExitReasonStopLoss {
		t.Errorf("ExitReason = %q, want stop_loss", closed[0].ExitReason)
	}
}

func TestMonitorAllHoldsInsideBand(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	deps.ledger.open["p1"] = openPosition("p1", "m1", 0.50)
	// +1%: inside the hold band.
	deps.snaps.Put(context.Background(), domain.MarketSnapshot{
		MarketID: "m1",
		Prices:   map[string]float64{"Yes": 0.505},
	})

	closed, err := e.MonitorAll(context.Background())
	if err != nil {
		t.Fatalf("MonitorAll: %v", err)
	}
	if len(closed) != 0 {
		t.Fatalf("closed = %d, want 0", len(closed))
	}
	// The mark was persisted.
	pos := deps.ledger.open["p1"]
	if pos.CurrentPrice != 0.505 {
		t.Errorf("CurrentPrice = %v, want 0.505", pos.CurrentPrice)
	}
}

func TestMonitorAllFallsBackToMarketSource(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	deps.ledger.open["p1"] = openPosition("p1", "m1", 0.50)
	// No snapshot, no cached price; direct fetch returns a stop-loss price.
	deps.markets.snaps["m1"] = domain.MarketSnapshot{
		MarketID: "m1",
		Prices:   map[string]float64{"Yes": 0.40},
	}

	closed, err := e.MonitorAll(context.Background())
	if err != nil {
		t.Fatalf("MonitorAll: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(closed))
	}
}

func TestMonitorAllSkipsUnpriceablePosition(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	deps.ledger.open["p1"] = openPosition("p1", "m1", 0.50)

	closed, err := e.MonitorAll(context.Background())
	if err != nil {
		t.Fatalf("MonitorAll: %v", err)
	}
	if len(closed) != 0 {
		t.Fatalf("closed = %d, want 0", len(closed))
	}
	if len(deps.ledger.open) != 1 {
		t.Errorf("position should remain open when unpriceable")
	}
}

func TestMonitorAllRejectsStaleCachedPrice(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	pos := openPosition("p1", "m1", 0.50)
	deps.ledger.open["p1"] = pos
	// Cached price is old enough to be stale.
	deps.prices.SetPrice(context.Background(), pos.TokenID, 0.60, time.Now().Add(-5*time.Minute))

	closed, err := e.MonitorAll(context.Background())
	if err != nil {
		t.Fatalf("MonitorAll: %v", err)
	}
	if len(closed) != 0 {
		t.Fatalf("stale price should not trigger a close, closed = %d", len(closed))
	}
}

func TestCloseMarksClosedEvenWhenSellFails(t *testing.T) {
	e, deps := newTestEngine(t, nil)
	pos := openPosition("p1", "m1", 0.50)
	deps.ledger.open["p1"] = pos
	deps.exchange.err = errors.New("exchange down")

	if err := e.Close(context.Background(), &pos, 0.47, domain.ExitReasonStopLoss); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if pos.Status != domain.PositionStatusClosed {
		t.Errorf("Status = %q, want closed", pos.Status)
	}
	if len(deps.ledger.closed) != 1 {
		t.Errorf("ledger closed count = %d, want 1", len(deps.ledger.closed))
	}
}

// --------------------------------------------------------------------------
// Summary
// --------------------------------------------------------------------------

func TestSummaryAggregatesOpenBook(t *testing.T) {
	e, deps := newTestEngine(t, nil)

	p1 := openPosition("p1", "m1", 0.50) // 200 shares
	p1.CurrentPrice = 0.55               // value 110
	p2 := openPosition("p2", "m2", 0.25) // 400 shares
	p2.CurrentPrice = 0.20               // value 80
	deps.ledger.open["p1"] = p1
	deps.ledger.open["p2"] = p2

	sum, err := e.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.OpenCount != 2 {
		t.Errorf("OpenCount = %d, want 2", sum.OpenCount)
	}
	if sum.TotalInvested != 200 {
		t.Errorf("TotalInvested = %v, want 200", sum.TotalInvested)
	}
	if got, want := sum.TotalValue, 190.0; !within(got, want, 1e-9) {
		t.Errorf("TotalValue = %v, want %v", got, want)
	}
	if got, want := sum.UnrealizedPnL, -10.0; !within(got, want, 1e-9) {
		t.Errorf("UnrealizedPnL = %v, want %v", got, want)
	}
	if got, want := sum.TotalProfitPct, -5.0; !within(got, want, 1e-9) {
		t.Errorf("TotalProfitPct = %v, want %v", got, want)
	}
}

func TestSummaryEmptyBookHasZeroProfitPct(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	sum, err := e.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.OpenCount != 0 {
		t.Errorf("OpenCount = %d, want 0", sum.OpenCount)
	}
	if sum.TotalProfitPct != 0 {
		t.Errorf("TotalProfitPct = %v, want 0 on an empty book", sum.TotalProfitPct)
	}
}

func within(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}
