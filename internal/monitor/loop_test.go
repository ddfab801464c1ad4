package monitor

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/detector"
	"github.com/ranjan2829/PolyBrain/internal/domain"
	"github.com/ranjan2829/PolyBrain/internal/engine"
	"github.com/ranjan2829/PolyBrain/internal/notify"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type memSnapStore struct {
	history map[string][]domain.MarketSnapshot
}

func newMemSnapStore() *memSnapStore {
	return &memSnapStore{history: make(map[string][]domain.MarketSnapshot)}
}

func (m *memSnapStore) Put(_ context.Context, snap domain.MarketSnapshot) error {
	m.history[snap.MarketID] = append([]domain.MarketSnapshot{snap}, m.history[snap.MarketID]...)
	return nil
}

func (m *memSnapStore) GetLatest(_ context.Context, marketID string) (domain.MarketSnapshot, error) {
	h := m.history[marketID]
	if len(h) == 0 {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return h[0], nil
}

func (m *memSnapStore) GetPrevious(_ context.Context, marketID string) (domain.MarketSnapshot, error) {
	h := m.history[marketID]
	if len(h) < 2 {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return h[1], nil
}

func (m *memSnapStore) History(_ context.Context, marketID string, limit int) ([]domain.MarketSnapshot, error) {
	h := m.history[marketID]
	if limit < len(h) {
		h = h[:limit]
	}
	return h, nil
}

type memLedger struct {
	open   map[string]domain.Position
	closed map[string]domain.Position
}

func newMemLedger() *memLedger {
	return &memLedger{open: make(map[string]domain.Position), closed: make(map[string]domain.Position)}
}

func (m *memLedger) Save(_ context.Context, pos domain.Position) error {
	m.open[pos.ID] = pos
	return nil
}

func (m *memLedger) Get(_ context.Context, id string) (domain.Position, error) {
	if pos, ok := m.open[id]; ok {
		return pos, nil
	}
	return domain.Position{}, domain.ErrNotFound
}

func (m *memLedger) OpenIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memLedger) OpenPositions(_ context.Context) ([]domain.Position, error) {
	out := make([]domain.Position, 0, len(m.open))
	for _, pos := range m.open {
		out = append(out, pos)
	}
	return out, nil
}

func (m *memLedger) MarkClosed(_ context.Context, pos domain.Position) error {
	delete(m.open, pos.ID)
	m.closed[pos.ID] = pos
	return nil
}

func (m *memLedger) ClosedIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.closed))
	for id := range m.closed {
		ids = append(ids, id)
	}
	return ids, nil
}

type stubMarkets struct {
	list []domain.MarketSnapshot
}

func (s *stubMarkets) ActiveMarkets(_ context.Context, _ int) ([]domain.MarketSnapshot, error) {
	out := make([]domain.MarketSnapshot, len(s.list))
	copy(out, s.list)
	return out, nil
}

func (s *stubMarkets) Snapshot(_ context.Context, marketID string) (domain.MarketSnapshot, error) {
	for _, snap := range s.list {
		if snap.MarketID == marketID {
			return snap, nil
		}
	}
	return domain.MarketSnapshot{}, domain.ErrNotFound
}

type stubExchange struct {
	orders []domain.OrderRequest
}

func (s *stubExchange) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	s.orders = append(s.orders, req)
	return domain.OrderResult{Success: true, OrderID: "ord"}, nil
}

type stubPriceCache struct{}

func (stubPriceCache) SetPrice(context.Context, string, float64, time.Time) error {
	return nil
}

func (stubPriceCache) GetPrice(context.Context, string) (float64, time.Time, error) {
	return 0, time.Time{}, domain.ErrNotFound
}

func (stubPriceCache) GetPrices(context.Context, []string) (map[string]float64, error) {
	return nil, nil
}

type stubLimiter struct {
	allow bool
	calls int
}

func (s *stubLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	s.calls++
	return s.allow, nil
}

func (s *stubLimiter) Wait(context.Context, string) error { return nil }

type captureSender struct {
	titles []string
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

type loopFixture struct {
	loop    *Loop
	markets *stubMarkets
	ledger  *memLedger
	limiter *stubLimiter
	sender  *captureSender
}

func newFixture(t *testing.T) *loopFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snaps := newMemSnapStore()
	ledger := newMemLedger()
	markets := &stubMarkets{}
	limiter := &stubLimiter{allow: true}
	sender := &captureSender{}

	det := detector.New(detector.Config{
		Store:          snaps,
		Logger:         logger,
		PriceThreshold: 0.015,
		VolumeRatio:    1.5,
		MinLiquidity:   1000,
	})

	eng := engine.New(engine.Config{
		Ledger:    ledger,
		Exchange:  &stubExchange{},
		Markets:   markets,
		Prices:    stubPriceCache{},
		Snapshots: snaps,
		Policy: domain.RiskPolicy{
			MaxPositions:  5,
			MaxSizeUSD:    100,
			TakeProfitPct: 2.0,
			StopLossPct:   -5.0,
		},
		Logger: logger,
	})

	alerts := notify.NewAlerts(notify.NewNotifier([]notify.Sender{sender}, nil, logger))

	loop := New(Config{
		Markets:       markets,
		Detector:      det,
		Engine:        eng,
		Alerts:        alerts,
		Limiter:       limiter,
		Logger:        logger,
		PollInterval:  time.Second,
		MarketLimit:   50,
		SummaryEvery:  10,
		AlertCooldown: 5 * time.Minute,
	})

	return &loopFixture{loop: loop, markets: markets, ledger: ledger, limiter: limiter, sender: sender}
}

func marketSnap(id string, volume, liquidity, yes float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:  id,
		Question:  "Question " + id,
		Volume:    volume,
		Liquidity: liquidity,
		Prices:    map[string]float64{"Yes": yes, "No": 1 - yes},
		Timestamp: time.Now(),
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestSortMarketsVolumeThenLiquidity(t *testing.T) {
	markets := []domain.MarketSnapshot{
		{MarketID: "low", Volume: 100, Liquidity: 900},
		{MarketID: "high", Volume: 500, Liquidity: 100},
		{MarketID: "tie-a", Volume: 300, Liquidity: 50},
		{MarketID: "tie-b", Volume: 300, Liquidity: 200},
	}

	sortMarkets(markets)

	want := []string{"high", "tie-b", "tie-a", "low"}
	for i, id := range want {
		if markets[i].MarketID != id {
			t.Fatalf("position %d = %q, want %q (order %v)", i, markets[i].MarketID, id, markets)
		}
	}
}

func TestCycleOpensPositionOnSpike(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// First cycle seeds the history; no spikes possible yet.
	fx.markets.list = []domain.MarketSnapshot{marketSnap("m1", 5000, 2000, 0.48)}
	if err := fx.loop.Cycle(ctx, 1); err != nil {
		t.Fatalf("seed cycle: %v", err)
	}
	if len(fx.ledger.open) != 0 {
		t.Fatalf("position opened on first observation")
	}

	// Second cycle: Yes jumps 8%, an entry should open.
	fx.markets.list = []domain.MarketSnapshot{marketSnap("m1", 5000, 2000, 0.52)}
	if err := fx.loop.Cycle(ctx, 2); err != nil {
		t.Fatalf("spike cycle: %v", err)
	}
	if len(fx.ledger.open) != 1 {
		t.Fatalf("open positions = %d, want 1", len(fx.ledger.open))
	}

	// Both the spike alert and the entry alert went out.
	var spikeAlert, entryAlert bool
	for _, title := range fx.sender.titles {
		if strings.HasPrefix(title, "Spike:") {
			spikeAlert = true
		}
		if strings.HasPrefix(title, "Opened:") {
			entryAlert = true
		}
	}
	if !spikeAlert || !entryAlert {
		t.Errorf("alerts sent = %v, want spike and entry", fx.sender.titles)
	}
}

func TestCycleChecksExitsBeforeScanning(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// An open position at +3% should close during the cycle even though the
	// market list is empty.
	now := time.Now().UTC()
	fx.ledger.open["p1"] = domain.Position{
		ID:         "p1",
		MarketID:   "m1",
		Outcome:    "Yes",
		TokenID:    "tok",
		BuyPrice:   0.50,
		Shares:     200,
		Investment: 100,
		Status:     domain.PositionStatusOpen,
		OpenedAt:   now,
	}
	fx.markets.list = []domain.MarketSnapshot{marketSnap("m1", 5000, 2000, 0.515)}

	if err := fx.loop.Cycle(ctx, 1); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(fx.ledger.closed) != 1 {
		t.Fatalf("closed positions = %d, want 1", len(fx.ledger.closed))
	}
	closed := fx.ledger.closed["p1"]
	if closed.ExitReason != domain.ExitReasonTakeProfit {
		t.Errorf("ExitReason = %q, want take_profit", closed.ExitReason)
	}
}

func TestCycleSummaryOnScheduledCycles(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.ledger.open["p1"] = domain.Position{
		ID: "p1", MarketID: "m-unpriced", Outcome: "Yes",
		BuyPrice: 0.50, Shares: 200, Investment: 100, CurrentPrice: 0.50,
		Status: domain.PositionStatusOpen,
	}

	if err := fx.loop.Cycle(ctx, 9); err != nil {
		t.Fatalf("cycle 9: %v", err)
	}
	for _, title := range fx.sender.titles {
		if strings.HasPrefix(title, "Portfolio:") {
			t.Fatalf("summary sent on off-schedule cycle: %v", fx.sender.titles)
		}
	}

	if err := fx.loop.Cycle(ctx, 10); err != nil {
		t.Fatalf("cycle 10: %v", err)
	}
	var found bool
	for _, title := range fx.sender.titles {
		if strings.HasPrefix(title, "Portfolio:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("summary not sent on scheduled cycle: %v", fx.sender.titles)
	}
}

func TestSpikeAlertSuppressedByCooldown(t *testing.T) {
	fx := newFixture(t)
	fx.limiter.allow = false
	ctx := context.Background()

	fx.markets.list = []domain.MarketSnapshot{marketSnap("m1", 5000, 2000, 0.48)}
	if err := fx.loop.Cycle(ctx, 1); err != nil {
		t.Fatalf("seed cycle: %v", err)
	}
	fx.markets.list = []domain.MarketSnapshot{marketSnap("m1", 5000, 2000, 0.52)}
	if err := fx.loop.Cycle(ctx, 2); err != nil {
		t.Fatalf("spike cycle: %v", err)
	}

	for _, title := range fx.sender.titles {
		if strings.HasPrefix(title, "Spike:") {
			t.Fatalf("spike alert sent despite cooldown: %v", fx.sender.titles)
		}
	}
	// The entry itself is not rate limited.
	if len(fx.ledger.open) != 1 {
		t.Errorf("open positions = %d, want 1", len(fx.ledger.open))
	}
}
