package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// Detector compares consecutive market snapshots and flags sudden price or
// volume moves. Each call to Check stores the fresh snapshot first, so two
// identical back-to-back calls always compare the snapshot against itself
// and produce no spikes.
type Detector struct {
	store  domain.SnapshotStore
	logger *slog.Logger

	// priceThreshold is the minimum absolute fractional price change
	// (e.g. 0.015 = 1.5%) that counts as a price spike.
	priceThreshold float64

	// volumeRatio is the minimum current/previous volume ratio that
	// counts as a volume spike.
	volumeRatio float64

	// minLiquidity filters out thin markets before any comparison.
	minLiquidity float64
}

// Config configures the detector thresholds.
type Config struct {
	Store          domain.SnapshotStore
	Logger         *slog.Logger
	PriceThreshold float64
	VolumeRatio    float64
	MinLiquidity   float64
}

// New creates a spike detector.
func New(cfg Config) *Detector {
	return &Detector{
		store:          cfg.Store,
		logger:         cfg.Logger.With(slog.String("component", "spike_detector")),
		priceThreshold: cfg.PriceThreshold,
		volumeRatio:    cfg.VolumeRatio,
		minLiquidity:   cfg.MinLiquidity,
	}
}

// Check stores the snapshot, fetches the previous one, and returns any
// detected spikes. The result is never nil on success; a market with no
// prior snapshot (or below the liquidity floor) yields an empty result.
func (d *Detector) Check(ctx context.Context, snap domain.MarketSnapshot) (domain.SpikeResult, error) {
	result := domain.SpikeResult{
		MarketID:    snap.MarketID,
		ConditionID: snap.ConditionID,
		Question:    snap.Question,
		Slug:        snap.Slug,
		Snapshot:    snap,
	}

	// Always record the snapshot, even for markets we skip: it keeps the
	// history warm so the market is comparable the moment liquidity returns.
	if err := d.store.Put(ctx, snap); err != nil {
		return result, fmt.Errorf("detector: store snapshot: %w", err)
	}

	if snap.Liquidity < d.minLiquidity {
		return result, nil
	}

	prev, err := d.store.GetPrevious(ctx, snap.MarketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// First observation of this market.
			return result, nil
		}
		return result, fmt.Errorf("detector: previous snapshot: %w", err)
	}

	if spike, ok := d.priceSpike(prev, snap); ok {
		result.Spikes = append(result.Spikes, spike)
	}
	if spike, ok := d.volumeSpike(prev, snap); ok {
		result.Spikes = append(result.Spikes, spike)
	}

	return result, nil
}

// priceSpike compares prices outcome by outcome over the outcomes present
// in both snapshots and emits only the largest qualifying move. When no
// per-outcome comparison qualifies, it falls back to comparing mean prices,
// so a market whose outcome set shifted (or whose previous prices were all
// zero) can still surface a move.
func (d *Detector) priceSpike(prev, cur domain.MarketSnapshot) (domain.Spike, bool) {
	outcomes := make([]string, 0, len(cur.Prices))
	for name := range cur.Prices {
		if _, ok := prev.Prices[name]; ok {
			outcomes = append(outcomes, name)
		}
	}
	// Sorted iteration makes the result deterministic when two outcomes
	// move by the same magnitude.
	sort.Strings(outcomes)

	var (
		best    domain.Spike
		bestMag float64
		found   bool
	)
	for _, outcome := range outcomes {
		prevPrice := prev.Prices[outcome]
		curPrice := cur.Prices[outcome]
		if prevPrice <= 0 {
			// Division guard. The outcome still counts toward the mean
			// fallback below.
			continue
		}

		change := (curPrice - prevPrice) / prevPrice
		mag := abs(change)
		if mag < d.priceThreshold || (found && mag <= bestMag) {
			continue
		}

		best = domain.Spike{
			Type:          domain.SpikeTypePrice,
			Direction:     direction(change),
			Outcome:       outcome,
			Previous:      prevPrice,
			Current:       curPrice,
			ChangePercent: mag * 100,
			Threshold:     d.priceThreshold,
		}
		bestMag = mag
		found = true
	}
	if found {
		return best, true
	}

	return d.meanPriceSpike(prev, cur)
}

// meanPriceSpike compares the average price across all outcomes.
func (d *Detector) meanPriceSpike(prev, cur domain.MarketSnapshot) (domain.Spike, bool) {
	prevAvg := prev.AvgPrice()
	curAvg := cur.AvgPrice()
	if prevAvg <= 0 {
		return domain.Spike{}, false
	}

	change := (curAvg - prevAvg) / prevAvg
	if abs(change) < d.priceThreshold {
		return domain.Spike{}, false
	}

	return domain.Spike{
		Type:          domain.SpikeTypePrice,
		Direction:     direction(change),
		Previous:      prevAvg,
		Current:       curAvg,
		ChangePercent: abs(change) * 100,
		Threshold:     d.priceThreshold,
	}, true
}

// volumeSpike flags a market whose volume grew by at least the configured
// ratio between two snapshots.
func (d *Detector) volumeSpike(prev, cur domain.MarketSnapshot) (domain.Spike, bool) {
	if prev.Volume <= 0 {
		return domain.Spike{}, false
	}

	ratio := cur.Volume / prev.Volume
	if ratio < d.volumeRatio {
		return domain.Spike{}, false
	}

	return domain.Spike{
		Type:        domain.SpikeTypeVolume,
		Direction:   domain.SpikeDirectionUp,
		Previous:    prev.Volume,
		Current:     cur.Volume,
		ChangeRatio: ratio,
		Threshold:   d.volumeRatio,
	}, true
}

func direction(change float64) domain.SpikeDirection {
	if change >= 0 {
		return domain.SpikeDirectionUp
	}
	return domain.SpikeDirectionDown
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
