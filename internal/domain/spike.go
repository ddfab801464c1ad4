package domain

// SpikeType distinguishes what moved: an outcome price or the traded volume.
type SpikeType string

const (
	SpikeTypePrice  SpikeType = "price"
	SpikeTypeVolume SpikeType = "volume"
)

// SpikeDirection is the sign of the move.
type SpikeDirection string

const (
	SpikeDirectionUp   SpikeDirection = "up"
	SpikeDirectionDown SpikeDirection = "down"
)

// Spike is a single threshold-crossing move between two consecutive
// snapshots of the same market. ChangePercent is a magnitude; Direction
// carries the sign.
type Spike struct {
	Type          SpikeType
	Direction     SpikeDirection
	Outcome       string  // set for per-outcome price spikes; empty for volume and mean-price
	Previous      float64 // prior price or volume
	Current       float64 // new price or volume
	ChangePercent float64 // price spikes: |cur-prev|/prev * 100
	ChangeRatio   float64 // volume spikes: cur/prev
	Threshold     float64 // the configured threshold this move crossed
}

// SpikeResult groups all spikes detected on one market in one cycle,
// along with the snapshot that triggered them.
type SpikeResult struct {
	MarketID    string
	ConditionID string
	Question    string
	Slug        string
	Spikes      []Spike
	Snapshot    MarketSnapshot
}

// HasSpikes reports whether any threshold was crossed.
func (r SpikeResult) HasSpikes() bool { return len(r.Spikes) > 0 }

// UpPriceSpike returns the first upward price spike, if there is one.
// Entries are only opened on upward price moves.
func (r SpikeResult) UpPriceSpike() (Spike, bool) {
	for _, s := range r.Spikes {
		if s.Type == SpikeTypePrice && s.Direction == SpikeDirectionUp {
			return s, true
		}
	}
	return Spike{}, false
}
