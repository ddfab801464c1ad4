package domain

import (
	"sort"
	"time"
)

// MarketSnapshot is a point-in-time observation of a prediction market:
// the per-outcome prices plus the volume and liquidity reported by the
// Gamma API at the moment of capture.
type MarketSnapshot struct {
	MarketID    string
	ConditionID string
	Question    string
	Slug        string
	Volume      float64
	Liquidity   float64
	Prices      map[string]float64 // outcome name -> price in [0,1]
	TokenIDs    map[string]string  // outcome name -> ERC-1155 token ID
	Timestamp   time.Time
}

// AvgPrice returns the mean of all outcome prices, or 0 when the
// snapshot carries none. Used as a market-level price proxy when a
// per-outcome comparison is not possible.
func (s MarketSnapshot) AvgPrice() float64 {
	if len(s.Prices) == 0 {
		return 0
	}
	var sum float64
	for _, p := range s.Prices {
		sum += p
	}
	return sum / float64(len(s.Prices))
}

// BestEntry returns the outcome with the lowest non-zero price, i.e.
// the cheapest way into the market. Ties and iteration order are
// broken by outcome name so the choice is deterministic.
func (s MarketSnapshot) BestEntry() (outcome string, price float64, ok bool) {
	names := make([]string, 0, len(s.Prices))
	for name := range s.Prices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := s.Prices[name]
		if p <= 0 {
			continue
		}
		if !ok || p < price {
			outcome, price, ok = name, p, true
		}
	}
	return outcome, price, ok
}

// TokenID resolves the tradable token for an outcome. When the Gamma
// payload did not carry clobTokenIds the ConditionID-outcome composite
// is used so downstream calls still have a stable identifier.
func (s MarketSnapshot) TokenID(outcome string) string {
	if id, found := s.TokenIDs[outcome]; found && id != "" {
		return id
	}
	return s.ConditionID + "-" + outcome
}
