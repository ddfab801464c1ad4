package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. Gamma sends
// volume and liquidity both ways depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Outcome names, prices, and token IDs arrive as JSON-encoded string arrays
// inside string fields.
type APIMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	ConditionID   string    `json:"conditionId"`
	Slug          string    `json:"slug"`
	Active        flexBool  `json:"active"`
	Closed        flexBool  `json:"closed"`
	Outcomes      string    `json:"outcomes"`      // e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // e.g. "[\"0.52\",\"0.48\"]"
	ClobTokenIDs  string    `json:"clobTokenIds"`  // e.g. "[\"123...\",\"456...\"]"
	Volume        flexFloat `json:"volume"`
	Liquidity     flexFloat `json:"liquidity"`
	EndDateISO    string    `json:"endDateIso"`
}

// parseStringArray decodes a JSON-encoded array of strings; a missing or
// malformed field yields nil rather than an error, since Gamma omits these
// fields on thin markets.
func parseStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// ToSnapshot converts a Gamma market to a domain.MarketSnapshot observed at
// the given time. Outcomes without a parsable price are dropped.
func (m *APIMarket) ToSnapshot(now time.Time) domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		MarketID:    m.ID,
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Slug:        m.Slug,
		Volume:      float64(m.Volume),
		Liquidity:   float64(m.Liquidity),
		Prices:      map[string]float64{},
		TokenIDs:    map[string]string{},
		Timestamp:   now,
	}

	outcomes := parseStringArray(m.Outcomes)
	prices := parseStringArray(m.OutcomePrices)
	tokens := parseStringArray(m.ClobTokenIDs)

	for i, name := range outcomes {
		if i < len(prices) {
			if p, err := strconv.ParseFloat(prices[i], 64); err == nil {
				snap.Prices[name] = p
			}
		}
		if i < len(tokens) && tokens[i] != "" {
			snap.TokenIDs[name] = tokens[i]
		}
	}

	return snap
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ToDomain converts an APIOrderResult to a domain.OrderResult.
func (r *APIOrderResult) ToDomain() domain.OrderResult {
	return domain.OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Message: r.ErrorMsg,
	}
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APILeaderboardEntry is one row of the volume leaderboard from the
// Polymarket data API.
type APILeaderboardEntry struct {
	ProxyWallet string    `json:"proxyWallet"`
	Name        string    `json:"name"`
	Amount      flexFloat `json:"amount"`
	Pnl         flexFloat `json:"pnl"`
}

// ToTrader converts a leaderboard entry to a domain.WhaleTrader.
func (e *APILeaderboardEntry) ToTrader(rank int, now time.Time) domain.WhaleTrader {
	return domain.WhaleTrader{
		Wallet:    e.ProxyWallet,
		Username:  e.Name,
		VolumeUSD: float64(e.Amount),
		ProfitUSD: float64(e.Pnl),
		Rank:      rank,
		FetchedAt: now,
	}
}

// APIActivity is one trade from the data API activity endpoint.
type APIActivity struct {
	ProxyWallet string    `json:"proxyWallet"`
	ConditionID string    `json:"conditionId"`
	Title       string    `json:"title"`
	Outcome     string    `json:"outcome"`
	Side        string    `json:"side"`
	Price       flexFloat `json:"price"`
	Size        flexFloat `json:"size"`
	UsdcSize    flexFloat `json:"usdcSize"`
	Timestamp   int64     `json:"timestamp"` // Unix seconds
}

// ToMove converts an activity row to a domain.WhaleMove.
func (a *APIActivity) ToMove() domain.WhaleMove {
	return domain.WhaleMove{
		Wallet:    a.ProxyWallet,
		MarketID:  a.ConditionID,
		Question:  a.Title,
		Outcome:   a.Outcome,
		Side:      a.Side,
		Price:     float64(a.Price),
		SizeUSD:   float64(a.UsdcSize),
		Shares:    float64(a.Size),
		Timestamp: time.Unix(a.Timestamp, 0).UTC(),
	}
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is the JSON payload sent to the WebSocket to subscribe/unsubscribe.
type WSCommand struct {
	Type    string   `json:"type"` // "subscribe" or "unsubscribe"
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
}

// PriceMessage represents the most recent trade price for an asset.
type PriceMessage struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// TradePrice is the parsed form of a PriceMessage.
type TradePrice struct {
	AssetID   string
	Price     float64
	Timestamp time.Time
}

// ToTradePrice converts a PriceMessage, tolerating both Unix and RFC 3339
// timestamps.
func (p *PriceMessage) ToTradePrice() TradePrice {
	tp := TradePrice{AssetID: p.AssetID}
	tp.Price, _ = strconv.ParseFloat(p.Price, 64)

	if ts, err := strconv.ParseInt(p.Timestamp, 10, 64); err == nil {
		// The feed sends milliseconds; older payloads used seconds.
		if ts > 1e12 {
			tp.Timestamp = time.UnixMilli(ts)
		} else {
			tp.Timestamp = time.Unix(ts, 0)
		}
	} else if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		tp.Timestamp = t
	} else {
		tp.Timestamp = time.Now()
	}

	return tp
}
