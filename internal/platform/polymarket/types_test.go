package polymarket

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestAPIMarketToSnapshot(t *testing.T) {
	raw := `{
		"id": "12345",
		"question": "Will it rain tomorrow?",
		"conditionId": "0xabc",
		"slug": "will-it-rain",
		"active": "true",
		"closed": false,
		"outcomes": "[\"Yes\",\"No\"]",
		"outcomePrices": "[\"0.62\",\"0.38\"]",
		"clobTokenIds": "[\"111\",\"222\"]",
		"volume": "15432.5",
		"liquidity": 2400.75
	}`

	var m APIMarket
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := m.ToSnapshot(now)

	if snap.MarketID != "12345" || snap.ConditionID != "0xabc" {
		t.Errorf("identifiers = (%q, %q)", snap.MarketID, snap.ConditionID)
	}
	if math.Abs(snap.Volume-15432.5) > 1e-9 {
		t.Errorf("Volume = %v, want 15432.5 (string field)", snap.Volume)
	}
	if math.Abs(snap.Liquidity-2400.75) > 1e-9 {
		t.Errorf("Liquidity = %v, want 2400.75 (number field)", snap.Liquidity)
	}
	if got := snap.Prices["Yes"]; math.Abs(got-0.62) > 1e-9 {
		t.Errorf("Prices[Yes] = %v, want 0.62", got)
	}
	if got := snap.Prices["No"]; math.Abs(got-0.38) > 1e-9 {
		t.Errorf("Prices[No] = %v, want 0.38", got)
	}
	if snap.TokenIDs["Yes"] != "111" || snap.TokenIDs["No"] != "222" {
		t.Errorf("TokenIDs = %v", snap.TokenIDs)
	}
	if !snap.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp, now)
	}
}

func TestAPIMarketToSnapshotMissingFields(t *testing.T) {
	var m APIMarket
	if err := json.Unmarshal([]byte(`{"id":"9","outcomes":"not json"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	snap := m.ToSnapshot(time.Now())
	if len(snap.Prices) != 0 || len(snap.TokenIDs) != 0 {
		t.Errorf("expected empty maps, got prices=%v tokens=%v", snap.Prices, snap.TokenIDs)
	}
}

func TestFlexFloat(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
		C flexFloat `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 1.5, "b": "2.5", "c": ""}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != 1.5 || v.B != 2.5 || v.C != 0 {
		t.Errorf("flexFloat = %v %v %v", v.A, v.B, v.C)
	}
}

func TestPriceMessageTimestampFormats(t *testing.T) {
	ms := PriceMessage{AssetID: "t1", Price: "0.44", Timestamp: "1717243200123"}
	tp := ms.ToTradePrice()
	if tp.Price != 0.44 {
		t.Errorf("Price = %v", tp.Price)
	}
	if tp.Timestamp.UnixMilli() != 1717243200123 {
		t.Errorf("millisecond timestamp parsed as %v", tp.Timestamp)
	}

	sec := PriceMessage{AssetID: "t1", Price: "0.44", Timestamp: "1717243200"}
	if got := sec.ToTradePrice().Timestamp.Unix(); got != 1717243200 {
		t.Errorf("second timestamp parsed as %v", got)
	}

	iso := PriceMessage{AssetID: "t1", Price: "0.44", Timestamp: "2025-06-01T12:00:00Z"}
	if got := iso.ToTradePrice().Timestamp; got.Year() != 2025 {
		t.Errorf("RFC 3339 timestamp parsed as %v", got)
	}
}
