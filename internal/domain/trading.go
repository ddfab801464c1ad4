package domain

import "context"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderRequest is the exchange-facing description of a market order.
type OrderRequest struct {
	TokenID string
	Side    OrderSide
	Price   float64
	Size    float64 // shares
}

// OrderResult wraps the API response after order submission.
type OrderResult struct {
	Success bool
	OrderID string
	Message string
}

// MarketSource lists active markets and fetches fresh snapshots.
type MarketSource interface {
	ActiveMarkets(ctx context.Context, limit int) ([]MarketSnapshot, error)
	Snapshot(ctx context.Context, marketID string) (MarketSnapshot, error)
}

// ExchangeClient submits signed orders to the CLOB.
type ExchangeClient interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// Advisor gives an optional second opinion on a prospective entry.
type Advisor interface {
	Assess(ctx context.Context, result SpikeResult) (AdvisorOpinion, error)
}

// AdvisorOpinion is a lightweight verdict from an external model.
type AdvisorOpinion struct {
	Proceed    bool
	Confidence float64
	Rationale  string
}
