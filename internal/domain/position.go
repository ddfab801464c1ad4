package domain

import "time"

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Position is one spike-entry trade: a fixed-dollar buy of the cheapest
// outcome of a spiking market, held until the exit rules fire.
type Position struct {
	ID           string
	MarketID     string
	ConditionID  string
	Question     string
	Outcome      string
	TokenID      string
	BuyPrice     float64
	Shares       float64
	Investment   float64 // dollars committed at entry
	CurrentPrice float64
	ProfitPct    float64 // percent move of CurrentPrice vs BuyPrice
	Status       PositionStatus
	OpenedAt     time.Time
	UpdatedAt    time.Time

	// Populated on close.
	SellPrice  float64
	SellAmount float64 // Shares * SellPrice
	Profit     float64 // SellAmount - Investment
	ExitReason string
	ClosedAt   *time.Time
}

// MarkPrice updates the mark and the derived unrealized profit percent.
func (p *Position) MarkPrice(price float64, now time.Time) {
	p.CurrentPrice = price
	if p.BuyPrice > 0 {
		p.ProfitPct = (price - p.BuyPrice) / p.BuyPrice * 100
	}
	p.UpdatedAt = now
}

// CloseAt settles the position at the given price.
func (p *Position) CloseAt(price float64, reason string, now time.Time) {
	p.SellPrice = price
	p.SellAmount = p.Shares * price
	p.Profit = p.SellAmount - p.Investment
	p.ExitReason = reason
	p.Status = PositionStatusClosed
	p.UpdatedAt = now
	p.ClosedAt = &now
}

// PortfolioSummary aggregates open positions for periodic reporting.
type PortfolioSummary struct {
	OpenCount      int
	TotalInvested  float64
	TotalValue     float64 // sum of Shares * CurrentPrice
	UnrealizedPnL  float64
	TotalProfitPct float64 // UnrealizedPnL / TotalInvested * 100; zero on an empty book
	Positions      []Position
}
