package domain

import "time"

// WhaleTrader is one leaderboard entry from the Polymarket data API.
type WhaleTrader struct {
	Wallet    string
	Username  string
	VolumeUSD float64
	ProfitUSD float64
	Rank      int
	FetchedAt time.Time
}

// WhaleMove is a single large-trader fill worth mirroring into storage.
type WhaleMove struct {
	Wallet    string
	MarketID  string
	Question  string
	Outcome   string
	Side      string // "BUY" or "SELL"
	Price     float64
	SizeUSD   float64
	Shares    float64
	Timestamp time.Time
}
