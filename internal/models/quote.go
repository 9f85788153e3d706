package models

import "time"

// Quote is a display-only market price. No ledger invariant depends on
// quotes; they feed portfolio valuation on read paths only.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PortfolioValuation is a portfolio priced at current quotes, computed on
// response and never persisted.
type PortfolioValuation struct {
	PortfolioID   string           `json:"portfolio_id"`
	TotalInvested float64          `json:"total_invested"`
	CurrentValue  float64          `json:"current_value"`
	Positions     []AssetValuation `json:"positions"`
	PricedAt      time.Time        `json:"priced_at"`
}

// AssetValuation is one asset priced at its current quote.
type AssetValuation struct {
	Ticker        string  `json:"ticker"`
	Quantity      float64 `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	TotalInvested float64 `json:"total_invested"`
	LastPrice     float64 `json:"last_price"`
	CurrentValue  float64 `json:"current_value"`
	Return        float64 `json:"return"`
	ReturnPct     float64 `json:"return_pct"`
}
