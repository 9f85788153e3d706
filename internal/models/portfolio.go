package models

import "time"

// OwnershipType distinguishes portfolios whose movements have cash effects
// on a linked investment account ("own") from tracked third-party
// portfolios, which never touch an account.
type OwnershipType string

const (
	OwnershipOwn        OwnershipType = "own"
	OwnershipThirdParty OwnershipType = "third_party"
)

// Portfolio groups assets. An own portfolio has a 1:1 linked investment
// account carrying the cash side of every buy, sell, and dividend.
type Portfolio struct {
	ID            string        `json:"id" validate:"required"`
	Owner         string        `json:"owner" validate:"required"`
	Name          string        `json:"name" validate:"required,max=100"`
	OwnershipType OwnershipType `json:"ownership_type" validate:"required,oneof=own third_party"`
	AccountID     string        `json:"account_id,omitempty"` // linked investment account, own portfolios only
	TotalInvested float64       `json:"total_invested"`
	CurrentValue  float64       `json:"current_value"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// HasCashEffect reports whether movements in this portfolio create ledger
// transactions.
func (p *Portfolio) HasCashEffect() bool {
	return p.OwnershipType == OwnershipOwn && p.AccountID != ""
}

// Asset is a held position, a materialized view over its movement log.
// Invariants: quantity >= 0; when quantity is 0, average_price and
// total_invested are 0; otherwise total_invested tracks
// quantity x average_price up to rounding. Always recomputable by replay.
type Asset struct {
	ID            string    `json:"id" validate:"required"`
	PortfolioID   string    `json:"portfolio_id" validate:"required"`
	Owner         string    `json:"owner" validate:"required"`
	Ticker        string    `json:"ticker" validate:"required,max=20"`
	Quantity      float64   `json:"quantity"`
	AveragePrice  float64   `json:"average_price"`
	TotalInvested float64   `json:"total_invested"`
	NextSeq       int64     `json:"next_seq"` // sequence assigned to the next appended movement
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
