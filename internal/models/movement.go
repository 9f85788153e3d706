package models

import "time"

// MovementKind is the type of an investment movement.
type MovementKind string

const (
	MovementBuy      MovementKind = "buy"
	MovementSell     MovementKind = "sell"
	MovementDividend MovementKind = "dividend"
)

// Movement is one entry of an asset's append-only log, the source of truth
// for the asset's aggregates. Seq is a per-asset monotonic sequence
// assigned on append; replay orders by (date, seq) so same-day movements
// have a deterministic order.
type Movement struct {
	ID            string       `json:"id" validate:"required"`
	AssetID       string       `json:"asset_id" validate:"required"`
	PortfolioID   string       `json:"portfolio_id" validate:"required"`
	Owner         string       `json:"owner" validate:"required"`
	Kind          MovementKind `json:"kind" validate:"required,oneof=buy sell dividend"`
	Quantity      float64      `json:"quantity"`
	PricePerUnit  float64      `json:"price_per_unit"`
	TotalCost     float64      `json:"total_cost"`
	Date          time.Time    `json:"date" validate:"required"`
	Seq           int64        `json:"seq"`
	TransactionID string       `json:"transaction_id,omitempty"` // cash-effect transaction, empty for third-party portfolios
	CreatedAt     time.Time    `json:"created_at"`
}
