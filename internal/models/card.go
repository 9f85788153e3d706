package models

import "time"

// CreditCard holds the billing parameters for a card. The limit is
// display-only; nothing in the ledger enforces it.
type CreditCard struct {
	ID         string    `json:"id" validate:"required"`
	Owner      string    `json:"owner" validate:"required"`
	Name       string    `json:"name" validate:"required,max=100"`
	ClosingDay int       `json:"closing_day" validate:"min=1,max=28"`
	DueDay     int       `json:"due_day" validate:"min=1,max=28"`
	Limit      float64   `json:"limit,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
