package models

import "time"

// Budget is a per-category monthly spending limit. Spent amounts are
// computed by query at read time; no write-path invariant depends on
// budgets.
type Budget struct {
	ID        string     `json:"id" validate:"required"`
	Owner     string     `json:"owner" validate:"required"`
	Category  string     `json:"category" validate:"required"`
	Month     time.Month `json:"month" validate:"min=1,max=12"`
	Year      int        `json:"year" validate:"min=1970"`
	Limit     float64    `json:"limit" validate:"gt=0"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BudgetStatus is a budget joined with what was actually spent in its
// period, computed on response and never persisted.
type BudgetStatus struct {
	Budget
	Spent     float64 `json:"spent"`
	Remaining float64 `json:"remaining"`
}

// Category labels transactions and invoice items. Each owner gets the
// default set seeded on first use and can add their own.
type Category struct {
	ID        string    `json:"id" validate:"required"`
	Owner     string    `json:"owner" validate:"required"`
	Name      string    `json:"name" validate:"required,max=60"`
	Kind      string    `json:"kind" validate:"required,oneof=revenue expense"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultCategories returns the starter category set for a new owner.
func DefaultCategories() []struct {
	Name string
	Kind string
} {
	return []struct {
		Name string
		Kind string
	}{
		{"salary", "revenue"},
		{"investments", "revenue"},
		{"other income", "revenue"},
		{"housing", "expense"},
		{"groceries", "expense"},
		{"transport", "expense"},
		{"health", "expense"},
		{"leisure", "expense"},
		{"education", "expense"},
		{"other", "expense"},
	}
}
