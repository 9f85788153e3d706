// Package models defines data structures for Lares
package models

import "time"

// AccountType classifies an account.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeWallet     AccountType = "wallet"
	AccountTypeInvestment AccountType = "investment"
)

// ValidAccountType reports whether t is a known account type.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeWallet, AccountTypeInvestment:
		return true
	}
	return false
}

// AccountStatus tracks the account lifecycle. Accounts are archived rather
// than deleted by default; hard deletion requires explicit confirmation.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusArchived AccountStatus = "archived"
)

// Account represents a money account. The running balance invariant is
// current_balance == initial_balance + signed sum of every committed
// transaction referencing this account; all balance mutation goes through
// the ledger service's delta application.
type Account struct {
	ID             string        `json:"id" validate:"required"`
	Owner          string        `json:"owner" validate:"required"`
	Name           string        `json:"name" validate:"required,max=100"`
	Type           AccountType   `json:"type" validate:"required,oneof=checking savings wallet investment"`
	InitialBalance float64       `json:"initial_balance"`
	CurrentBalance float64       `json:"current_balance"`
	Status         AccountStatus `json:"status" validate:"required,oneof=active archived"`
	PortfolioID    string        `json:"portfolio_id,omitempty"` // set for investment accounts linked to an own portfolio
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsActive reports whether the account accepts new transactions.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// BalanceCheck is the result of reconciling an account's materialized
// balance against the signed sum of its committed transactions.
type BalanceCheck struct {
	AccountID  string  `json:"account_id"`
	Expected   float64 `json:"expected"`
	Actual     float64 `json:"actual"`
	Drift      float64 `json:"drift"`
	Consistent bool    `json:"consistent"`
}
