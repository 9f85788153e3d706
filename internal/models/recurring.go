package models

import "time"

// RecurringTransaction is a definition the materializer turns into at most
// one concrete occurrence per calendar month. LastProcessed is nil until
// the first run; its (year, month) gates idempotence.
type RecurringTransaction struct {
	ID            string          `json:"id" validate:"required"`
	Owner         string          `json:"owner" validate:"required"`
	Description   string          `json:"description" validate:"required,max=500"`
	Amount        float64         `json:"amount" validate:"gt=0"`
	DayOfMonth    int             `json:"day_of_month" validate:"min=1,max=28"`
	Kind          TransactionKind `json:"kind" validate:"required,oneof=revenue expense"`
	Category      string          `json:"category"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,oneof=cash debit pix credit_card"`
	AccountID     string          `json:"account_id,omitempty"` // target for account-routed occurrences
	CardID        string          `json:"card_id,omitempty"`    // target for credit-card-routed occurrences
	LastProcessed *time.Time      `json:"last_processed,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DueAt reports whether the definition should materialize for the month of
// now: its day has been reached and it has not already run this month.
func (r *RecurringTransaction) DueAt(now time.Time) bool {
	if r.DayOfMonth > now.Day() {
		return false
	}
	if r.LastProcessed == nil {
		return true
	}
	return r.LastProcessed.Year() != now.Year() || r.LastProcessed.Month() != now.Month()
}
