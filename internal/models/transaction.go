package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the direction of a transaction.
type TransactionKind string

const (
	TransactionKindRevenue  TransactionKind = "revenue"
	TransactionKindExpense  TransactionKind = "expense"
	TransactionKindTransfer TransactionKind = "transfer"
)

// PaymentMethod is how a transaction was settled. Credit-card transactions
// are routed to the invoice periodizer instead of hitting an account.
type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodDebit      PaymentMethod = "debit"
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
)

// Split allocates part of a transaction's amount to a category. The split
// amounts of a transaction must sum exactly to its amount.
type Split struct {
	Category string  `json:"category" validate:"required"`
	Amount   float64 `json:"amount" validate:"gt=0"`
}

// Transaction is a committed ledger entry. Amount is always positive; the
// sign applied to the account balance comes from Kind.
type Transaction struct {
	ID            string          `json:"id" validate:"required"`
	Owner         string          `json:"owner" validate:"required"`
	Description   string          `json:"description" validate:"required,max=500"`
	Amount        float64         `json:"amount" validate:"gt=0"`
	Date          time.Time       `json:"date" validate:"required"`
	Kind          TransactionKind `json:"kind" validate:"required,oneof=revenue expense transfer"`
	Category      string          `json:"category"`
	Subcategory   string          `json:"subcategory,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"omitempty,oneof=cash debit pix credit_card"`
	AccountID     string          `json:"account_id,omitempty"`
	CardID        string          `json:"card_id,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Splits        []Split         `json:"splits,omitempty" validate:"omitempty,dive"`
	LinkedID      string          `json:"linked_id,omitempty"` // pairs the two legs of a transfer
	Incoming      bool            `json:"incoming,omitempty"`  // set on the credit leg of a transfer
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SignedAmount returns the delta this transaction applies to its account:
// positive for revenue and for the incoming leg of a transfer, negative
// otherwise.
func (t *Transaction) SignedAmount() float64 {
	if t.Kind == TransactionKindRevenue || (t.Kind == TransactionKindTransfer && t.Incoming) {
		return t.Amount
	}
	return -t.Amount
}

// ValidateSplits checks that the split set, when present, sums exactly to
// amount. Comparison is done in decimal cents so float noise cannot accept
// a drifted set.
func ValidateSplits(amount float64, splits []Split) error {
	if len(splits) == 0 {
		return nil
	}
	total := decimal.Zero
	for _, s := range splits {
		if s.Amount <= 0 {
			return Validationf("split amount must be positive, got %v for %q", s.Amount, s.Category)
		}
		if s.Category == "" {
			return Validationf("split category is required")
		}
		total = total.Add(decimal.NewFromFloat(s.Amount))
	}
	want := decimal.NewFromFloat(amount)
	if !total.Round(2).Equal(want.Round(2)) {
		return Validationf("split amounts sum to %s, transaction amount is %s", total.String(), want.String())
	}
	return nil
}
