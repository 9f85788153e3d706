package models

import (
	"fmt"
	"time"
)

// InvoiceStatus is the invoice lifecycle: open → closed → paid.
type InvoiceStatus string

const (
	InvoiceStatusOpen   InvoiceStatus = "open"
	InvoiceStatusClosed InvoiceStatus = "closed"
	InvoiceStatusPaid   InvoiceStatus = "paid"
)

// Period is the (month, year) a credit-card purchase is billed in.
type Period struct {
	Month time.Month `json:"month"`
	Year  int        `json:"year"`
}

// Key renders the period as "YYYY-MM" for deterministic record ids.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Month: time.January, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// Invoice aggregates the card purchases of one billing period. Exactly one
// invoice exists per (owner, card, period); its record id is derived from
// that triple so concurrent find-or-create callers converge on the same
// document. Invariant: total_amount == sum of its line item amounts.
type Invoice struct {
	ID          string        `json:"id" validate:"required"`
	Owner       string        `json:"owner" validate:"required"`
	CardID      string        `json:"card_id" validate:"required"`
	Month       time.Month    `json:"month" validate:"min=1,max=12"`
	Year        int           `json:"year" validate:"min=1970"`
	TotalAmount float64       `json:"total_amount"`
	Status      InvoiceStatus `json:"status" validate:"required,oneof=open closed paid"`
	DueDate     time.Time     `json:"due_date"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// InvoiceID derives the deterministic invoice record id for one
// (owner, card, period) triple.
func InvoiceID(owner, cardID string, p Period) string {
	return owner + "_" + cardID + "_" + p.Key()
}

// Period returns the invoice's billing period.
func (i *Invoice) Period() Period {
	return Period{Month: i.Month, Year: i.Year}
}

// InvoiceItem is one line item of an invoice. Items live in their own
// table keyed by invoice id rather than nested inside the invoice
// document, so they can be queried across invoices.
type InvoiceItem struct {
	ID           string    `json:"id" validate:"required"`
	InvoiceID    string    `json:"invoice_id" validate:"required"`
	Owner        string    `json:"owner" validate:"required"`
	Description  string    `json:"description" validate:"required,max=500"`
	Amount       float64   `json:"amount" validate:"gt=0"`
	Category     string    `json:"category"`
	PurchaseDate time.Time `json:"purchase_date" validate:"required"`
	Splits       []Split   `json:"splits,omitempty" validate:"omitempty,dive"`
	Installment  int       `json:"installment,omitempty"`  // 1-based index within an installment plan
	Installments int       `json:"installments,omitempty"` // plan length, 0 when not an installment purchase
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
