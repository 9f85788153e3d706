package interfaces

import (
	"context"
	"time"

	"github.com/hbarro/lares/internal/models"
)

// LedgerService is the single choke point for account balance mutation:
// every transaction, transfer, invoice payment, and investment cash effect
// flows through its delta application.
type LedgerService interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, id, name string, accountType models.AccountType) error
	ArchiveAccount(ctx context.Context, id string) error
	// DeleteAccount hard-deletes. A non-zero balance requires confirm.
	DeleteAccount(ctx context.Context, id string, confirm bool) error

	ApplyTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, q TransactionQuery) ([]*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, fields models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	TransferFunds(ctx context.Context, fromAccountID, toAccountID string, amount float64, date time.Time) error

	// VerifyBalance reconciles an account's materialized balance against
	// the signed sum of its committed transactions.
	VerifyBalance(ctx context.Context, accountID string) (*models.BalanceCheck, error)
}

// InvoiceService maps card purchases to billing periods and keeps invoice
// totals in sync with their line items.
type InvoiceService interface {
	CreateCard(ctx context.Context, card *models.CreditCard) error
	GetCard(ctx context.Context, id string) (*models.CreditCard, error)
	ListCards(ctx context.Context) ([]*models.CreditCard, error)
	UpdateCard(ctx context.Context, card *models.CreditCard) error
	DeleteCard(ctx context.Context, id string) error

	FindOrCreateInvoice(ctx context.Context, cardID string, purchaseDate time.Time) (*models.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	ListInvoices(ctx context.Context) ([]*models.Invoice, error)
	ListItems(ctx context.Context, invoiceID string) ([]*models.InvoiceItem, error)

	// AddPurchase books a card purchase: one line item, or installments
	// line items across consecutive billing periods when installments > 1.
	AddPurchase(ctx context.Context, cardID string, item models.InvoiceItem, installments int) ([]*models.InvoiceItem, error)
	UpdateLineItem(ctx context.Context, originalInvoiceID, itemID string, fields models.InvoiceItem) error
	DeleteLineItem(ctx context.Context, invoiceID, itemID string) error

	PayInvoice(ctx context.Context, invoiceID, accountID string, paymentDate time.Time) error
	MakeAdvancePayment(ctx context.Context, invoiceID string, amount float64, accountID string, date time.Time) error
	CloseOverdueInvoices(ctx context.Context, now time.Time) (int, error)
}

// RecurringService materializes recurring definitions, at most one
// occurrence per definition per calendar month.
type RecurringService interface {
	Create(ctx context.Context, def *models.RecurringTransaction) error
	Get(ctx context.Context, id string) (*models.RecurringTransaction, error)
	List(ctx context.Context) ([]*models.RecurringTransaction, error)
	Update(ctx context.Context, def *models.RecurringTransaction) error
	Delete(ctx context.Context, id string) error

	// ProcessDue materializes every due definition and returns the count.
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

// InvestmentService maintains asset positions from the append-only
// movement log.
type InvestmentService interface {
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error

	ListAssets(ctx context.Context, portfolioID string) ([]*models.Asset, error)
	ListMovements(ctx context.Context, portfolioID, assetID string) ([]*models.Movement, error)

	RecordMovement(ctx context.Context, portfolioID, ticker string, mv models.Movement) (*models.Asset, error)
	RecordDividend(ctx context.Context, portfolioID, ticker string, amount float64, paymentDate time.Time) (*models.Movement, error)
	DeleteMovementAndRecalculate(ctx context.Context, portfolioID, assetID, movementID string) (*models.Asset, error)

	// Valuation prices the portfolio at current quotes. Display only.
	Valuation(ctx context.Context, portfolioID string) (*models.PortfolioValuation, error)
}

// BudgetService tracks per-category monthly limits.
type BudgetService interface {
	Set(ctx context.Context, b *models.Budget) error
	Delete(ctx context.Context, id string) error
	Status(ctx context.Context, year int, month time.Month) ([]*models.BudgetStatus, error)

	ListCategories(ctx context.Context) ([]*models.Category, error)
	AddCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
}
