// Package interfaces defines service contracts for Lares
package interfaces

import (
	"context"
	"time"

	"github.com/hbarro/lares/internal/models"
)

// StorageManager coordinates all storage backends. Every composite method
// on the individual stores is atomic: either all of its writes commit or
// none do. Methods that take deltas use the store's blind single-document
// increment so no read-modify-write window exists.
type StorageManager interface {
	Users() UserStore
	Accounts() AccountStore
	Transactions() TransactionStore
	Cards() CardStore
	Invoices() InvoiceStore
	Recurring() RecurringStore
	Portfolios() PortfolioStore
	Budgets() BudgetStore
	Categories() CategoryStore

	Close() error
}

// AccountDelta is a signed balance adjustment against one account.
type AccountDelta struct {
	AccountID string
	Delta     float64
}

// UserStore keeps identity-provider user handles and per-user KV state
// (e.g. the daily maintenance stamp).
type UserStore interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	GetKV(ctx context.Context, userID, key string) (string, error)
	SetKV(ctx context.Context, userID, key, value string) error
}

// AccountStore persists accounts. IncrementBalance is the single-document
// atomic increment primitive; nothing else mutates current_balance.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	Get(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context, owner string) ([]*models.Account, error)
	UpdateMeta(ctx context.Context, id, name string, accountType models.AccountType) error
	SetStatus(ctx context.Context, id string, status models.AccountStatus) error
	Delete(ctx context.Context, id string) error
	IncrementBalance(ctx context.Context, id string, delta float64) error
}

// TransactionQuery filters transaction listings.
type TransactionQuery struct {
	AccountID string
	Kind      models.TransactionKind
	Category  string
	From      time.Time
	To        time.Time
	Limit     int
}

// TransactionStore persists ledger transactions together with their
// account balance effects.
type TransactionStore interface {
	Get(ctx context.Context, id string) (*models.Transaction, error)
	List(ctx context.Context, owner string, q TransactionQuery) ([]*models.Transaction, error)

	// Apply writes tx and applies delta to its account in one transaction.
	Apply(ctx context.Context, tx *models.Transaction, delta AccountDelta) error
	// ApplyPair writes both transfer legs and both balance increments in
	// one transaction.
	ApplyPair(ctx context.Context, out, in *models.Transaction, debit, credit AccountDelta) error
	// Rewrite replaces the stored document and applies the reversal of the
	// old delta plus the new delta in one transaction.
	Rewrite(ctx context.Context, tx *models.Transaction, reversal, application AccountDelta) error
	// DeleteApplied removes the transaction and applies the inverse of its
	// original delta in one transaction.
	DeleteApplied(ctx context.Context, id string, reversal AccountDelta) error
	// DeletePairApplied removes both legs of a transfer and reverses both
	// balance effects in one transaction.
	DeletePairApplied(ctx context.Context, outID, inID string, debitReversal, creditReversal AccountDelta) error

	// SpentByCategory sums expense amounts for one owner, category, and
	// calendar month. Used by budget status reads.
	SpentByCategory(ctx context.Context, owner, category string, year int, month time.Month) (float64, error)
	// SumSignedByAccount sums the signed amounts of all committed
	// transactions referencing an account.
	SumSignedByAccount(ctx context.Context, accountID string) (float64, error)
}

// CardStore persists credit cards.
type CardStore interface {
	Create(ctx context.Context, card *models.CreditCard) error
	Get(ctx context.Context, id string) (*models.CreditCard, error)
	List(ctx context.Context, owner string) ([]*models.CreditCard, error)
	Update(ctx context.Context, card *models.CreditCard) error
	Delete(ctx context.Context, id string) error
}

// InvoiceStore persists invoices and their line items. Line items live in
// their own table keyed by invoice id; every item mutation adjusts the
// parent's total_amount in the same store transaction.
type InvoiceStore interface {
	Get(ctx context.Context, id string) (*models.Invoice, error)
	List(ctx context.Context, owner string) ([]*models.Invoice, error)
	ListByCard(ctx context.Context, cardID string) ([]*models.Invoice, error)

	// CreateIfAbsent creates the invoice under its deterministic id.
	// Returns false without error when the invoice already existed.
	CreateIfAbsent(ctx context.Context, invoice *models.Invoice) (bool, error)

	AppendItem(ctx context.Context, item *models.InvoiceItem) error
	// AppendItems writes every item and its parent total increment as one
	// all-or-nothing transaction (installment plans span invoices).
	AppendItems(ctx context.Context, items []*models.InvoiceItem) error
	GetItem(ctx context.Context, id string) (*models.InvoiceItem, error)
	ListItems(ctx context.Context, invoiceID string) ([]*models.InvoiceItem, error)

	// UpdateItem rewrites the item and adjusts its parent's total by
	// amountDelta in one transaction. The item keeps its invoice.
	UpdateItem(ctx context.Context, item *models.InvoiceItem, amountDelta float64) error
	// MoveItem re-homes the item to item.InvoiceID, decrementing the old
	// parent by oldAmount and incrementing the new parent by item.Amount,
	// both legs in one transaction.
	MoveItem(ctx context.Context, item *models.InvoiceItem, fromInvoiceID string, oldAmount float64) error
	// DeleteItem removes the item and decrements its parent's total in one
	// transaction.
	DeleteItem(ctx context.Context, id, invoiceID string, amount float64) error

	// Pay marks the invoice paid, writes the settling transaction, and
	// debits the paying account, all in one transaction.
	Pay(ctx context.Context, invoiceID string, settle *models.Transaction, debit AccountDelta) error
	// AdvancePay re-reads total_amount inside the transaction, rejects the
	// payment when it exceeds the live total (ConsistencyError), and
	// otherwise decrements the invoice, writes the settling transaction,
	// and debits the account atomically.
	AdvancePay(ctx context.Context, invoiceID string, amount float64, settle *models.Transaction, debit AccountDelta) error
	// MarkPaid flips a fully advanced invoice (live total zero) to paid
	// without a settling transaction or account debit. A non-zero live
	// total or an already paid invoice aborts with ConsistencyError.
	MarkPaid(ctx context.Context, invoiceID string) error

	// CloseOverdue flips every open invoice with due_date < now to closed
	// and returns how many changed.
	CloseOverdue(ctx context.Context, owner string, now time.Time) (int, error)
}

// RecurringStore persists recurring definitions. The materialize methods
// write the occurrence and stamp last_processed in one transaction so an
// interrupted run can never double-materialize.
type RecurringStore interface {
	Create(ctx context.Context, def *models.RecurringTransaction) error
	Get(ctx context.Context, id string) (*models.RecurringTransaction, error)
	List(ctx context.Context, owner string) ([]*models.RecurringTransaction, error)
	Update(ctx context.Context, def *models.RecurringTransaction) error
	Delete(ctx context.Context, id string) error

	MaterializeToAccount(ctx context.Context, defID string, stamp time.Time, tx *models.Transaction, delta AccountDelta) error
	MaterializeToInvoice(ctx context.Context, defID string, stamp time.Time, item *models.InvoiceItem) error
}

// PortfolioStore persists portfolios, assets, and the append-only
// movement log.
type PortfolioStore interface {
	Create(ctx context.Context, p *models.Portfolio) error
	Get(ctx context.Context, id string) (*models.Portfolio, error)
	List(ctx context.Context, owner string) ([]*models.Portfolio, error)
	Update(ctx context.Context, p *models.Portfolio) error
	Delete(ctx context.Context, id string) error

	CreateAsset(ctx context.Context, a *models.Asset) error
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	GetAssetByTicker(ctx context.Context, portfolioID, ticker string) (*models.Asset, error)
	ListAssets(ctx context.Context, portfolioID string) ([]*models.Asset, error)
	DeleteAsset(ctx context.Context, id string) error

	GetMovement(ctx context.Context, id string) (*models.Movement, error)
	// ListMovements returns the asset's log ordered by (date, seq)
	// ascending — replay order.
	ListMovements(ctx context.Context, assetID string) ([]*models.Movement, error)

	// ApplyMovement appends the movement, rewrites the asset's aggregate
	// fields (including the bumped next_seq), and, when cashTx is non-nil,
	// writes the cash-effect transaction and its balance increment — all
	// in one transaction.
	ApplyMovement(ctx context.Context, mv *models.Movement, asset *models.Asset, cashTx *models.Transaction, delta *AccountDelta) error

	// DeleteMovementCascade removes the movement, advances the asset's
	// next_seq so any replay or append computed from a pre-delete snapshot
	// loses its seq guard, and, when cashTxID is set, deletes the linked
	// transaction and applies reversal, all in one transaction.
	DeleteMovementCascade(ctx context.Context, assetID, movementID, cashTxID string, reversal *AccountDelta) error
	// DeleteMovementOnly removes the movement document and advances the
	// asset's next_seq without touching any balance. The investment
	// correction path falls back to this when it cannot read the linked
	// account (documented inconsistency escape hatch).
	DeleteMovementOnly(ctx context.Context, assetID, movementID, cashTxID string) error

	// ReplaceAssetAggregates rewrites the asset's materialized fields from
	// a replay, guarded on expectSeq: when next_seq moved since the replay
	// snapshot was read, nothing is written and a ConsistencyError is
	// returned.
	ReplaceAssetAggregates(ctx context.Context, asset *models.Asset, expectSeq int64) error
}

// BudgetStore persists budgets.
type BudgetStore interface {
	Upsert(ctx context.Context, b *models.Budget) error
	Get(ctx context.Context, id string) (*models.Budget, error)
	List(ctx context.Context, owner string, year int, month time.Month) ([]*models.Budget, error)
	Delete(ctx context.Context, id string) error
}

// CategoryStore persists categories.
type CategoryStore interface {
	Create(ctx context.Context, c *models.Category) error
	List(ctx context.Context, owner string) ([]*models.Category, error)
	Delete(ctx context.Context, id string) error
}
