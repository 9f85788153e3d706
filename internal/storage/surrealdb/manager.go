// Package surrealdb implements the Lares storage contracts on SurrealDB.
//
// Two write patterns are used deliberately. Balance and total updates
// whose delta is known up front are blind single-statement increments
// (`UPDATE $rid SET field += $delta`), which have no read-modify-write
// window. Updates whose delta depends on state read moments earlier run
// as BEGIN/COMMIT TRANSACTION query blocks that re-read the live value
// and THROW when a precondition no longer holds, so the read and the
// conditional write share one atomic boundary.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/surrealdb/surrealdb.go"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	userStore        *UserStore
	accountStore     *AccountStore
	transactionStore *TransactionStore
	cardStore        *CardStore
	invoiceStore     *InvoiceStore
	recurringStore   *RecurringStore
	portfolioStore   *PortfolioStore
	budgetStore      *BudgetStore
	categoryStore    *CategoryStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := newManagerWithDB(ctx, db, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// newManagerWithDB wires the stores onto an already-connected DB. Split out
// so tests can hand in a container-backed connection.
func newManagerWithDB(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	// Define tables to ensure they exist (SurrealDB v3 errors on querying non-existent tables)
	tables := []string{
		"user", "user_kv", "account", "transaction", "credit_card",
		"invoice", "invoice_item", "recurring", "category", "budget",
		"portfolio", "asset", "movement",
	}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	m := &Manager{
		db:     db,
		logger: logger,
	}

	m.userStore = NewUserStore(db, logger)
	m.accountStore = NewAccountStore(db, logger)
	m.transactionStore = NewTransactionStore(db, logger)
	m.cardStore = NewCardStore(db, logger)
	m.invoiceStore = NewInvoiceStore(db, logger)
	m.recurringStore = NewRecurringStore(db, logger)
	m.portfolioStore = NewPortfolioStore(db, logger)
	m.budgetStore = NewBudgetStore(db, logger)
	m.categoryStore = NewCategoryStore(db, logger)

	return m, nil
}

func (m *Manager) Users() interfaces.UserStore {
	return m.userStore
}

func (m *Manager) Accounts() interfaces.AccountStore {
	return m.accountStore
}

func (m *Manager) Transactions() interfaces.TransactionStore {
	return m.transactionStore
}

func (m *Manager) Cards() interfaces.CardStore {
	return m.cardStore
}

func (m *Manager) Invoices() interfaces.InvoiceStore {
	return m.invoiceStore
}

func (m *Manager) Recurring() interfaces.RecurringStore {
	return m.recurringStore
}

func (m *Manager) Portfolios() interfaces.PortfolioStore {
	return m.portfolioStore
}

func (m *Manager) Budgets() interfaces.BudgetStore {
	return m.budgetStore
}

func (m *Manager) Categories() interfaces.CategoryStore {
	return m.categoryStore
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
