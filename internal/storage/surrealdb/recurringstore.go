package surrealdb

import (
	"context"
	"time"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecurringStore implements interfaces.RecurringStore using SurrealDB.
type RecurringStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewRecurringStore creates a new RecurringStore.
func NewRecurringStore(db *surrealdb.DB, logger *common.Logger) *RecurringStore {
	return &RecurringStore{db: db, logger: logger}
}

func (s *RecurringStore) Create(ctx context.Context, def *models.RecurringTransaction) error {
	if err := models.Validate(def); err != nil {
		return err
	}
	sql := "CREATE $rid CONTENT $def"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("recurring", def.ID),
		"def": def,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("recurring.create", err)
	}
	return nil
}

func (s *RecurringStore) Get(ctx context.Context, id string) (*models.RecurringTransaction, error) {
	def, err := surrealdb.Select[models.RecurringTransaction](ctx, s.db, surrealmodels.NewRecordID("recurring", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("recurring", id)
		}
		return nil, mapQueryErr("recurring.get", err)
	}
	if def == nil || def.ID == "" {
		return nil, models.NotFound("recurring", id)
	}
	return def, nil
}

func (s *RecurringStore) List(ctx context.Context, owner string) ([]*models.RecurringTransaction, error) {
	sql := "SELECT * FROM recurring WHERE owner = $owner ORDER BY day_of_month ASC"
	vars := map[string]any{"owner": owner}

	results, err := surrealdb.Query[[]models.RecurringTransaction](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("recurring.list", err)
	}
	return allResults(results), nil
}

func (s *RecurringStore) Update(ctx context.Context, def *models.RecurringTransaction) error {
	if err := models.Validate(def); err != nil {
		return err
	}
	def.UpdatedAt = time.Now()
	sql := "UPDATE $rid CONTENT $def"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("recurring", def.ID),
		"def": def,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("recurring.update", err)
	}
	return nil
}

func (s *RecurringStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.RecurringTransaction](ctx, s.db, surrealmodels.NewRecordID("recurring", id))
	if err != nil && !isNotFoundError(err) {
		return mapQueryErr("recurring.delete", err)
	}
	return nil
}

// MaterializeToAccount writes the occurrence, its balance effect, and the
// last_processed stamp in one block. The stamp check inside the block
// makes the month idempotent even when two sessions race the same
// definition: the loser THROWs and applies nothing.
func (s *RecurringStore) MaterializeToAccount(ctx context.Context, defID string, stamp time.Time, tx *models.Transaction, delta interfaces.AccountDelta) error {
	if err := models.Validate(tx); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		LET $def = (SELECT * FROM ONLY $def_rid);
		IF $def = NONE { THROW "validation: recurring definition not found" };
		IF $def.last_processed != NONE AND time::format($def.last_processed, "%Y-%m") = time::format($stamp, "%Y-%m")
			{ THROW "consistency: definition already materialized this month" };
		CREATE $tx_rid CONTENT $tx;
		UPDATE $acct_rid SET current_balance += $delta, updated_at = $stamp;
		UPDATE $def_rid SET last_processed = $stamp, updated_at = $stamp;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"def_rid":  surrealmodels.NewRecordID("recurring", defID),
		"stamp":    stamp,
		"tx_rid":   surrealmodels.NewRecordID("transaction", tx.ID),
		"tx":       tx,
		"acct_rid": surrealmodels.NewRecordID("account", delta.AccountID),
		"delta":    delta.Delta,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("recurring.materialize", err)
	}
	return nil
}

// MaterializeToInvoice is the credit-card route: line item append, parent
// total increment, and the stamp, all in one block.
func (s *RecurringStore) MaterializeToInvoice(ctx context.Context, defID string, stamp time.Time, item *models.InvoiceItem) error {
	if err := models.Validate(item); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		LET $def = (SELECT * FROM ONLY $def_rid);
		IF $def = NONE { THROW "validation: recurring definition not found" };
		IF $def.last_processed != NONE AND time::format($def.last_processed, "%Y-%m") = time::format($stamp, "%Y-%m")
			{ THROW "consistency: definition already materialized this month" };
		CREATE $item_rid CONTENT $item;
		UPDATE $inv_rid SET total_amount += $amount, updated_at = $stamp;
		UPDATE $def_rid SET last_processed = $stamp, updated_at = $stamp;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"def_rid":  surrealmodels.NewRecordID("recurring", defID),
		"stamp":    stamp,
		"item_rid": surrealmodels.NewRecordID("invoice_item", item.ID),
		"item":     item,
		"inv_rid":  surrealmodels.NewRecordID("invoice", item.InvoiceID),
		"amount":   item.Amount,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("recurring.materialize", err)
	}
	return nil
}

var _ interfaces.RecurringStore = (*RecurringStore)(nil)
