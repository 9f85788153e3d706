package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// InvoiceStore implements interfaces.InvoiceStore using SurrealDB. Line
// items live in their own table keyed by invoice_id; every item mutation
// adjusts the parent total inside the same BEGIN/COMMIT block so the
// invariant total_amount == sum(items) holds at every commit point.
type InvoiceStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewInvoiceStore creates a new InvoiceStore.
func NewInvoiceStore(db *surrealdb.DB, logger *common.Logger) *InvoiceStore {
	return &InvoiceStore{db: db, logger: logger}
}

func (s *InvoiceStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := surrealdb.Select[models.Invoice](ctx, s.db, surrealmodels.NewRecordID("invoice", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("invoice", id)
		}
		return nil, mapQueryErr("invoice.get", err)
	}
	if inv == nil || inv.ID == "" {
		return nil, models.NotFound("invoice", id)
	}
	return inv, nil
}

func (s *InvoiceStore) List(ctx context.Context, owner string) ([]*models.Invoice, error) {
	sql := "SELECT * FROM invoice WHERE owner = $owner ORDER BY year DESC, month DESC"
	vars := map[string]any{"owner": owner}

	results, err := surrealdb.Query[[]models.Invoice](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("invoice.list", err)
	}
	return allResults(results), nil
}

func (s *InvoiceStore) ListByCard(ctx context.Context, cardID string) ([]*models.Invoice, error) {
	sql := "SELECT * FROM invoice WHERE card_id = $card_id ORDER BY year DESC, month DESC"
	vars := map[string]any{"card_id": cardID}

	results, err := surrealdb.Query[[]models.Invoice](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("invoice.listbycard", err)
	}
	return allResults(results), nil
}

// CreateIfAbsent creates the invoice under its deterministic record id.
// CREATE fails on an existing id, which is exactly the race closure we
// want: two concurrent first purchases of a period converge on one
// document, the loser just reads it back.
func (s *InvoiceStore) CreateIfAbsent(ctx context.Context, invoice *models.Invoice) (bool, error) {
	if err := models.Validate(invoice); err != nil {
		return false, err
	}
	sql := "CREATE $rid CONTENT $invoice"
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID("invoice", invoice.ID),
		"invoice": invoice,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		if isAlreadyExistsError(err) {
			return false, nil
		}
		return false, mapQueryErr("invoice.create", err)
	}
	return true, nil
}

func (s *InvoiceStore) AppendItem(ctx context.Context, item *models.InvoiceItem) error {
	return s.AppendItems(ctx, []*models.InvoiceItem{item})
}

// AppendItems writes every item plus its parent total increment in one
// all-or-nothing block. Installment plans span several invoices; a partial
// append would break the per-invoice total invariant.
func (s *InvoiceStore) AppendItems(ctx context.Context, items []*models.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	sql := "BEGIN TRANSACTION;\n"
	vars := map[string]any{"now": time.Now()}
	for i, item := range items {
		if err := models.Validate(item); err != nil {
			return err
		}
		sql += fmt.Sprintf("CREATE $item_rid_%d CONTENT $item_%d;\n", i, i)
		sql += fmt.Sprintf("UPDATE $inv_rid_%d SET total_amount += $amount_%d, updated_at = $now;\n", i, i)
		vars[fmt.Sprintf("item_rid_%d", i)] = surrealmodels.NewRecordID("invoice_item", item.ID)
		vars[fmt.Sprintf("item_%d", i)] = item
		vars[fmt.Sprintf("inv_rid_%d", i)] = surrealmodels.NewRecordID("invoice", item.InvoiceID)
		vars[fmt.Sprintf("amount_%d", i)] = item.Amount
	}
	sql += "COMMIT TRANSACTION;"

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("invoice.append", err)
	}
	return nil
}

func (s *InvoiceStore) GetItem(ctx context.Context, id string) (*models.InvoiceItem, error) {
	item, err := surrealdb.Select[models.InvoiceItem](ctx, s.db, surrealmodels.NewRecordID("invoice_item", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("invoice_item", id)
		}
		return nil, mapQueryErr("invoice.getitem", err)
	}
	if item == nil || item.ID == "" {
		return nil, models.NotFound("invoice_item", id)
	}
	return item, nil
}

func (s *InvoiceStore) ListItems(ctx context.Context, invoiceID string) ([]*models.InvoiceItem, error) {
	sql := "SELECT * FROM invoice_item WHERE invoice_id = $invoice_id ORDER BY purchase_date ASC"
	vars := map[string]any{"invoice_id": invoiceID}

	results, err := surrealdb.Query[[]models.InvoiceItem](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("invoice.listitems", err)
	}
	return allResults(results), nil
}

func (s *InvoiceStore) UpdateItem(ctx context.Context, item *models.InvoiceItem, amountDelta float64) error {
	if err := models.Validate(item); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		UPDATE $item_rid CONTENT $item;
		UPDATE $inv_rid SET total_amount += $delta, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"item_rid": surrealmodels.NewRecordID("invoice_item", item.ID),
		"item":     item,
		"inv_rid":  surrealmodels.NewRecordID("invoice", item.InvoiceID),
		"delta":    amountDelta,
		"now":      time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("invoice.updateitem", err)
	}
	return nil
}

// MoveItem re-homes an item whose purchase date now resolves to a
// different billing period. Both legs ride in one block: the old parent's
// decrement and the new parent's increment cannot be observed separately.
func (s *InvoiceStore) MoveItem(ctx context.Context, item *models.InvoiceItem, fromInvoiceID string, oldAmount float64) error {
	if err := models.Validate(item); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		UPDATE $from_rid SET total_amount -= $old_amount, updated_at = $now;
		UPDATE $item_rid CONTENT $item;
		UPDATE $to_rid SET total_amount += $new_amount, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"from_rid":   surrealmodels.NewRecordID("invoice", fromInvoiceID),
		"old_amount": oldAmount,
		"item_rid":   surrealmodels.NewRecordID("invoice_item", item.ID),
		"item":       item,
		"to_rid":     surrealmodels.NewRecordID("invoice", item.InvoiceID),
		"new_amount": item.Amount,
		"now":        time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("invoice.moveitem", err)
	}
	return nil
}

func (s *InvoiceStore) DeleteItem(ctx context.Context, id, invoiceID string, amount float64) error {
	sql := `BEGIN TRANSACTION;
		DELETE $item_rid;
		UPDATE $inv_rid SET total_amount -= $amount, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"item_rid": surrealmodels.NewRecordID("invoice_item", id),
		"inv_rid":  surrealmodels.NewRecordID("invoice", invoiceID),
		"amount":   amount,
		"now":      time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("invoice.deleteitem", err)
	}
	return nil
}

func (s *InvoiceStore) Pay(ctx context.Context, invoiceID string, settle *models.Transaction, debit interfaces.AccountDelta) error {
	if err := models.Validate(settle); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		LET $inv = (SELECT * FROM ONLY $inv_rid);
		IF $inv = NONE { THROW "validation: invoice not found" };
		IF $inv.status = $paid { THROW "consistency: invoice already paid" };
		UPDATE $inv_rid SET status = $paid, updated_at = $now;
		CREATE $tx_rid CONTENT $tx;
		UPDATE $acct_rid SET current_balance += $delta, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"inv_rid":  surrealmodels.NewRecordID("invoice", invoiceID),
		"paid":     models.InvoiceStatusPaid,
		"tx_rid":   surrealmodels.NewRecordID("transaction", settle.ID),
		"tx":       settle,
		"acct_rid": surrealmodels.NewRecordID("account", debit.AccountID),
		"delta":    debit.Delta,
		"now":      time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("invoice.pay", err)
	}
	return nil
}

// AdvancePay validates against the live total inside the transaction, not
// a snapshot the caller read moments earlier. A competing advance payment
// that drains the total between the caller's read and this write makes the
// block THROW, surfacing as a retryable ConsistencyError.
func (s *InvoiceStore) AdvancePay(ctx context.Context, invoiceID string, amount float64, settle *models.Transaction, debit interfaces.AccountDelta) error {
	if err := models.Validate(settle); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		LET $inv = (SELECT * FROM ONLY $inv_rid);
		IF $inv = NONE { THROW "validation: invoice not found" };
		IF $inv.total_amount < $amount { THROW "consistency: advance payment exceeds live invoice total" };
		UPDATE $inv_rid SET total_amount -= $amount, updated_at = $now;
		CREATE $tx_rid CONTENT $tx;
		UPDATE $acct_rid SET current_balance += $delta, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"inv_rid":  surrealmodels.NewRecordID("invoice", invoiceID),
		"amount":   amount,
		"tx_rid":   surrealmodels.NewRecordID("transaction", settle.ID),
		"tx":       settle,
		"acct_rid": surrealmodels.NewRecordID("account", debit.AccountID),
		"delta":    debit.Delta,
		"now":      time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("invoice.advancepay", err)
	}
	return nil
}

// MarkPaid settles an invoice whose total was already drained by advance
// payments. The zero-total check runs against the live row so a purchase
// landing between the caller's read and this write aborts the block.
func (s *InvoiceStore) MarkPaid(ctx context.Context, invoiceID string) error {
	sql := `BEGIN TRANSACTION;
		LET $inv = (SELECT * FROM ONLY $inv_rid);
		IF $inv = NONE { THROW "validation: invoice not found" };
		IF $inv.status = $paid { THROW "consistency: invoice already paid" };
		IF $inv.total_amount != 0 { THROW "consistency: invoice total is not zero" };
		UPDATE $inv_rid SET status = $paid, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"inv_rid": surrealmodels.NewRecordID("invoice", invoiceID),
		"paid":    models.InvoiceStatusPaid,
		"now":     time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("invoice.markpaid", err)
	}
	return nil
}

func (s *InvoiceStore) CloseOverdue(ctx context.Context, owner string, now time.Time) (int, error) {
	sql := `UPDATE invoice SET status = $closed, updated_at = $ts
		WHERE owner = $owner AND status = $open AND due_date < $ts RETURN AFTER`
	vars := map[string]any{
		"owner":  owner,
		"open":   models.InvoiceStatusOpen,
		"closed": models.InvoiceStatusClosed,
		"ts":     now,
	}

	results, err := surrealdb.Query[[]models.Invoice](ctx, s.db, sql, vars)
	if err != nil {
		return 0, mapQueryErr("invoice.closeoverdue", err)
	}
	return len(allResults(results)), nil
}

var _ interfaces.InvoiceStore = (*InvoiceStore)(nil)
