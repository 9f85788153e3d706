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

// TransactionStore implements interfaces.TransactionStore using SurrealDB.
// Every method that pairs a document write with a balance effect issues a
// single BEGIN/COMMIT block: either both apply or neither does.
type TransactionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(db *surrealdb.DB, logger *common.Logger) *TransactionStore {
	return &TransactionStore{db: db, logger: logger}
}

func (s *TransactionStore) Get(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := surrealdb.Select[models.Transaction](ctx, s.db, surrealmodels.NewRecordID("transaction", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("transaction", id)
		}
		return nil, mapQueryErr("transaction.get", err)
	}
	if tx == nil || tx.ID == "" {
		return nil, models.NotFound("transaction", id)
	}
	return tx, nil
}

func (s *TransactionStore) List(ctx context.Context, owner string, q interfaces.TransactionQuery) ([]*models.Transaction, error) {
	sql := "SELECT * FROM transaction WHERE owner = $owner"
	vars := map[string]any{"owner": owner}

	if q.AccountID != "" {
		sql += " AND account_id = $account_id"
		vars["account_id"] = q.AccountID
	}
	if q.Kind != "" {
		sql += " AND kind = $kind"
		vars["kind"] = q.Kind
	}
	if q.Category != "" {
		sql += " AND category = $category"
		vars["category"] = q.Category
	}
	if !q.From.IsZero() {
		sql += " AND date >= $from"
		vars["from"] = q.From
	}
	if !q.To.IsZero() {
		sql += " AND date < $to"
		vars["to"] = q.To
	}
	sql += " ORDER BY date DESC"
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	results, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("transaction.list", err)
	}
	return allResults(results), nil
}

func (s *TransactionStore) Apply(ctx context.Context, tx *models.Transaction, delta interfaces.AccountDelta) error {
	if err := models.Validate(tx); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		CREATE $tx_rid CONTENT $tx;
		UPDATE $acct_rid SET current_balance += $delta, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"tx_rid":   surrealmodels.NewRecordID("transaction", tx.ID),
		"tx":       tx,
		"acct_rid": surrealmodels.NewRecordID("account", delta.AccountID),
		"delta":    delta.Delta,
		"now":      time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("transaction.apply", err)
	}
	return nil
}

func (s *TransactionStore) ApplyPair(ctx context.Context, out, in *models.Transaction, debit, credit interfaces.AccountDelta) error {
	if err := models.Validate(out); err != nil {
		return err
	}
	if err := models.Validate(in); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		CREATE $out_rid CONTENT $out;
		CREATE $in_rid CONTENT $in;
		UPDATE $debit_rid SET current_balance += $debit_delta, updated_at = $now;
		UPDATE $credit_rid SET current_balance += $credit_delta, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"out_rid":      surrealmodels.NewRecordID("transaction", out.ID),
		"out":          out,
		"in_rid":       surrealmodels.NewRecordID("transaction", in.ID),
		"in":           in,
		"debit_rid":    surrealmodels.NewRecordID("account", debit.AccountID),
		"debit_delta":  debit.Delta,
		"credit_rid":   surrealmodels.NewRecordID("account", credit.AccountID),
		"credit_delta": credit.Delta,
		"now":          time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("transaction.applypair", err)
	}
	return nil
}

// Rewrite replaces the transaction document and applies the reversal of
// the old delta plus the new delta in one transaction. The existence check
// rides inside the block so a concurrent delete aborts the whole rewrite.
func (s *TransactionStore) Rewrite(ctx context.Context, tx *models.Transaction, reversal, application interfaces.AccountDelta) error {
	if err := models.Validate(tx); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		LET $existing = (SELECT * FROM ONLY $tx_rid);
		IF $existing = NONE { THROW "consistency: transaction vanished before rewrite" };
		UPDATE $tx_rid CONTENT $tx;
		UPDATE $rev_rid SET current_balance += $rev_delta, updated_at = $now;
		UPDATE $app_rid SET current_balance += $app_delta, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"tx_rid":    surrealmodels.NewRecordID("transaction", tx.ID),
		"tx":        tx,
		"rev_rid":   surrealmodels.NewRecordID("account", reversal.AccountID),
		"rev_delta": reversal.Delta,
		"app_rid":   surrealmodels.NewRecordID("account", application.AccountID),
		"app_delta": application.Delta,
		"now":       time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("transaction.rewrite", err)
	}
	return nil
}

func (s *TransactionStore) DeleteApplied(ctx context.Context, id string, reversal interfaces.AccountDelta) error {
	sql := `BEGIN TRANSACTION;
		DELETE $tx_rid;
		UPDATE $acct_rid SET current_balance += $delta, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"tx_rid":   surrealmodels.NewRecordID("transaction", id),
		"acct_rid": surrealmodels.NewRecordID("account", reversal.AccountID),
		"delta":    reversal.Delta,
		"now":      time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("transaction.delete", err)
	}
	return nil
}

// DeletePairApplied removes both legs of a transfer and reverses both
// balance effects in one transaction.
func (s *TransactionStore) DeletePairApplied(ctx context.Context, outID, inID string, debitReversal, creditReversal interfaces.AccountDelta) error {
	sql := `BEGIN TRANSACTION;
		DELETE $out_rid;
		DELETE $in_rid;
		UPDATE $debit_rid SET current_balance += $debit_delta, updated_at = $now;
		UPDATE $credit_rid SET current_balance += $credit_delta, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"out_rid":      surrealmodels.NewRecordID("transaction", outID),
		"in_rid":       surrealmodels.NewRecordID("transaction", inID),
		"debit_rid":    surrealmodels.NewRecordID("account", debitReversal.AccountID),
		"debit_delta":  debitReversal.Delta,
		"credit_rid":   surrealmodels.NewRecordID("account", creditReversal.AccountID),
		"credit_delta": creditReversal.Delta,
		"now":          time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("transaction.deletepair", err)
	}
	return nil
}

type sumRow struct {
	Total float64 `json:"total"`
}

func (s *TransactionStore) SpentByCategory(ctx context.Context, owner, category string, year int, month time.Month) (float64, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	sql := `SELECT math::sum(amount) AS total FROM transaction
		WHERE owner = $owner AND category = $category AND kind = $kind
		AND date >= $from AND date < $to GROUP ALL`
	vars := map[string]any{
		"owner":    owner,
		"category": category,
		"kind":     models.TransactionKindExpense,
		"from":     from,
		"to":       to,
	}

	results, err := surrealdb.Query[[]sumRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, mapQueryErr("transaction.spent", err)
	}
	if row := firstResult(results); row != nil {
		return row.Total, nil
	}
	return 0, nil
}

func (s *TransactionStore) SumSignedByAccount(ctx context.Context, accountID string) (float64, error) {
	sql := `SELECT math::sum(IF kind = $revenue OR incoming = true THEN amount ELSE -amount END) AS total
		FROM transaction WHERE account_id = $account_id GROUP ALL`
	vars := map[string]any{
		"account_id": accountID,
		"revenue":    models.TransactionKindRevenue,
	}

	results, err := surrealdb.Query[[]sumRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, mapQueryErr("transaction.sumsigned", err)
	}
	if row := firstResult(results); row != nil {
		return row.Total, nil
	}
	return 0, nil
}

var _ interfaces.TransactionStore = (*TransactionStore)(nil)
