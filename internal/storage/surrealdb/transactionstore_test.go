package surrealdb

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

func testTransaction(id, owner, accountID string, kind models.TransactionKind, amount float64, date time.Time) *models.Transaction {
	now := time.Now().UTC()
	return &models.Transaction{
		ID:            id,
		Owner:         owner,
		Description:   "tx " + id,
		Amount:        amount,
		Date:          date,
		Kind:          kind,
		Category:      "groceries",
		PaymentMethod: models.PaymentMethodDebit,
		AccountID:     accountID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestTransactionApply(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 1000)))

	tx := testTransaction("tx1", "user1", "acct1", models.TransactionKindExpense, 150, time.Now().UTC())
	require.NoError(t, mgr.Transactions().Apply(ctx, tx, interfaces.AccountDelta{AccountID: "acct1", Delta: -150}))

	got, err := mgr.Transactions().Get(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, "user1", got.Owner)
	assert.Equal(t, 150.0, got.Amount)
	assert.Equal(t, models.TransactionKindExpense, got.Kind)

	acct, err := mgr.Accounts().Get(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, 850.0, acct.CurrentBalance, 0.001, "apply must land the delta with the transaction")
}

func TestTransactionApplyPair(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("from", "user1", 1000)))
	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("to", "user1", 0)))

	date := time.Now().UTC()
	out := testTransaction("leg_out", "user1", "from", models.TransactionKindTransfer, 300, date)
	out.LinkedID = "leg_in"
	in := testTransaction("leg_in", "user1", "to", models.TransactionKindTransfer, 300, date)
	in.LinkedID = "leg_out"
	in.Incoming = true

	require.NoError(t, mgr.Transactions().ApplyPair(ctx, out, in,
		interfaces.AccountDelta{AccountID: "from", Delta: -300},
		interfaces.AccountDelta{AccountID: "to", Delta: 300},
	))

	from, err := mgr.Accounts().Get(ctx, "from")
	require.NoError(t, err)
	to, err := mgr.Accounts().Get(ctx, "to")
	require.NoError(t, err)
	assert.InDelta(t, 700.0, from.CurrentBalance, 0.001)
	assert.InDelta(t, 300.0, to.CurrentBalance, 0.001)

	gotIn, err := mgr.Transactions().Get(ctx, "leg_in")
	require.NoError(t, err)
	assert.Equal(t, "leg_out", gotIn.LinkedID)
	assert.True(t, gotIn.Incoming)
}

func TestTransactionRewrite(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 1000)))

	tx := testTransaction("tx1", "user1", "acct1", models.TransactionKindExpense, 100, time.Now().UTC())
	require.NoError(t, mgr.Transactions().Apply(ctx, tx, interfaces.AccountDelta{AccountID: "acct1", Delta: -100}))

	// Amount 100 -> 250: reverse the old effect and apply the new one.
	tx.Amount = 250
	tx.Description = "corrected"
	require.NoError(t, mgr.Transactions().Rewrite(ctx, tx,
		interfaces.AccountDelta{AccountID: "acct1", Delta: 100},
		interfaces.AccountDelta{AccountID: "acct1", Delta: -250},
	))

	got, err := mgr.Transactions().Get(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, 250.0, got.Amount)
	assert.Equal(t, "corrected", got.Description)

	acct, err := mgr.Accounts().Get(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, 750.0, acct.CurrentBalance, 0.001)
}

func TestTransactionDeleteApplied(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 500)))

	tx := testTransaction("tx1", "user1", "acct1", models.TransactionKindRevenue, 200, time.Now().UTC())
	require.NoError(t, mgr.Transactions().Apply(ctx, tx, interfaces.AccountDelta{AccountID: "acct1", Delta: 200}))

	require.NoError(t, mgr.Transactions().DeleteApplied(ctx, "tx1", interfaces.AccountDelta{AccountID: "acct1", Delta: -200}))

	_, err := mgr.Transactions().Get(ctx, "tx1")
	assert.True(t, models.IsNotFound(err), "expected not-found after delete, got %v", err)

	acct, err := mgr.Accounts().Get(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, 500.0, acct.CurrentBalance, 0.001, "deletion must reverse the balance effect")
}

func TestTransactionDeletePairApplied(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("from", "user1", 1000)))
	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("to", "user1", 0)))

	date := time.Now().UTC()
	out := testTransaction("leg_out", "user1", "from", models.TransactionKindTransfer, 300, date)
	in := testTransaction("leg_in", "user1", "to", models.TransactionKindTransfer, 300, date)
	require.NoError(t, mgr.Transactions().ApplyPair(ctx, out, in,
		interfaces.AccountDelta{AccountID: "from", Delta: -300},
		interfaces.AccountDelta{AccountID: "to", Delta: 300},
	))

	require.NoError(t, mgr.Transactions().DeletePairApplied(ctx, "leg_out", "leg_in",
		interfaces.AccountDelta{AccountID: "from", Delta: 300},
		interfaces.AccountDelta{AccountID: "to", Delta: -300},
	))

	_, err := mgr.Transactions().Get(ctx, "leg_out")
	assert.True(t, models.IsNotFound(err))
	_, err = mgr.Transactions().Get(ctx, "leg_in")
	assert.True(t, models.IsNotFound(err))

	from, err := mgr.Accounts().Get(ctx, "from")
	require.NoError(t, err)
	to, err := mgr.Accounts().Get(ctx, "to")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, from.CurrentBalance, 0.001)
	assert.InDelta(t, 0.0, to.CurrentBalance, 0.001)
}

func TestTransactionListFilters(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 0)))
	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct2", "user1", 0)))

	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tx := testTransaction(fmt.Sprintf("tx%d", i), "user1", "acct1", models.TransactionKindExpense, 10, base.AddDate(0, 0, i))
		if i == 4 {
			tx.AccountID = "acct2"
			tx.Kind = models.TransactionKindRevenue
			tx.Category = "salary"
		}
		require.NoError(t, mgr.Transactions().Apply(ctx, tx, interfaces.AccountDelta{AccountID: tx.AccountID, Delta: 10}))
	}

	all, err := mgr.Transactions().List(ctx, "user1", interfaces.TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	byAccount, err := mgr.Transactions().List(ctx, "user1", interfaces.TransactionQuery{AccountID: "acct1"})
	require.NoError(t, err)
	assert.Len(t, byAccount, 4)

	byKind, err := mgr.Transactions().List(ctx, "user1", interfaces.TransactionQuery{Kind: models.TransactionKindRevenue})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "tx4", byKind[0].ID)

	windowed, err := mgr.Transactions().List(ctx, "user1", interfaces.TransactionQuery{
		From: base.AddDate(0, 0, 1),
		To:   base.AddDate(0, 0, 3),
	})
	require.NoError(t, err)
	assert.Len(t, windowed, 2, "window is half-open: from inclusive, to exclusive")

	limited, err := mgr.Transactions().List(ctx, "user1", interfaces.TransactionQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "tx4", limited[0].ID, "list orders newest first")
}

func TestTransactionSumSignedByAccount(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 0)))

	date := time.Now().UTC()
	entries := []struct {
		id     string
		kind   models.TransactionKind
		amount float64
		delta  float64
	}{
		{"r1", models.TransactionKindRevenue, 1000, 1000},
		{"e1", models.TransactionKindExpense, 300, -300},
		{"e2", models.TransactionKindExpense, 150.25, -150.25},
	}
	for _, e := range entries {
		tx := testTransaction(e.id, "user1", "acct1", e.kind, e.amount, date)
		require.NoError(t, mgr.Transactions().Apply(ctx, tx, interfaces.AccountDelta{AccountID: "acct1", Delta: e.delta}))
	}

	sum, err := mgr.Transactions().SumSignedByAccount(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, 549.75, sum, 0.001)

	acct, err := mgr.Accounts().Get(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, sum, acct.CurrentBalance-acct.InitialBalance, 0.001, "materialized balance must match the signed sum")
}

func TestTransactionSpentByCategory(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 0)))

	march := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC)

	inMonth := testTransaction("tx1", "user1", "acct1", models.TransactionKindExpense, 120, march)
	require.NoError(t, mgr.Transactions().Apply(ctx, inMonth, interfaces.AccountDelta{AccountID: "acct1", Delta: -120}))

	alsoInMonth := testTransaction("tx2", "user1", "acct1", models.TransactionKindExpense, 80, march.AddDate(0, 0, 5))
	require.NoError(t, mgr.Transactions().Apply(ctx, alsoInMonth, interfaces.AccountDelta{AccountID: "acct1", Delta: -80}))

	nextMonth := testTransaction("tx3", "user1", "acct1", models.TransactionKindExpense, 999, april)
	require.NoError(t, mgr.Transactions().Apply(ctx, nextMonth, interfaces.AccountDelta{AccountID: "acct1", Delta: -999}))

	revenue := testTransaction("tx4", "user1", "acct1", models.TransactionKindRevenue, 500, march)
	revenue.Category = "groceries"
	require.NoError(t, mgr.Transactions().Apply(ctx, revenue, interfaces.AccountDelta{AccountID: "acct1", Delta: 500}))

	spent, err := mgr.Transactions().SpentByCategory(ctx, "user1", "groceries", 2026, time.March)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, spent, 0.001, "only same-month expenses count")
}
