package surrealdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

func testInvoice(owner, cardID string, p models.Period, due time.Time) *models.Invoice {
	now := time.Now().UTC()
	return &models.Invoice{
		ID:        models.InvoiceID(owner, cardID, p),
		Owner:     owner,
		CardID:    cardID,
		Month:     p.Month,
		Year:      p.Year,
		Status:    models.InvoiceStatusOpen,
		DueDate:   due,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testInvoiceItem(id, invoiceID, owner string, amount float64) *models.InvoiceItem {
	now := time.Now().UTC()
	return &models.InvoiceItem{
		ID:           id,
		InvoiceID:    invoiceID,
		Owner:        owner,
		Description:  "item " + id,
		Amount:       amount,
		Category:     "groceries",
		PurchaseDate: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestInvoiceCreateIfAbsent(t *testing.T) {
	mgr := testManager(t)
	store := mgr.Invoices()
	ctx := testContext()

	p := models.Period{Month: time.March, Year: 2026}
	inv := testInvoice("user1", "card1", p, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))

	created, err := store.CreateIfAbsent(ctx, inv)
	require.NoError(t, err)
	assert.True(t, created)

	// Same deterministic id: the second caller loses the race and creates nothing.
	again, err := store.CreateIfAbsent(ctx, inv)
	require.NoError(t, err)
	assert.False(t, again)

	got, err := store.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOpen, got.Status)
	assert.Equal(t, time.March, got.Month)
	assert.Equal(t, 2026, got.Year)
}

func TestInvoiceAppendItemsKeepsTotalInvariant(t *testing.T) {
	mgr := testManager(t)
	store := mgr.Invoices()
	ctx := testContext()

	p := models.Period{Month: time.March, Year: 2026}
	inv := testInvoice("user1", "card1", p, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))
	_, err := store.CreateIfAbsent(ctx, inv)
	require.NoError(t, err)

	items := []*models.InvoiceItem{
		testInvoiceItem("it1", inv.ID, "user1", 100),
		testInvoiceItem("it2", inv.ID, "user1", 49.90),
	}
	require.NoError(t, store.AppendItems(ctx, items))

	got, err := store.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.InDelta(t, 149.90, got.TotalAmount, 0.001)

	listed, err := store.ListItems(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	var sum float64
	for _, it := range listed {
		sum += it.Amount
	}
	assert.InDelta(t, got.TotalAmount, sum, 0.001, "total_amount must equal the sum of line items")
}

func TestInvoiceItemUpdateAndDelete(t *testing.T) {
	mgr := testManager(t)
	store := mgr.Invoices()
	ctx := testContext()

	p := models.Period{Month: time.March, Year: 2026}
	inv := testInvoice("user1", "card1", p, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))
	_, err := store.CreateIfAbsent(ctx, inv)
	require.NoError(t, err)

	item := testInvoiceItem("it1", inv.ID, "user1", 100)
	require.NoError(t, store.AppendItem(ctx, item))

	// 100 -> 130: parent total moves by the delta.
	item.Amount = 130
	require.NoError(t, store.UpdateItem(ctx, item, 30))

	got, err := store.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.InDelta(t, 130.0, got.TotalAmount, 0.001)

	require.NoError(t, store.DeleteItem(ctx, item.ID, inv.ID, 130))

	got, err = store.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got.TotalAmount, 0.001)

	_, err = store.GetItem(ctx, item.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestInvoiceMoveItem(t *testing.T) {
	mgr := testManager(t)
	store := mgr.Invoices()
	ctx := testContext()

	march := models.Period{Month: time.March, Year: 2026}
	april := march.Next()
	from := testInvoice("user1", "card1", march, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))
	to := testInvoice("user1", "card1", april, time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC))
	_, err := store.CreateIfAbsent(ctx, from)
	require.NoError(t, err)
	_, err = store.CreateIfAbsent(ctx, to)
	require.NoError(t, err)

	item := testInvoiceItem("it1", from.ID, "user1", 100)
	require.NoError(t, store.AppendItem(ctx, item))

	item.InvoiceID = to.ID
	item.Amount = 120
	require.NoError(t, store.MoveItem(ctx, item, from.ID, 100))

	gotFrom, err := store.Get(ctx, from.ID)
	require.NoError(t, err)
	gotTo, err := store.Get(ctx, to.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, gotFrom.TotalAmount, 0.001)
	assert.InDelta(t, 120.0, gotTo.TotalAmount, 0.001)

	moved, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, to.ID, moved.InvoiceID)
}

func TestInvoicePay(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 1000)))

	p := models.Period{Month: time.March, Year: 2026}
	inv := testInvoice("user1", "card1", p, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))
	inv.Status = models.InvoiceStatusClosed
	_, err := mgr.Invoices().CreateIfAbsent(ctx, inv)
	require.NoError(t, err)
	require.NoError(t, mgr.Invoices().AppendItem(ctx, testInvoiceItem("it1", inv.ID, "user1", 400)))

	settle := testTransaction("pay1", "user1", "acct1", models.TransactionKindExpense, 400, time.Now().UTC())
	require.NoError(t, mgr.Invoices().Pay(ctx, inv.ID, settle, interfaces.AccountDelta{AccountID: "acct1", Delta: -400}))

	got, err := mgr.Invoices().Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, got.Status)

	acct, err := mgr.Accounts().Get(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, 600.0, acct.CurrentBalance, 0.001)

	// A second payment attempt must abort without touching the account.
	settle2 := testTransaction("pay2", "user1", "acct1", models.TransactionKindExpense, 400, time.Now().UTC())
	err = mgr.Invoices().Pay(ctx, inv.ID, settle2, interfaces.AccountDelta{AccountID: "acct1", Delta: -400})
	assert.True(t, models.IsConsistency(err), "expected consistency error, got %v", err)

	acct, err = mgr.Accounts().Get(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, 600.0, acct.CurrentBalance, 0.001, "failed payment must leave the balance alone")
	_, err = mgr.Transactions().Get(ctx, "pay2")
	assert.True(t, models.IsNotFound(err), "failed payment must not persist its settlement transaction")
}

func TestInvoiceAdvancePay(t *testing.T) {
	mgr := testManager(t)
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 1000)))

	p := models.Period{Month: time.March, Year: 2026}
	inv := testInvoice("user1", "card1", p, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))
	_, err := mgr.Invoices().CreateIfAbsent(ctx, inv)
	require.NoError(t, err)
	require.NoError(t, mgr.Invoices().AppendItem(ctx, testInvoiceItem("it1", inv.ID, "user1", 500)))

	settle := testTransaction("adv1", "user1", "acct1", models.TransactionKindExpense, 200, time.Now().UTC())
	require.NoError(t, mgr.Invoices().AdvancePay(ctx, inv.ID, 200, settle, interfaces.AccountDelta{AccountID: "acct1", Delta: -200}))

	got, err := mgr.Invoices().Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, got.TotalAmount, 0.001)

	// Overdraining the live total aborts the whole block.
	settle2 := testTransaction("adv2", "user1", "acct1", models.TransactionKindExpense, 400, time.Now().UTC())
	err = mgr.Invoices().AdvancePay(ctx, inv.ID, 400, settle2, interfaces.AccountDelta{AccountID: "acct1", Delta: -400})
	assert.True(t, models.IsConsistency(err), "expected consistency error, got %v", err)

	got, err = mgr.Invoices().Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, got.TotalAmount, 0.001)

	acct, err := mgr.Accounts().Get(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, 800.0, acct.CurrentBalance, 0.001)
}

func TestInvoiceMarkPaid(t *testing.T) {
	mgr := testManager(t)
	store := mgr.Invoices()
	ctx := testContext()

	require.NoError(t, mgr.Accounts().Create(ctx, testAccount("acct1", "user1", 1000)))

	p := models.Period{Month: time.March, Year: 2026}
	inv := testInvoice("user1", "card1", p, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))
	_, err := store.CreateIfAbsent(ctx, inv)
	require.NoError(t, err)
	require.NoError(t, store.AppendItem(ctx, testInvoiceItem("it1", inv.ID, "user1", 300)))

	// A non-zero live total still needs a settling payment.
	err = store.MarkPaid(ctx, inv.ID)
	assert.True(t, models.IsConsistency(err), "expected consistency error, got %v", err)

	// Advance payments drain the total to zero.
	settle := testTransaction("adv1", "user1", "acct1", models.TransactionKindExpense, 300, time.Now().UTC())
	require.NoError(t, store.AdvancePay(ctx, inv.ID, 300, settle, interfaces.AccountDelta{AccountID: "acct1", Delta: -300}))

	require.NoError(t, store.MarkPaid(ctx, inv.ID))

	got, err := store.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, got.Status)

	// No settlement transaction beyond the advance, no extra debit.
	acct, err := mgr.Accounts().Get(ctx, "acct1")
	require.NoError(t, err)
	assert.InDelta(t, 700.0, acct.CurrentBalance, 0.001)

	err = store.MarkPaid(ctx, inv.ID)
	assert.True(t, models.IsConsistency(err), "expected consistency error, got %v", err)

	err = store.MarkPaid(ctx, "no_such_invoice")
	assert.True(t, models.IsValidation(err), "expected validation error, got %v", err)
}

func TestInvoiceCloseOverdue(t *testing.T) {
	mgr := testManager(t)
	store := mgr.Invoices()
	ctx := testContext()

	now := time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC)

	overdue := testInvoice("user1", "card1", models.Period{Month: time.March, Year: 2026}, now.AddDate(0, -1, 0))
	current := testInvoice("user1", "card1", models.Period{Month: time.May, Year: 2026}, now.AddDate(0, 1, 0))
	otherOwner := testInvoice("user2", "card9", models.Period{Month: time.March, Year: 2026}, now.AddDate(0, -1, 0))
	for _, inv := range []*models.Invoice{overdue, current, otherOwner} {
		_, err := store.CreateIfAbsent(ctx, inv)
		require.NoError(t, err)
	}

	closed, err := store.CloseOverdue(ctx, "user1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := store.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusClosed, got.Status)

	got, err = store.Get(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOpen, got.Status, "invoices not yet due stay open")

	got, err = store.Get(ctx, otherOwner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOpen, got.Status, "closing is scoped to the owner")

	// Idempotent: a second sweep finds nothing left to close.
	closed, err = store.CloseOverdue(ctx, "user1", now)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestInvoiceListByCard(t *testing.T) {
	mgr := testManager(t)
	store := mgr.Invoices()
	ctx := testContext()

	for _, p := range []models.Period{
		{Month: time.January, Year: 2026},
		{Month: time.February, Year: 2026},
	} {
		inv := testInvoice("user1", "card1", p, time.Date(p.Year, p.Month+1, 10, 0, 0, 0, 0, time.UTC))
		_, err := store.CreateIfAbsent(ctx, inv)
		require.NoError(t, err)
	}
	other := testInvoice("user1", "card2", models.Period{Month: time.January, Year: 2026}, time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC))
	_, err := store.CreateIfAbsent(ctx, other)
	require.NoError(t, err)

	invoices, err := store.ListByCard(ctx, "card1")
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, time.February, invoices[0].Month, "newest period first")
}
