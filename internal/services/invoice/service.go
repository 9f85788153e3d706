// Package invoice maps credit-card purchases to billing periods and keeps
// each invoice's running total in sync with its line items.
package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

var _ interfaces.InvoiceService = (*Service)(nil)

// Service implements InvoiceService
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a new invoice service
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

func (s *Service) CreateCard(ctx context.Context, card *models.CreditCard) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(card.Name) == "" {
		return models.Validationf("card name is required")
	}
	if card.ClosingDay < 1 || card.ClosingDay > 28 {
		return models.Validationf("closing day must be between 1 and 28, got %d", card.ClosingDay)
	}
	if card.DueDay < 1 || card.DueDay > 28 {
		return models.Validationf("due day must be between 1 and 28, got %d", card.DueDay)
	}

	now := time.Now()
	if card.ID == "" {
		card.ID = newID("cc")
	}
	card.Owner = owner
	card.Name = strings.TrimSpace(card.Name)
	card.CreatedAt = now
	card.UpdatedAt = now

	if err := s.storage.Cards().Create(ctx, card); err != nil {
		return err
	}
	s.logger.Info().Str("card", card.ID).Int("closing_day", card.ClosingDay).Msg("Credit card created")
	return nil
}

func (s *Service) GetCard(ctx context.Context, id string) (*models.CreditCard, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	card, err := s.storage.Cards().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if card.Owner != owner {
		return nil, models.NotFound("credit card", id)
	}
	return card, nil
}

func (s *Service) ListCards(ctx context.Context) ([]*models.CreditCard, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.Cards().List(ctx, owner)
}

func (s *Service) UpdateCard(ctx context.Context, card *models.CreditCard) error {
	existing, err := s.GetCard(ctx, card.ID)
	if err != nil {
		return err
	}
	if card.ClosingDay < 1 || card.ClosingDay > 28 {
		return models.Validationf("closing day must be between 1 and 28, got %d", card.ClosingDay)
	}
	if card.DueDay < 1 || card.DueDay > 28 {
		return models.Validationf("due day must be between 1 and 28, got %d", card.DueDay)
	}
	card.Owner = existing.Owner
	card.CreatedAt = existing.CreatedAt
	card.UpdatedAt = time.Now()
	return s.storage.Cards().Update(ctx, card)
}

func (s *Service) DeleteCard(ctx context.Context, id string) error {
	if _, err := s.GetCard(ctx, id); err != nil {
		return err
	}
	invoices, err := s.storage.Invoices().ListByCard(ctx, id)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		if inv.Status != models.InvoiceStatusPaid && inv.TotalAmount != 0 {
			return models.Validationf("card %s has unpaid invoice %s; settle it first", id, inv.ID)
		}
	}
	return s.storage.Cards().Delete(ctx, id)
}

// FindOrCreateInvoice resolves the purchase date to a billing period and
// returns that period's invoice, creating it when absent. The invoice id
// is derived from (owner, card, period), so two concurrent callers for
// the same period converge on one document: the loser of the create race
// just reads the winner's.
func (s *Service) FindOrCreateInvoice(ctx context.Context, cardID string, purchaseDate time.Time) (*models.Invoice, error) {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	period := ResolvePeriod(purchaseDate, card.ClosingDay)
	return s.findOrCreateForPeriod(ctx, card, period)
}

func (s *Service) findOrCreateForPeriod(ctx context.Context, card *models.CreditCard, period models.Period) (*models.Invoice, error) {
	id := models.InvoiceID(card.Owner, card.ID, period)

	now := time.Now()
	invoice := &models.Invoice{
		ID:          id,
		Owner:       card.Owner,
		CardID:      card.ID,
		Month:       period.Month,
		Year:        period.Year,
		TotalAmount: 0,
		Status:      models.InvoiceStatusOpen,
		DueDate:     time.Date(period.Year, period.Month, card.DueDay, 0, 0, 0, 0, time.UTC),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.storage.Invoices().CreateIfAbsent(ctx, invoice)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info().Str("invoice", id).Str("card", card.ID).Msg("Invoice opened")
		return invoice, nil
	}
	return s.storage.Invoices().Get(ctx, id)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	invoice, err := s.storage.Invoices().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Owner != owner {
		return nil, models.NotFound("invoice", id)
	}
	return invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context) ([]*models.Invoice, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.Invoices().List(ctx, owner)
}

func (s *Service) ListItems(ctx context.Context, invoiceID string) ([]*models.InvoiceItem, error) {
	if _, err := s.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.storage.Invoices().ListItems(ctx, invoiceID)
}

// AddPurchase books a card purchase. With installments > 1 the amount is
// divided across that many consecutive billing periods; the per-cent
// division remainder lands on the last installment so the plan always
// sums exactly to the purchase amount.
func (s *Service) AddPurchase(ctx context.Context, cardID string, item models.InvoiceItem, installments int) ([]*models.InvoiceItem, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if item.Amount <= 0 {
		return nil, models.Validationf("purchase amount must be positive, got %v", item.Amount)
	}
	if strings.TrimSpace(item.Description) == "" {
		return nil, models.Validationf("purchase description is required")
	}
	if item.PurchaseDate.IsZero() {
		return nil, models.Validationf("purchase date is required")
	}
	if installments < 1 {
		installments = 1
	}
	if installments > 1 && len(item.Splits) > 0 {
		return nil, models.Validationf("installment purchases cannot carry splits")
	}
	if err := models.ValidateSplits(item.Amount, item.Splits); err != nil {
		return nil, err
	}

	amounts := splitInstallments(item.Amount, installments)

	period := ResolvePeriod(item.PurchaseDate, card.ClosingDay)
	now := time.Now()
	items := make([]*models.InvoiceItem, 0, installments)
	for i, amount := range amounts {
		invoice, err := s.findOrCreateForPeriod(ctx, card, period)
		if err != nil {
			return nil, err
		}
		entry := item
		entry.ID = newID("it")
		entry.InvoiceID = invoice.ID
		entry.Owner = owner
		entry.Description = strings.TrimSpace(item.Description)
		entry.Amount = amount
		entry.CreatedAt = now
		entry.UpdatedAt = now
		if installments > 1 {
			entry.Installment = i + 1
			entry.Installments = installments
			entry.Description = fmt.Sprintf("%s (%d/%d)", entry.Description, i+1, installments)
		}
		items = append(items, &entry)
		period = period.Next()
	}

	// All installments commit together: a plan with only some of its
	// periods booked would drift from the purchase amount.
	if err := s.storage.Invoices().AppendItems(ctx, items); err != nil {
		return nil, err
	}

	s.logger.Info().Str("card", cardID).Float64("amount", item.Amount).
		Int("installments", installments).Msg("Purchase booked")
	return items, nil
}

// splitInstallments divides amount into n cent-precise parts, assigning
// the division remainder to the last part.
func splitInstallments(amount float64, n int) []float64 {
	total := decimal.NewFromFloat(amount)
	base := total.Div(decimal.NewFromInt(int64(n))).RoundDown(2)

	out := make([]float64, n)
	running := decimal.Zero
	for i := 0; i < n-1; i++ {
		out[i], _ = base.Float64()
		running = running.Add(base)
	}
	out[n-1], _ = total.Sub(running).Round(2).Float64()
	return out
}

// UpdateLineItem rewrites a line item. When the new purchase date resolves
// to a different billing period the item is re-homed: removed from the
// old invoice and appended to the resolved one, both totals adjusted in
// the same store transaction.
func (s *Service) UpdateLineItem(ctx context.Context, originalInvoiceID, itemID string, fields models.InvoiceItem) error {
	invoice, err := s.GetInvoice(ctx, originalInvoiceID)
	if err != nil {
		return err
	}
	original, err := s.storage.Invoices().GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if original.InvoiceID != originalInvoiceID {
		return models.NotFound("invoice item", itemID)
	}
	if fields.Amount <= 0 {
		return models.Validationf("amount must be positive, got %v", fields.Amount)
	}
	if strings.TrimSpace(fields.Description) == "" {
		return models.Validationf("description is required")
	}
	if fields.PurchaseDate.IsZero() {
		return models.Validationf("purchase date is required")
	}
	if err := models.ValidateSplits(fields.Amount, fields.Splits); err != nil {
		return err
	}
	if original.Installments > 1 {
		return models.Validationf("installment items cannot be edited; delete the plan and re-book it")
	}

	card, err := s.GetCard(ctx, invoice.CardID)
	if err != nil {
		return err
	}

	updated := *original
	updated.Description = strings.TrimSpace(fields.Description)
	updated.Amount = fields.Amount
	updated.Category = fields.Category
	updated.PurchaseDate = fields.PurchaseDate
	updated.Splits = fields.Splits
	updated.UpdatedAt = time.Now()

	newPeriod := ResolvePeriod(fields.PurchaseDate, card.ClosingDay)
	if newPeriod == invoice.Period() {
		return s.storage.Invoices().UpdateItem(ctx, &updated, fields.Amount-original.Amount)
	}

	target, err := s.findOrCreateForPeriod(ctx, card, newPeriod)
	if err != nil {
		return err
	}
	updated.InvoiceID = target.ID
	if err := s.storage.Invoices().MoveItem(ctx, &updated, originalInvoiceID, original.Amount); err != nil {
		return err
	}
	s.logger.Info().Str("item", itemID).Str("from", originalInvoiceID).
		Str("to", target.ID).Msg("Line item moved to new billing period")
	return nil
}

func (s *Service) DeleteLineItem(ctx context.Context, invoiceID, itemID string) error {
	if _, err := s.GetInvoice(ctx, invoiceID); err != nil {
		return err
	}
	item, err := s.storage.Invoices().GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.InvoiceID != invoiceID {
		return models.NotFound("invoice item", itemID)
	}
	return s.storage.Invoices().DeleteItem(ctx, itemID, invoiceID, item.Amount)
}

// PayInvoice settles the full invoice from an account: status flips to
// paid, a settling expense transaction is written, and the account is
// debited by the invoice total, all in one store transaction.
func (s *Service) PayInvoice(ctx context.Context, invoiceID, accountID string, paymentDate time.Time) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	account, err := s.storage.Accounts().Get(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Owner != owner {
		return models.NotFound("account", accountID)
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return &models.ConsistencyError{Reason: fmt.Sprintf("invoice %s is already paid", invoiceID)}
	}

	// Advance payments can drain the total to zero; there is nothing left
	// to settle, so just flip the status.
	if invoice.TotalAmount == 0 {
		if err := s.storage.Invoices().MarkPaid(ctx, invoiceID); err != nil {
			return err
		}
		s.logger.Info().Str("invoice", invoiceID).Msg("Invoice fully covered by advance payments, marked paid")
		return nil
	}

	card, err := s.GetCard(ctx, invoice.CardID)
	if err != nil {
		return err
	}

	now := time.Now()
	settle := &models.Transaction{
		ID:            newID("tx"),
		Owner:         owner,
		Description:   fmt.Sprintf("%s invoice %s", card.Name, invoice.Period().Key()),
		Amount:        invoice.TotalAmount,
		Date:          paymentDate,
		Kind:          models.TransactionKindExpense,
		Category:      "credit_card",
		PaymentMethod: models.PaymentMethodDebit,
		AccountID:     accountID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	debit := interfaces.AccountDelta{AccountID: accountID, Delta: -invoice.TotalAmount}

	if err := s.storage.Invoices().Pay(ctx, invoiceID, settle, debit); err != nil {
		return err
	}
	s.logger.Info().Str("invoice", invoiceID).Str("account", accountID).
		Float64("amount", invoice.TotalAmount).Msg("Invoice paid")
	return nil
}

// MakeAdvancePayment pays part of an open invoice ahead of its due date.
// The amount is validated against the live invoice total inside the store
// transaction, so a concurrent purchase or payment cannot let the total
// go negative.
func (s *Service) MakeAdvancePayment(ctx context.Context, invoiceID string, amount float64, accountID string, date time.Time) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return models.Validationf("advance payment must be positive, got %v", amount)
	}
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return &models.ConsistencyError{Reason: fmt.Sprintf("invoice %s is already paid", invoiceID)}
	}
	if amount > invoice.TotalAmount {
		return models.Validationf("advance payment %.2f exceeds invoice total %.2f", amount, invoice.TotalAmount)
	}
	account, err := s.storage.Accounts().Get(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Owner != owner {
		return models.NotFound("account", accountID)
	}

	card, err := s.GetCard(ctx, invoice.CardID)
	if err != nil {
		return err
	}

	now := time.Now()
	settle := &models.Transaction{
		ID:            newID("tx"),
		Owner:         owner,
		Description:   fmt.Sprintf("Advance payment, %s invoice %s", card.Name, invoice.Period().Key()),
		Amount:        amount,
		Date:          date,
		Kind:          models.TransactionKindExpense,
		Category:      "credit_card",
		PaymentMethod: models.PaymentMethodDebit,
		AccountID:     accountID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	debit := interfaces.AccountDelta{AccountID: accountID, Delta: -amount}

	if err := s.storage.Invoices().AdvancePay(ctx, invoiceID, amount, settle, debit); err != nil {
		return err
	}
	s.logger.Info().Str("invoice", invoiceID).Float64("amount", amount).Msg("Advance payment applied")
	return nil
}

// CloseOverdueInvoices flips every open invoice past its due date to
// closed. Runs opportunistically at session start rather than on a
// schedule.
func (s *Service) CloseOverdueInvoices(ctx context.Context, now time.Time) (int, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.storage.Invoices().CloseOverdue(ctx, owner, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Msg("Overdue invoices closed")
	}
	return n, nil
}
