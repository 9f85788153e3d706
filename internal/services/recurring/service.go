// Package recurring materializes recurring-transaction definitions into
// concrete occurrences, at most one per definition per calendar month.
package recurring

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

var _ interfaces.RecurringService = (*Service)(nil)

// Service implements RecurringService. Occurrences route to the ledger
// (account path) or to the invoice periodizer (credit-card path)
// depending on the definition's payment method.
type Service struct {
	storage  interfaces.StorageManager
	invoices interfaces.InvoiceService
	logger   *common.Logger
}

// NewService creates a new recurring service
func NewService(storage interfaces.StorageManager, invoices interfaces.InvoiceService, logger *common.Logger) *Service {
	return &Service{storage: storage, invoices: invoices, logger: logger}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

func (s *Service) Create(ctx context.Context, def *models.RecurringTransaction) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	if err := validateDefinition(def); err != nil {
		return err
	}

	now := time.Now()
	if def.ID == "" {
		def.ID = newID("rc")
	}
	def.Owner = owner
	def.Description = strings.TrimSpace(def.Description)
	def.LastProcessed = nil
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.storage.Recurring().Create(ctx, def); err != nil {
		return err
	}
	s.logger.Info().Str("recurring", def.ID).Int("day", def.DayOfMonth).Msg("Recurring definition created")
	return nil
}

func validateDefinition(def *models.RecurringTransaction) error {
	if strings.TrimSpace(def.Description) == "" {
		return models.Validationf("description is required")
	}
	if def.Amount <= 0 {
		return models.Validationf("amount must be positive, got %v", def.Amount)
	}
	if def.DayOfMonth < 1 || def.DayOfMonth > 28 {
		return models.Validationf("day of month must be between 1 and 28, got %d", def.DayOfMonth)
	}
	if def.Kind != models.TransactionKindRevenue && def.Kind != models.TransactionKindExpense {
		return models.Validationf("recurring kind must be revenue or expense, got %q", def.Kind)
	}
	if def.PaymentMethod == models.PaymentMethodCreditCard {
		if def.CardID == "" {
			return models.Validationf("credit-card recurring definitions require a card reference")
		}
		if def.Kind != models.TransactionKindExpense {
			return models.Validationf("credit-card recurring definitions must be expenses")
		}
	} else if def.AccountID == "" {
		return models.Validationf("recurring definitions require an account reference")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.RecurringTransaction, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	def, err := s.storage.Recurring().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.Owner != owner {
		return nil, models.NotFound("recurring definition", id)
	}
	return def, nil
}

func (s *Service) List(ctx context.Context) ([]*models.RecurringTransaction, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.Recurring().List(ctx, owner)
}

func (s *Service) Update(ctx context.Context, def *models.RecurringTransaction) error {
	existing, err := s.Get(ctx, def.ID)
	if err != nil {
		return err
	}
	if err := validateDefinition(def); err != nil {
		return err
	}
	def.Owner = existing.Owner
	def.LastProcessed = existing.LastProcessed
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()
	return s.storage.Recurring().Update(ctx, def)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.storage.Recurring().Delete(ctx, id)
}

// ProcessDue materializes every definition whose day has been reached and
// that has not run this month, and returns how many materialized. The
// occurrence and the last_processed stamp commit in one store transaction
// per definition, so an interrupted run resumes cleanly: processed
// definitions are stamped, unprocessed ones are still due.
func (s *Service) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	defs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, def := range defs {
		if !def.DueAt(now) {
			continue
		}
		if err := s.materialize(ctx, def, now); err != nil {
			if models.IsConsistency(err) {
				// another session stamped this month first
				s.logger.Debug().Str("recurring", def.ID).Msg("Definition already processed this month")
				continue
			}
			return count, err
		}
		count++
	}

	if count > 0 {
		s.logger.Info().Int("count", count).Msg("Recurring definitions materialized")
	}
	return count, nil
}

func (s *Service) materialize(ctx context.Context, def *models.RecurringTransaction, now time.Time) error {
	occurrenceDate := time.Date(now.Year(), now.Month(), def.DayOfMonth, 0, 0, 0, 0, time.UTC)
	created := time.Now()

	if def.PaymentMethod == models.PaymentMethodCreditCard {
		invoice, err := s.invoices.FindOrCreateInvoice(ctx, def.CardID, occurrenceDate)
		if err != nil {
			return err
		}
		item := &models.InvoiceItem{
			ID:           newID("it"),
			InvoiceID:    invoice.ID,
			Owner:        def.Owner,
			Description:  def.Description,
			Amount:       def.Amount,
			Category:     def.Category,
			PurchaseDate: occurrenceDate,
			CreatedAt:    created,
			UpdatedAt:    created,
		}
		return s.storage.Recurring().MaterializeToInvoice(ctx, def.ID, now, item)
	}

	tx := &models.Transaction{
		ID:            newID("tx"),
		Owner:         def.Owner,
		Description:   def.Description,
		Amount:        def.Amount,
		Date:          occurrenceDate,
		Kind:          def.Kind,
		Category:      def.Category,
		PaymentMethod: def.PaymentMethod,
		AccountID:     def.AccountID,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	delta := interfaces.AccountDelta{AccountID: def.AccountID, Delta: tx.SignedAmount()}
	return s.storage.Recurring().MaterializeToAccount(ctx, def.ID, now, tx, delta)
}
