// Package ledger is the single choke point for account balance mutation.
// Every transaction, transfer, invoice settlement, and investment cash
// effect applies its balance delta through the operations here.
package ledger

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

// Compile-time interface check
var _ interfaces.LedgerService = (*Service)(nil)

// Service implements LedgerService
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a new ledger service
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// CreateAccount registers an account with its opening balance.
func (s *Service) CreateAccount(ctx context.Context, account *models.Account) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(account.Name) == "" {
		return models.Validationf("account name is required")
	}
	if !models.ValidAccountType(account.Type) {
		return models.Validationf("invalid account type %q", account.Type)
	}

	now := time.Now()
	if account.ID == "" {
		account.ID = newID("ac")
	}
	account.Owner = owner
	account.Name = strings.TrimSpace(account.Name)
	account.CurrentBalance = account.InitialBalance
	account.Status = models.AccountStatusActive
	account.CreatedAt = now
	account.UpdatedAt = now

	if err := s.storage.Accounts().Create(ctx, account); err != nil {
		return err
	}

	s.logger.Info().Str("account", account.ID).Str("owner", owner).
		Float64("initial_balance", account.InitialBalance).Msg("Account created")
	return nil
}

// GetAccount fetches one account, enforcing ownership.
func (s *Service) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	account, err := s.storage.Accounts().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Owner != owner {
		return nil, models.NotFound("account", id)
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.Accounts().List(ctx, owner)
}

func (s *Service) UpdateAccount(ctx context.Context, id, name string, accountType models.AccountType) error {
	if _, err := s.GetAccount(ctx, id); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return models.Validationf("account name is required")
	}
	if !models.ValidAccountType(accountType) {
		return models.Validationf("invalid account type %q", accountType)
	}
	return s.storage.Accounts().UpdateMeta(ctx, id, strings.TrimSpace(name), accountType)
}

// ArchiveAccount is the default way to retire an account: the document and
// its history stay.
func (s *Service) ArchiveAccount(ctx context.Context, id string) error {
	if _, err := s.GetAccount(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Accounts().SetStatus(ctx, id, models.AccountStatusArchived); err != nil {
		return err
	}
	s.logger.Info().Str("account", id).Msg("Account archived")
	return nil
}

// DeleteAccount hard-deletes. A non-zero balance requires the caller to
// confirm explicitly.
func (s *Service) DeleteAccount(ctx context.Context, id string, confirm bool) error {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if account.CurrentBalance != 0 && !confirm {
		return models.Validationf("account %s holds %.2f; deletion requires explicit confirmation", id, account.CurrentBalance)
	}
	if err := s.storage.Accounts().Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Warn().Str("account", id).Float64("balance", account.CurrentBalance).Msg("Account hard-deleted")
	return nil
}

// ApplyTransaction writes the transaction and increments the target
// account's balance by its signed amount. The increment is blind: the
// delta is known up front, so no read-modify-write window exists.
func (s *Service) ApplyTransaction(ctx context.Context, tx *models.Transaction) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	if tx.Amount <= 0 {
		return models.Validationf("amount must be positive, got %v", tx.Amount)
	}
	if tx.Kind != models.TransactionKindRevenue && tx.Kind != models.TransactionKindExpense {
		return models.Validationf("transaction kind must be revenue or expense, got %q", tx.Kind)
	}
	if tx.AccountID == "" {
		return models.Validationf("account reference is required; card purchases go through invoices")
	}
	if err := models.ValidateSplits(tx.Amount, tx.Splits); err != nil {
		return err
	}

	account, err := s.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return err
	}
	if !account.IsActive() {
		return models.Validationf("account %s is archived", account.ID)
	}

	now := time.Now()
	if tx.ID == "" {
		tx.ID = newID("tx")
	}
	tx.Owner = owner
	tx.Description = strings.TrimSpace(tx.Description)
	tx.CreatedAt = now
	tx.UpdatedAt = now

	delta := interfaces.AccountDelta{AccountID: tx.AccountID, Delta: tx.SignedAmount()}
	if err := s.storage.Transactions().Apply(ctx, tx, delta); err != nil {
		return err
	}

	s.logger.Info().Str("transaction", tx.ID).Str("account", tx.AccountID).
		Str("kind", string(tx.Kind)).Float64("amount", tx.Amount).Msg("Transaction applied")
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := s.storage.Transactions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Owner != owner {
		return nil, models.NotFound("transaction", id)
	}
	return tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, q interfaces.TransactionQuery) ([]*models.Transaction, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.Transactions().List(ctx, owner, q)
}

// UpdateTransaction reverses the original delta and applies the new one
// together with the document rewrite in a single store transaction. Doing
// this as two separate writes would lose one of two concurrent updates.
func (s *Service) UpdateTransaction(ctx context.Context, id string, fields models.Transaction) error {
	original, err := s.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if original.Kind == models.TransactionKindTransfer {
		return models.Validationf("transfer legs cannot be edited; delete the transfer and re-create it")
	}
	if original.AccountID == "" {
		return models.Validationf("transaction %s has no account; update it through its invoice", id)
	}
	if fields.Amount <= 0 {
		return models.Validationf("amount must be positive, got %v", fields.Amount)
	}
	if fields.Kind != models.TransactionKindRevenue && fields.Kind != models.TransactionKindExpense {
		return models.Validationf("transaction kind must be revenue or expense, got %q", fields.Kind)
	}
	if err := models.ValidateSplits(fields.Amount, fields.Splits); err != nil {
		return err
	}

	targetAccount := fields.AccountID
	if targetAccount == "" {
		targetAccount = original.AccountID
	}
	if targetAccount != original.AccountID {
		account, err := s.GetAccount(ctx, targetAccount)
		if err != nil {
			return err
		}
		if !account.IsActive() {
			return models.Validationf("account %s is archived", account.ID)
		}
	}

	updated := *original
	updated.Description = strings.TrimSpace(fields.Description)
	updated.Amount = fields.Amount
	updated.Date = fields.Date
	updated.Kind = fields.Kind
	updated.Category = fields.Category
	updated.Subcategory = fields.Subcategory
	updated.PaymentMethod = fields.PaymentMethod
	updated.AccountID = targetAccount
	updated.Tags = fields.Tags
	updated.Splits = fields.Splits
	updated.UpdatedAt = time.Now()

	reversal := interfaces.AccountDelta{AccountID: original.AccountID, Delta: -original.SignedAmount()}
	application := interfaces.AccountDelta{AccountID: targetAccount, Delta: updated.SignedAmount()}

	if err := s.storage.Transactions().Rewrite(ctx, &updated, reversal, application); err != nil {
		return err
	}

	s.logger.Info().Str("transaction", id).
		Float64("old_amount", original.Amount).Float64("new_amount", updated.Amount).
		Msg("Transaction updated")
	return nil
}

// DeleteTransaction removes the transaction via the inverse of its
// original delta. Transactions without an account reference (pending card
// charges) are deleted through the invoice periodizer instead.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if tx.AccountID == "" {
		return models.Validationf("transaction %s has no account; delete it through its invoice", id)
	}

	// Deleting one leg of a transfer removes both legs; a lone leg would
	// leave the two accounts out of balance with each other.
	if tx.Kind == models.TransactionKindTransfer && tx.LinkedID != "" {
		linked, err := s.GetTransaction(ctx, tx.LinkedID)
		if err != nil && !models.IsNotFound(err) {
			return err
		}
		if linked != nil {
			out, in := tx, linked
			if tx.Incoming {
				out, in = linked, tx
			}
			debitRev := interfaces.AccountDelta{AccountID: out.AccountID, Delta: -out.SignedAmount()}
			creditRev := interfaces.AccountDelta{AccountID: in.AccountID, Delta: -in.SignedAmount()}
			if err := s.storage.Transactions().DeletePairApplied(ctx, out.ID, in.ID, debitRev, creditRev); err != nil {
				return err
			}
			s.logger.Info().Str("out", out.ID).Str("in", in.ID).Msg("Transfer deleted")
			return nil
		}
	}

	reversal := interfaces.AccountDelta{AccountID: tx.AccountID, Delta: -tx.SignedAmount()}
	if err := s.storage.Transactions().DeleteApplied(ctx, id, reversal); err != nil {
		return err
	}

	s.logger.Info().Str("transaction", id).Str("account", tx.AccountID).
		Float64("reversed", reversal.Delta).Msg("Transaction deleted")
	return nil
}

// TransferFunds debits the source and credits the destination in one
// store transaction. Same-account transfers are rejected before any write.
func (s *Service) TransferFunds(ctx context.Context, fromAccountID, toAccountID string, amount float64, date time.Time) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return models.Validationf("transfer amount must be positive, got %v", amount)
	}
	if fromAccountID == toAccountID {
		return models.Validationf("source and destination accounts must differ")
	}

	from, err := s.GetAccount(ctx, fromAccountID)
	if err != nil {
		return err
	}
	to, err := s.GetAccount(ctx, toAccountID)
	if err != nil {
		return err
	}

	now := time.Now()
	outID := newID("tx")
	inID := newID("tx")

	out := &models.Transaction{
		ID:          outID,
		Owner:       owner,
		Description: "Transfer to " + to.Name,
		Amount:      amount,
		Date:        date,
		Kind:        models.TransactionKindTransfer,
		AccountID:   fromAccountID,
		LinkedID:    inID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	in := &models.Transaction{
		ID:          inID,
		Owner:       owner,
		Description: "Transfer from " + from.Name,
		Amount:      amount,
		Date:        date,
		Kind:        models.TransactionKindTransfer,
		AccountID:   toAccountID,
		LinkedID:    outID,
		Incoming:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	debit := interfaces.AccountDelta{AccountID: fromAccountID, Delta: -amount}
	credit := interfaces.AccountDelta{AccountID: toAccountID, Delta: amount}

	if err := s.storage.Transactions().ApplyPair(ctx, out, in, debit, credit); err != nil {
		return err
	}

	s.logger.Info().Str("from", fromAccountID).Str("to", toAccountID).
		Float64("amount", amount).Msg("Funds transferred")
	return nil
}

// VerifyBalance reconciles the materialized balance against the signed
// transaction sum. Drift within a cent is treated as consistent.
func (s *Service) VerifyBalance(ctx context.Context, accountID string) (*models.BalanceCheck, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sum, err := s.storage.Transactions().SumSignedByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	expected := account.InitialBalance + sum
	drift := account.CurrentBalance - expected
	check := &models.BalanceCheck{
		AccountID:  accountID,
		Expected:   expected,
		Actual:     account.CurrentBalance,
		Drift:      drift,
		Consistent: math.Abs(drift) < 0.005,
	}
	if !check.Consistent {
		s.logger.Warn().Str("account", accountID).Float64("drift", drift).
			Msg("Account balance drifted from transaction sum")
	}
	return check, nil
}
