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

// AccountStore implements interfaces.AccountStore using SurrealDB.
type AccountStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(db *surrealdb.DB, logger *common.Logger) *AccountStore {
	return &AccountStore{db: db, logger: logger}
}

func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	if err := models.Validate(account); err != nil {
		return err
	}
	sql := "CREATE $rid CONTENT $account"
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID("account", account.ID),
		"account": account,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("account.create", err)
	}
	return nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (*models.Account, error) {
	account, err := surrealdb.Select[models.Account](ctx, s.db, surrealmodels.NewRecordID("account", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("account", id)
		}
		return nil, mapQueryErr("account.get", err)
	}
	if account == nil || account.ID == "" {
		return nil, models.NotFound("account", id)
	}
	return account, nil
}

func (s *AccountStore) List(ctx context.Context, owner string) ([]*models.Account, error) {
	sql := "SELECT * FROM account WHERE owner = $owner ORDER BY created_at ASC"
	vars := map[string]any{"owner": owner}

	results, err := surrealdb.Query[[]models.Account](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("account.list", err)
	}
	return allResults(results), nil
}

func (s *AccountStore) UpdateMeta(ctx context.Context, id, name string, accountType models.AccountType) error {
	sql := "UPDATE $rid SET name = $name, type = $type, updated_at = $now"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID("account", id),
		"name": name,
		"type": accountType,
		"now":  time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("account.update", err)
	}
	return nil
}

func (s *AccountStore) SetStatus(ctx context.Context, id string, status models.AccountStatus) error {
	sql := "UPDATE $rid SET status = $status, updated_at = $now"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("account", id),
		"status": status,
		"now":    time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("account.setstatus", err)
	}
	return nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.Account](ctx, s.db, surrealmodels.NewRecordID("account", id))
	if err != nil && !isNotFoundError(err) {
		return mapQueryErr("account.delete", err)
	}
	return nil
}

// IncrementBalance applies a blind atomic increment to current_balance.
// Single statement, single document: no interleaving writer can be lost.
func (s *AccountStore) IncrementBalance(ctx context.Context, id string, delta float64) error {
	sql := "UPDATE $rid SET current_balance += $delta, updated_at = $now"
	vars := map[string]any{
		"rid":   surrealmodels.NewRecordID("account", id),
		"delta": delta,
		"now":   time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("account.increment", err)
	}
	return nil
}

var _ interfaces.AccountStore = (*AccountStore)(nil)
