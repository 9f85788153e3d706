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

// CardStore implements interfaces.CardStore using SurrealDB.
type CardStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewCardStore creates a new CardStore.
func NewCardStore(db *surrealdb.DB, logger *common.Logger) *CardStore {
	return &CardStore{db: db, logger: logger}
}

func (s *CardStore) Create(ctx context.Context, card *models.CreditCard) error {
	if err := models.Validate(card); err != nil {
		return err
	}
	sql := "CREATE $rid CONTENT $card"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID("credit_card", card.ID),
		"card": card,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("card.create", err)
	}
	return nil
}

func (s *CardStore) Get(ctx context.Context, id string) (*models.CreditCard, error) {
	card, err := surrealdb.Select[models.CreditCard](ctx, s.db, surrealmodels.NewRecordID("credit_card", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("credit_card", id)
		}
		return nil, mapQueryErr("card.get", err)
	}
	if card == nil || card.ID == "" {
		return nil, models.NotFound("credit_card", id)
	}
	return card, nil
}

func (s *CardStore) List(ctx context.Context, owner string) ([]*models.CreditCard, error) {
	sql := "SELECT * FROM credit_card WHERE owner = $owner ORDER BY created_at ASC"
	vars := map[string]any{"owner": owner}

	results, err := surrealdb.Query[[]models.CreditCard](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("card.list", err)
	}
	return allResults(results), nil
}

func (s *CardStore) Update(ctx context.Context, card *models.CreditCard) error {
	if err := models.Validate(card); err != nil {
		return err
	}
	card.UpdatedAt = time.Now()
	sql := "UPDATE $rid CONTENT $card"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID("credit_card", card.ID),
		"card": card,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("card.update", err)
	}
	return nil
}

func (s *CardStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.CreditCard](ctx, s.db, surrealmodels.NewRecordID("credit_card", id))
	if err != nil && !isNotFoundError(err) {
		return mapQueryErr("card.delete", err)
	}
	return nil
}

var _ interfaces.CardStore = (*CardStore)(nil)
