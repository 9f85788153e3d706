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

// BudgetStore implements interfaces.BudgetStore using SurrealDB.
type BudgetStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewBudgetStore creates a new BudgetStore.
func NewBudgetStore(db *surrealdb.DB, logger *common.Logger) *BudgetStore {
	return &BudgetStore{db: db, logger: logger}
}

func (s *BudgetStore) Upsert(ctx context.Context, b *models.Budget) error {
	if err := models.Validate(b); err != nil {
		return err
	}
	b.UpdatedAt = time.Now()
	sql := "UPSERT $rid CONTENT $budget"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("budget", b.ID),
		"budget": b,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("budget.upsert", err)
	}
	return nil
}

func (s *BudgetStore) Get(ctx context.Context, id string) (*models.Budget, error) {
	b, err := surrealdb.Select[models.Budget](ctx, s.db, surrealmodels.NewRecordID("budget", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("budget", id)
		}
		return nil, mapQueryErr("budget.get", err)
	}
	if b == nil || b.ID == "" {
		return nil, models.NotFound("budget", id)
	}
	return b, nil
}

func (s *BudgetStore) List(ctx context.Context, owner string, year int, month time.Month) ([]*models.Budget, error) {
	sql := "SELECT * FROM budget WHERE owner = $owner AND year = $year AND month = $month ORDER BY category ASC"
	vars := map[string]any{
		"owner": owner,
		"year":  year,
		"month": int(month),
	}

	results, err := surrealdb.Query[[]models.Budget](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("budget.list", err)
	}
	return allResults(results), nil
}

func (s *BudgetStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.Budget](ctx, s.db, surrealmodels.NewRecordID("budget", id))
	if err != nil && !isNotFoundError(err) {
		return mapQueryErr("budget.delete", err)
	}
	return nil
}

var _ interfaces.BudgetStore = (*BudgetStore)(nil)

// CategoryStore implements interfaces.CategoryStore using SurrealDB.
type CategoryStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewCategoryStore creates a new CategoryStore.
func NewCategoryStore(db *surrealdb.DB, logger *common.Logger) *CategoryStore {
	return &CategoryStore{db: db, logger: logger}
}

func (s *CategoryStore) Create(ctx context.Context, c *models.Category) error {
	if err := models.Validate(c); err != nil {
		return err
	}
	sql := "CREATE $rid CONTENT $category"
	vars := map[string]any{
		"rid":      surrealmodels.NewRecordID("category", c.ID),
		"category": c,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("category.create", err)
	}
	return nil
}

func (s *CategoryStore) List(ctx context.Context, owner string) ([]*models.Category, error) {
	sql := "SELECT * FROM category WHERE owner = $owner ORDER BY name ASC"
	vars := map[string]any{"owner": owner}

	results, err := surrealdb.Query[[]models.Category](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("category.list", err)
	}
	return allResults(results), nil
}

func (s *CategoryStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.Category](ctx, s.db, surrealmodels.NewRecordID("category", id))
	if err != nil && !isNotFoundError(err) {
		return mapQueryErr("category.delete", err)
	}
	return nil
}

var _ interfaces.CategoryStore = (*CategoryStore)(nil)
