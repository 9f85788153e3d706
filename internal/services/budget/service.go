// Package budget tracks per-category monthly spending limits. Spent
// amounts are aggregated from committed transactions at read time; the
// budget itself carries no write-path invariant.
package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

var _ interfaces.BudgetService = (*Service)(nil)

// Service implements BudgetService
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a new budget service
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// budgetID derives the deterministic id for one (owner, category, period)
// triple, so setting the same budget twice upserts rather than duplicates.
func budgetID(owner, category string, year int, month time.Month) string {
	return fmt.Sprintf("%s_%s_%04d-%02d", owner, category, year, int(month))
}

// Set creates or replaces the budget for the category and month.
func (s *Service) Set(ctx context.Context, b *models.Budget) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(b.Category) == "" {
		return models.Validationf("budget category is required")
	}
	if b.Limit <= 0 {
		return models.Validationf("budget limit must be positive, got %v", b.Limit)
	}
	if b.Month < time.January || b.Month > time.December {
		return models.Validationf("invalid month %d", b.Month)
	}
	if b.Year < 1970 {
		return models.Validationf("invalid year %d", b.Year)
	}

	now := time.Now()
	b.ID = budgetID(owner, b.Category, b.Year, b.Month)
	b.Owner = owner
	b.Category = strings.TrimSpace(b.Category)
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.storage.Budgets().Upsert(ctx, b); err != nil {
		return err
	}
	s.logger.Info().Str("budget", b.ID).Float64("limit", b.Limit).Msg("Budget set")
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	b, err := s.storage.Budgets().Get(ctx, id)
	if err != nil {
		return err
	}
	if b.Owner != owner {
		return models.NotFound("budget", id)
	}
	return s.storage.Budgets().Delete(ctx, id)
}

// Status joins each budget of the month with the amount actually spent in
// its category.
func (s *Service) Status(ctx context.Context, year int, month time.Month) ([]*models.BudgetStatus, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	budgets, err := s.storage.Budgets().List(ctx, owner, year, month)
	if err != nil {
		return nil, err
	}

	out := make([]*models.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent, err := s.storage.Transactions().SpentByCategory(ctx, owner, b.Category, year, month)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.BudgetStatus{
			Budget:    *b,
			Spent:     spent,
			Remaining: b.Limit - spent,
		})
	}
	return out, nil
}

// ListCategories returns the owner's categories, seeding the default set
// on first use.
func (s *Service) ListCategories(ctx context.Context) ([]*models.Category, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.storage.Categories().List(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(categories) > 0 {
		return categories, nil
	}

	for _, def := range models.DefaultCategories() {
		c := &models.Category{
			ID:        newID("cat"),
			Owner:     owner,
			Name:      def.Name,
			Kind:      def.Kind,
			CreatedAt: time.Now(),
		}
		if err := s.storage.Categories().Create(ctx, c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	s.logger.Info().Str("owner", owner).Int("count", len(categories)).Msg("Default categories seeded")
	return categories, nil
}

func (s *Service) AddCategory(ctx context.Context, c *models.Category) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	name := strings.ToLower(strings.TrimSpace(c.Name))
	if name == "" {
		return models.Validationf("category name is required")
	}
	if c.Kind != "revenue" && c.Kind != "expense" {
		return models.Validationf("category kind must be revenue or expense, got %q", c.Kind)
	}
	existing, err := s.storage.Categories().List(ctx, owner)
	if err != nil {
		return err
	}
	for _, cat := range existing {
		if cat.Name == name {
			return models.Validationf("category %q already exists", name)
		}
	}

	c.ID = newID("cat")
	c.Owner = owner
	c.Name = name
	c.CreatedAt = time.Now()
	return s.storage.Categories().Create(ctx, c)
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	categories, err := s.storage.Categories().List(ctx, owner)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == id {
			return s.storage.Categories().Delete(ctx, id)
		}
	}
	return models.NotFound("category", id)
}
