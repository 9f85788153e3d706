// Package investment maintains asset positions from an append-only
// movement log: quantity and weighted-average cost fold forward on each
// buy and sell, and rebuild by full replay when a movement is deleted.
package investment

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

var _ interfaces.InvestmentService = (*Service)(nil)

// applyRetries bounds how often an append or replay write is retried
// after losing a seq-guard race to a concurrent writer.
const applyRetries = 3

// Service implements InvestmentService
type Service struct {
	storage interfaces.StorageManager
	quotes  interfaces.QuoteClient
	logger  *common.Logger
}

// NewService creates a new investment service. quotes may be nil; only
// Valuation needs it.
func NewService(storage interfaces.StorageManager, quotes interfaces.QuoteClient, logger *common.Logger) *Service {
	return &Service{storage: storage, quotes: quotes, logger: logger}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

func (s *Service) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		return models.Validationf("portfolio name is required")
	}
	if p.OwnershipType != models.OwnershipOwn && p.OwnershipType != models.OwnershipThirdParty {
		return models.Validationf("invalid ownership type %q", p.OwnershipType)
	}
	if p.OwnershipType == models.OwnershipOwn {
		if p.AccountID == "" {
			return models.Validationf("own portfolios require a linked investment account")
		}
		account, err := s.storage.Accounts().Get(ctx, p.AccountID)
		if err != nil {
			return err
		}
		if account.Owner != owner {
			return models.NotFound("account", p.AccountID)
		}
		if account.Type != models.AccountTypeInvestment {
			return models.Validationf("linked account %s must be an investment account", p.AccountID)
		}
	}

	now := time.Now()
	if p.ID == "" {
		p.ID = newID("pf")
	}
	p.Owner = owner
	p.Name = strings.TrimSpace(p.Name)
	p.TotalInvested = 0
	p.CurrentValue = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.storage.Portfolios().Create(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Str("portfolio", p.ID).Str("ownership", string(p.OwnershipType)).Msg("Portfolio created")
	return nil
}

func (s *Service) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.storage.Portfolios().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Owner != owner {
		return nil, models.NotFound("portfolio", id)
	}
	return p, nil
}

func (s *Service) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.Portfolios().List(ctx, owner)
}

func (s *Service) DeletePortfolio(ctx context.Context, id string) error {
	if _, err := s.GetPortfolio(ctx, id); err != nil {
		return err
	}
	return s.storage.Portfolios().Delete(ctx, id)
}

func (s *Service) ListAssets(ctx context.Context, portfolioID string) ([]*models.Asset, error) {
	if _, err := s.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.storage.Portfolios().ListAssets(ctx, portfolioID)
}

func (s *Service) ListMovements(ctx context.Context, portfolioID, assetID string) ([]*models.Movement, error) {
	if _, err := s.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	asset, err := s.storage.Portfolios().GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.PortfolioID != portfolioID {
		return nil, models.NotFound("asset", assetID)
	}
	return s.storage.Portfolios().ListMovements(ctx, assetID)
}

// RecordMovement appends a buy or sell and folds it into the asset's
// aggregates. The write carries the sequence the asset was read at; a
// concurrent append moves it and the fold is recomputed from the fresh
// asset before retrying.
func (s *Service) RecordMovement(ctx context.Context, portfolioID, ticker string, mv models.Movement) (*models.Asset, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	portfolio, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if mv.Kind != models.MovementBuy && mv.Kind != models.MovementSell {
		return nil, models.Validationf("movement kind must be buy or sell, got %q", mv.Kind)
	}
	if mv.Quantity <= 0 {
		return nil, models.Validationf("movement quantity must be positive, got %v", mv.Quantity)
	}
	if mv.PricePerUnit < 0 {
		return nil, models.Validationf("price per unit cannot be negative, got %v", mv.PricePerUnit)
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, models.Validationf("ticker is required")
	}
	if mv.Date.IsZero() {
		mv.Date = time.Now()
	}

	asset, err := s.findOrCreateAsset(ctx, owner, portfolioID, ticker)
	if err != nil {
		return nil, err
	}

	totalCost := mustFloat(decimal.NewFromFloat(mv.Quantity).Mul(decimal.NewFromFloat(mv.PricePerUnit)))

	var lastErr error
	for attempt := 0; attempt < applyRetries; attempt++ {
		position := Position{
			Quantity:      asset.Quantity,
			AveragePrice:  asset.AveragePrice,
			TotalInvested: asset.TotalInvested,
		}
		var next Position
		switch mv.Kind {
		case models.MovementBuy:
			next = applyBuy(position, mv.Quantity, mv.PricePerUnit)
		case models.MovementSell:
			if mv.Quantity > position.Quantity {
				return nil, models.Validationf("cannot sell %v units of %s, only %v held", mv.Quantity, ticker, position.Quantity)
			}
			next = applySell(position, mv.Quantity)
		}

		entry := mv
		entry.ID = newID("mv")
		entry.AssetID = asset.ID
		entry.PortfolioID = portfolioID
		entry.Owner = owner
		entry.TotalCost = totalCost
		entry.Seq = asset.NextSeq
		entry.CreatedAt = time.Now()

		var cashTx *models.Transaction
		var delta *interfaces.AccountDelta
		if portfolio.HasCashEffect() && totalCost > 0 {
			cashTx = s.cashEffect(owner, portfolio, &entry, ticker)
			entry.TransactionID = cashTx.ID
			delta = &interfaces.AccountDelta{AccountID: portfolio.AccountID, Delta: cashTx.SignedAmount()}
		}

		updated := *asset
		updated.Quantity = next.Quantity
		updated.AveragePrice = next.AveragePrice
		updated.TotalInvested = next.TotalInvested
		updated.NextSeq = asset.NextSeq + 1

		err := s.storage.Portfolios().ApplyMovement(ctx, &entry, &updated, cashTx, delta)
		if err == nil {
			s.logger.Info().Str("asset", asset.ID).Str("kind", string(mv.Kind)).
				Float64("quantity", mv.Quantity).Float64("avg_price", updated.AveragePrice).
				Msg("Movement recorded")
			return &updated, nil
		}
		if !models.IsConsistency(err) {
			return nil, err
		}
		lastErr = err
		asset, err = s.storage.Portfolios().GetAsset(ctx, asset.ID)
		if err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// cashEffect builds the ledger transaction an own-portfolio movement
// carries: buys debit the linked account, sells credit it.
func (s *Service) cashEffect(owner string, portfolio *models.Portfolio, mv *models.Movement, ticker string) *models.Transaction {
	kind := models.TransactionKindExpense
	verb := "Buy"
	if mv.Kind == models.MovementSell {
		kind = models.TransactionKindRevenue
		verb = "Sell"
	}
	now := time.Now()
	return &models.Transaction{
		ID:          newID("tx"),
		Owner:       owner,
		Description: fmt.Sprintf("%s %v %s @ %v", verb, mv.Quantity, ticker, mv.PricePerUnit),
		Amount:      mv.TotalCost,
		Date:        mv.Date,
		Kind:        kind,
		Category:    "investments",
		AccountID:   portfolio.AccountID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Service) findOrCreateAsset(ctx context.Context, owner, portfolioID, ticker string) (*models.Asset, error) {
	asset, err := s.storage.Portfolios().GetAssetByTicker(ctx, portfolioID, ticker)
	if err == nil {
		return asset, nil
	}
	if !models.IsNotFound(err) {
		return nil, err
	}

	now := time.Now()
	asset = &models.Asset{
		ID:          newID("as"),
		PortfolioID: portfolioID,
		Owner:       owner,
		Ticker:      ticker,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.storage.Portfolios().CreateAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// RecordDividend books a dividend: a movement carrying the quantity held
// at the payment date (replayed from the log, so late-entered history
// still snapshots correctly) plus, for own portfolios, a revenue
// transaction on the linked account.
func (s *Service) RecordDividend(ctx context.Context, portfolioID, ticker string, amount float64, paymentDate time.Time) (*models.Movement, error) {
	owner, err := common.ResolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	portfolio, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, models.Validationf("dividend amount must be positive, got %v", amount)
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	asset, err := s.storage.Portfolios().GetAssetByTicker(ctx, portfolioID, ticker)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < applyRetries; attempt++ {
		movements, err := s.storage.Portfolios().ListMovements(ctx, asset.ID)
		if err != nil {
			return nil, err
		}
		heldQty := QuantityAsOf(movements, paymentDate)

		perUnit := 0.0
		if heldQty > 0 {
			perUnit = mustFloat(decimal.NewFromFloat(amount).Div(decimal.NewFromFloat(heldQty)))
		}

		mv := &models.Movement{
			ID:           newID("mv"),
			AssetID:      asset.ID,
			PortfolioID:  portfolioID,
			Owner:        owner,
			Kind:         models.MovementDividend,
			Quantity:     heldQty,
			PricePerUnit: perUnit,
			TotalCost:    amount,
			Date:         paymentDate,
			Seq:          asset.NextSeq,
			CreatedAt:    time.Now(),
		}

		var cashTx *models.Transaction
		var delta *interfaces.AccountDelta
		if portfolio.HasCashEffect() {
			now := time.Now()
			cashTx = &models.Transaction{
				ID:          newID("tx"),
				Owner:       owner,
				Description: fmt.Sprintf("Dividend %s", ticker),
				Amount:      amount,
				Date:        paymentDate,
				Kind:        models.TransactionKindRevenue,
				Category:    "investments",
				AccountID:   portfolio.AccountID,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			mv.TransactionID = cashTx.ID
			delta = &interfaces.AccountDelta{AccountID: portfolio.AccountID, Delta: amount}
		}

		// aggregates unchanged; only the sequence advances
		updated := *asset
		updated.NextSeq = asset.NextSeq + 1

		err = s.storage.Portfolios().ApplyMovement(ctx, mv, &updated, cashTx, delta)
		if err == nil {
			s.logger.Info().Str("asset", asset.ID).Float64("amount", amount).
				Float64("held_quantity", heldQty).Msg("Dividend recorded")
			return mv, nil
		}
		if !models.IsConsistency(err) {
			return nil, err
		}
		lastErr = err
		asset, err = s.storage.Portfolios().GetAsset(ctx, asset.ID)
		if err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// DeleteMovementAndRecalculate removes a movement, reverses its cash
// effect, and rebuilds the asset's aggregates by replaying what remains
// of the log. When the linked transaction's account cannot be read for
// permission reasons, the movement and transaction are dropped without a
// balance reversal; reconciliation surfaces the drift later.
func (s *Service) DeleteMovementAndRecalculate(ctx context.Context, portfolioID, assetID, movementID string) (*models.Asset, error) {
	if _, err := s.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	asset, err := s.storage.Portfolios().GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.PortfolioID != portfolioID {
		return nil, models.NotFound("asset", assetID)
	}
	mv, err := s.storage.Portfolios().GetMovement(ctx, movementID)
	if err != nil {
		return nil, err
	}
	if mv.AssetID != assetID {
		return nil, models.NotFound("movement", movementID)
	}

	if mv.TransactionID != "" {
		tx, err := s.storage.Transactions().Get(ctx, mv.TransactionID)
		switch {
		case err == nil:
			reversal := &interfaces.AccountDelta{AccountID: tx.AccountID, Delta: -tx.SignedAmount()}
			if err := s.storage.Portfolios().DeleteMovementCascade(ctx, assetID, movementID, tx.ID, reversal); err != nil {
				return nil, err
			}
		case models.IsNotFound(err):
			if err := s.storage.Portfolios().DeleteMovementCascade(ctx, assetID, movementID, "", nil); err != nil {
				return nil, err
			}
		case models.IsPermissionDenied(err):
			s.logger.Warn().Str("movement", movementID).Str("transaction", mv.TransactionID).
				Msg("Linked transaction unreadable; deleting movement without balance reversal")
			if err := s.storage.Portfolios().DeleteMovementOnly(ctx, assetID, movementID, mv.TransactionID); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	} else {
		if err := s.storage.Portfolios().DeleteMovementCascade(ctx, assetID, movementID, "", nil); err != nil {
			return nil, err
		}
	}

	return s.recalculate(ctx, assetID)
}

// recalculate replays the remaining log and writes the result back,
// guarded on the sequence the snapshot was read at.
func (s *Service) recalculate(ctx context.Context, assetID string) (*models.Asset, error) {
	var lastErr error
	for attempt := 0; attempt < applyRetries; attempt++ {
		asset, err := s.storage.Portfolios().GetAsset(ctx, assetID)
		if err != nil {
			return nil, err
		}
		movements, err := s.storage.Portfolios().ListMovements(ctx, assetID)
		if err != nil {
			return nil, err
		}

		position := Replay(movements)
		updated := *asset
		updated.Quantity = position.Quantity
		updated.AveragePrice = position.AveragePrice
		updated.TotalInvested = position.TotalInvested

		err = s.storage.Portfolios().ReplaceAssetAggregates(ctx, &updated, asset.NextSeq)
		if err == nil {
			s.logger.Info().Str("asset", assetID).Int("movements", len(movements)).
				Float64("quantity", updated.Quantity).Msg("Asset rebuilt from movement log")
			return &updated, nil
		}
		if !models.IsConsistency(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Valuation prices the portfolio at current quotes. Display only: no
// ledger state changes here, and quote failure degrades to invested cost.
func (s *Service) Valuation(ctx context.Context, portfolioID string) (*models.PortfolioValuation, error) {
	portfolio, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	assets, err := s.storage.Portfolios().ListAssets(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	quotes := make(map[string]*models.Quote)
	if s.quotes != nil && len(assets) > 0 {
		tickers := make([]string, 0, len(assets))
		for _, a := range assets {
			if a.Quantity > 0 {
				tickers = append(tickers, a.Ticker)
			}
		}
		fetched, err := s.quotes.GetQuotes(ctx, tickers)
		if err != nil {
			s.logger.Warn().Err(err).Str("portfolio", portfolioID).Msg("Quote fetch failed; valuing at cost")
		}
		for _, q := range fetched {
			quotes[q.Ticker] = q
		}
	}

	valuation := &models.PortfolioValuation{
		PortfolioID: portfolio.ID,
		PricedAt:    time.Now(),
	}
	for _, a := range assets {
		if a.Quantity == 0 {
			continue
		}
		pos := models.AssetValuation{
			Ticker:        a.Ticker,
			Quantity:      a.Quantity,
			AveragePrice:  a.AveragePrice,
			TotalInvested: a.TotalInvested,
		}
		if q, ok := quotes[a.Ticker]; ok && q.Price > 0 {
			pos.LastPrice = q.Price
			pos.CurrentValue = a.Quantity * q.Price
		} else {
			pos.LastPrice = a.AveragePrice
			pos.CurrentValue = a.TotalInvested
		}
		pos.Return = pos.CurrentValue - pos.TotalInvested
		if pos.TotalInvested > 0 {
			pos.ReturnPct = pos.Return / pos.TotalInvested * 100
		}
		valuation.TotalInvested += pos.TotalInvested
		valuation.CurrentValue += pos.CurrentValue
		valuation.Positions = append(valuation.Positions, pos)
	}
	return valuation, nil
}
