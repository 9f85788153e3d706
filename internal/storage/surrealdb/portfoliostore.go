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

// PortfolioStore implements interfaces.PortfolioStore using SurrealDB.
// Movements are append-only; asset aggregates are a materialized view the
// service recomputes and this store writes back, guarded by next_seq.
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{db: db, logger: logger}
}

func (s *PortfolioStore) Create(ctx context.Context, p *models.Portfolio) error {
	if err := models.Validate(p); err != nil {
		return err
	}
	sql := "CREATE $rid CONTENT $portfolio"
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("portfolio", p.ID),
		"portfolio": p,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("portfolio.create", err)
	}
	return nil
}

func (s *PortfolioStore) Get(ctx context.Context, id string) (*models.Portfolio, error) {
	p, err := surrealdb.Select[models.Portfolio](ctx, s.db, surrealmodels.NewRecordID("portfolio", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("portfolio", id)
		}
		return nil, mapQueryErr("portfolio.get", err)
	}
	if p == nil || p.ID == "" {
		return nil, models.NotFound("portfolio", id)
	}
	return p, nil
}

func (s *PortfolioStore) List(ctx context.Context, owner string) ([]*models.Portfolio, error) {
	sql := "SELECT * FROM portfolio WHERE owner = $owner ORDER BY created_at ASC"
	vars := map[string]any{"owner": owner}

	results, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("portfolio.list", err)
	}
	return allResults(results), nil
}

func (s *PortfolioStore) Update(ctx context.Context, p *models.Portfolio) error {
	if err := models.Validate(p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	sql := "UPDATE $rid CONTENT $portfolio"
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("portfolio", p.ID),
		"portfolio": p,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("portfolio.update", err)
	}
	return nil
}

func (s *PortfolioStore) Delete(ctx context.Context, id string) error {
	// Assets and movements go with the portfolio.
	sql := `BEGIN TRANSACTION;
		DELETE movement WHERE portfolio_id = $id;
		DELETE asset WHERE portfolio_id = $id;
		DELETE $rid;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"id":  id,
		"rid": surrealmodels.NewRecordID("portfolio", id),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("portfolio.delete", err)
	}
	return nil
}

func (s *PortfolioStore) CreateAsset(ctx context.Context, a *models.Asset) error {
	if err := models.Validate(a); err != nil {
		return err
	}
	sql := "CREATE $rid CONTENT $asset"
	vars := map[string]any{
		"rid":   surrealmodels.NewRecordID("asset", a.ID),
		"asset": a,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("asset.create", err)
	}
	return nil
}

func (s *PortfolioStore) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	a, err := surrealdb.Select[models.Asset](ctx, s.db, surrealmodels.NewRecordID("asset", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("asset", id)
		}
		return nil, mapQueryErr("asset.get", err)
	}
	if a == nil || a.ID == "" {
		return nil, models.NotFound("asset", id)
	}
	return a, nil
}

func (s *PortfolioStore) GetAssetByTicker(ctx context.Context, portfolioID, ticker string) (*models.Asset, error) {
	sql := "SELECT * FROM asset WHERE portfolio_id = $portfolio_id AND ticker = $ticker LIMIT 1"
	vars := map[string]any{
		"portfolio_id": portfolioID,
		"ticker":       ticker,
	}

	results, err := surrealdb.Query[[]models.Asset](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("asset.getbyticker", err)
	}
	a := firstResult(results)
	if a == nil {
		return nil, models.NotFound("asset", ticker)
	}
	return a, nil
}

func (s *PortfolioStore) ListAssets(ctx context.Context, portfolioID string) ([]*models.Asset, error) {
	sql := "SELECT * FROM asset WHERE portfolio_id = $portfolio_id ORDER BY ticker ASC"
	vars := map[string]any{"portfolio_id": portfolioID}

	results, err := surrealdb.Query[[]models.Asset](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("asset.list", err)
	}
	return allResults(results), nil
}

func (s *PortfolioStore) DeleteAsset(ctx context.Context, id string) error {
	sql := `BEGIN TRANSACTION;
		DELETE movement WHERE asset_id = $id;
		DELETE $rid;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"id":  id,
		"rid": surrealmodels.NewRecordID("asset", id),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("asset.delete", err)
	}
	return nil
}

func (s *PortfolioStore) GetMovement(ctx context.Context, id string) (*models.Movement, error) {
	mv, err := surrealdb.Select[models.Movement](ctx, s.db, surrealmodels.NewRecordID("movement", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.NotFound("movement", id)
		}
		return nil, mapQueryErr("movement.get", err)
	}
	if mv == nil || mv.ID == "" {
		return nil, models.NotFound("movement", id)
	}
	return mv, nil
}

// ListMovements returns the log in replay order. Seq breaks same-date ties
// deterministically; date alone would leave the replay order undefined.
func (s *PortfolioStore) ListMovements(ctx context.Context, assetID string) ([]*models.Movement, error) {
	sql := "SELECT * FROM movement WHERE asset_id = $asset_id ORDER BY date ASC, seq ASC"
	vars := map[string]any{"asset_id": assetID}

	results, err := surrealdb.Query[[]models.Movement](ctx, s.db, sql, vars)
	if err != nil {
		return nil, mapQueryErr("movement.list", err)
	}
	return allResults(results), nil
}

// ApplyMovement appends the movement and rewrites the asset aggregates in
// one block, with the cash-effect transaction and its balance increment
// riding along for own portfolios. The seq guard inside the block rejects
// a racing append: the service recomputes from the fresh asset and
// retries.
func (s *PortfolioStore) ApplyMovement(ctx context.Context, mv *models.Movement, asset *models.Asset, cashTx *models.Transaction, delta *interfaces.AccountDelta) error {
	if err := models.Validate(mv); err != nil {
		return err
	}
	if err := models.Validate(asset); err != nil {
		return err
	}

	sql := `BEGIN TRANSACTION;
		LET $live = (SELECT * FROM ONLY $asset_rid);
		IF $live = NONE { THROW "validation: asset not found" };
		IF $live.next_seq != $expect_seq { THROW "consistency: asset log advanced during movement append" };
		CREATE $mv_rid CONTENT $mv;
		UPDATE $asset_rid SET quantity = $quantity, average_price = $average_price,
			total_invested = $total_invested, next_seq = $next_seq, updated_at = $now;`
	vars := map[string]any{
		"asset_rid":      surrealmodels.NewRecordID("asset", asset.ID),
		"expect_seq":     mv.Seq,
		"mv_rid":         surrealmodels.NewRecordID("movement", mv.ID),
		"mv":             mv,
		"quantity":       asset.Quantity,
		"average_price":  asset.AveragePrice,
		"total_invested": asset.TotalInvested,
		"next_seq":       asset.NextSeq,
		"now":            time.Now(),
	}
	if cashTx != nil && delta != nil {
		if err := models.Validate(cashTx); err != nil {
			return err
		}
		sql += `
		CREATE $tx_rid CONTENT $tx;
		UPDATE $acct_rid SET current_balance += $delta, updated_at = $now;`
		vars["tx_rid"] = surrealmodels.NewRecordID("transaction", cashTx.ID)
		vars["tx"] = cashTx
		vars["acct_rid"] = surrealmodels.NewRecordID("account", delta.AccountID)
		vars["delta"] = delta.Delta
	}
	sql += "\nCOMMIT TRANSACTION;"

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("movement.apply", err)
	}
	return nil
}

// DeleteMovementCascade also advances the asset's next_seq: a replay or
// append computed before the deletion carries the old sequence and loses
// its guard instead of committing aggregates that still include the
// deleted movement.
func (s *PortfolioStore) DeleteMovementCascade(ctx context.Context, assetID, movementID, cashTxID string, reversal *interfaces.AccountDelta) error {
	sql := `BEGIN TRANSACTION;
		DELETE $mv_rid;
		UPDATE $asset_rid SET next_seq += 1, updated_at = $now;`
	vars := map[string]any{
		"mv_rid":    surrealmodels.NewRecordID("movement", movementID),
		"asset_rid": surrealmodels.NewRecordID("asset", assetID),
		"now":       time.Now(),
	}
	if cashTxID != "" && reversal != nil {
		sql += `
		DELETE $tx_rid;
		UPDATE $acct_rid SET current_balance += $delta, updated_at = $now;`
		vars["tx_rid"] = surrealmodels.NewRecordID("transaction", cashTxID)
		vars["acct_rid"] = surrealmodels.NewRecordID("account", reversal.AccountID)
		vars["delta"] = reversal.Delta
	}
	sql += "\nCOMMIT TRANSACTION;"

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("movement.deletecascade", err)
	}
	return nil
}

// DeleteMovementOnly drops the movement and its linked transaction without
// touching any account balance, advancing the asset's next_seq like the
// cascade path. Only the investment correction path's permission-denied
// fallback calls this.
func (s *PortfolioStore) DeleteMovementOnly(ctx context.Context, assetID, movementID, cashTxID string) error {
	sql := `BEGIN TRANSACTION;
		DELETE $mv_rid;
		UPDATE $asset_rid SET next_seq += 1, updated_at = $now;`
	vars := map[string]any{
		"mv_rid":    surrealmodels.NewRecordID("movement", movementID),
		"asset_rid": surrealmodels.NewRecordID("asset", assetID),
		"now":       time.Now(),
	}
	if cashTxID != "" {
		sql += "\nDELETE $tx_rid;"
		vars["tx_rid"] = surrealmodels.NewRecordID("transaction", cashTxID)
	}
	sql += "\nCOMMIT TRANSACTION;"

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("movement.deleteonly", err)
	}
	return nil
}

// ReplaceAssetAggregates writes a replayed materialized view, guarded on
// the next_seq observed when the replay snapshot was read. A concurrent
// append moves next_seq and aborts the write; the caller replays again.
func (s *PortfolioStore) ReplaceAssetAggregates(ctx context.Context, asset *models.Asset, expectSeq int64) error {
	if err := models.Validate(asset); err != nil {
		return err
	}
	sql := `BEGIN TRANSACTION;
		LET $live = (SELECT * FROM ONLY $asset_rid);
		IF $live = NONE { THROW "validation: asset not found" };
		IF $live.next_seq != $expect_seq { THROW "consistency: asset log advanced during replay" };
		UPDATE $asset_rid SET quantity = $quantity, average_price = $average_price,
			total_invested = $total_invested, updated_at = $now;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"asset_rid":      surrealmodels.NewRecordID("asset", asset.ID),
		"expect_seq":     expectSeq,
		"quantity":       asset.Quantity,
		"average_price":  asset.AveragePrice,
		"total_invested": asset.TotalInvested,
		"now":            time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return mapQueryErr("asset.replace", err)
	}
	return nil
}

var _ interfaces.PortfolioStore = (*PortfolioStore)(nil)
