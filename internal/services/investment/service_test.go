package investment

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

// mockPortfolioStore mirrors the real store's seq-guard semantics: an
// append or aggregate replace whose expected sequence no longer matches
// the live asset fails with a ConsistencyError.
type mockPortfolioStore struct {
	portfolios   map[string]*models.Portfolio
	assets       map[string]*models.Asset
	movements    map[string]*models.Movement
	transactions map[string]*models.Transaction
	balances     map[string]float64
}

func newMockPortfolioStore() *mockPortfolioStore {
	return &mockPortfolioStore{
		portfolios:   make(map[string]*models.Portfolio),
		assets:       make(map[string]*models.Asset),
		movements:    make(map[string]*models.Movement),
		transactions: make(map[string]*models.Transaction),
		balances:     make(map[string]float64),
	}
}

func (m *mockPortfolioStore) Create(_ context.Context, p *models.Portfolio) error {
	cp := *p
	m.portfolios[p.ID] = &cp
	return nil
}

func (m *mockPortfolioStore) Get(_ context.Context, id string) (*models.Portfolio, error) {
	p, ok := m.portfolios[id]
	if !ok {
		return nil, models.NotFound("portfolio", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPortfolioStore) List(_ context.Context, owner string) ([]*models.Portfolio, error) {
	var out []*models.Portfolio
	for _, p := range m.portfolios {
		if p.Owner == owner {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPortfolioStore) Update(_ context.Context, p *models.Portfolio) error {
	cp := *p
	m.portfolios[p.ID] = &cp
	return nil
}

func (m *mockPortfolioStore) Delete(_ context.Context, id string) error {
	delete(m.portfolios, id)
	for mid, mv := range m.movements {
		if mv.PortfolioID == id {
			delete(m.movements, mid)
		}
	}
	for aid, a := range m.assets {
		if a.PortfolioID == id {
			delete(m.assets, aid)
		}
	}
	return nil
}

func (m *mockPortfolioStore) CreateAsset(_ context.Context, a *models.Asset) error {
	cp := *a
	m.assets[a.ID] = &cp
	return nil
}

func (m *mockPortfolioStore) GetAsset(_ context.Context, id string) (*models.Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, models.NotFound("asset", id)
	}
	cp := *a
	return &cp, nil
}

func (m *mockPortfolioStore) GetAssetByTicker(_ context.Context, portfolioID, ticker string) (*models.Asset, error) {
	for _, a := range m.assets {
		if a.PortfolioID == portfolioID && a.Ticker == ticker {
			cp := *a
			return &cp, nil
		}
	}
	return nil, models.NotFound("asset", ticker)
}

func (m *mockPortfolioStore) ListAssets(_ context.Context, portfolioID string) ([]*models.Asset, error) {
	var out []*models.Asset
	for _, a := range m.assets {
		if a.PortfolioID == portfolioID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (m *mockPortfolioStore) DeleteAsset(_ context.Context, id string) error {
	delete(m.assets, id)
	return nil
}

func (m *mockPortfolioStore) GetMovement(_ context.Context, id string) (*models.Movement, error) {
	mv, ok := m.movements[id]
	if !ok {
		return nil, models.NotFound("movement", id)
	}
	cp := *mv
	return &cp, nil
}

func (m *mockPortfolioStore) ListMovements(_ context.Context, assetID string) ([]*models.Movement, error) {
	var out []*models.Movement
	for _, mv := range m.movements {
		if mv.AssetID == assetID {
			cp := *mv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *mockPortfolioStore) ApplyMovement(_ context.Context, mv *models.Movement, asset *models.Asset, cashTx *models.Transaction, delta *interfaces.AccountDelta) error {
	live, ok := m.assets[asset.ID]
	if !ok {
		return models.Validationf("asset not found")
	}
	if live.NextSeq != mv.Seq {
		return &models.ConsistencyError{Reason: "asset log advanced during movement append"}
	}
	mvCopy := *mv
	m.movements[mv.ID] = &mvCopy
	assetCopy := *asset
	m.assets[asset.ID] = &assetCopy
	if cashTx != nil && delta != nil {
		txCopy := *cashTx
		m.transactions[cashTx.ID] = &txCopy
		m.balances[delta.AccountID] += delta.Delta
	}
	return nil
}

func (m *mockPortfolioStore) DeleteMovementCascade(_ context.Context, assetID, movementID, cashTxID string, reversal *interfaces.AccountDelta) error {
	delete(m.movements, movementID)
	if live, ok := m.assets[assetID]; ok {
		live.NextSeq++
	}
	if cashTxID != "" && reversal != nil {
		delete(m.transactions, cashTxID)
		m.balances[reversal.AccountID] += reversal.Delta
	}
	return nil
}

func (m *mockPortfolioStore) DeleteMovementOnly(_ context.Context, assetID, movementID, cashTxID string) error {
	delete(m.movements, movementID)
	if live, ok := m.assets[assetID]; ok {
		live.NextSeq++
	}
	if cashTxID != "" {
		delete(m.transactions, cashTxID)
	}
	return nil
}

func (m *mockPortfolioStore) ReplaceAssetAggregates(_ context.Context, asset *models.Asset, expectSeq int64) error {
	live, ok := m.assets[asset.ID]
	if !ok {
		return models.Validationf("asset not found")
	}
	if live.NextSeq != expectSeq {
		return &models.ConsistencyError{Reason: "asset log advanced during replay"}
	}
	live.Quantity = asset.Quantity
	live.AveragePrice = asset.AveragePrice
	live.TotalInvested = asset.TotalInvested
	return nil
}

type mockTransactionStore struct {
	interfaces.TransactionStore
	store       *mockPortfolioStore
	deniedTxIDs map[string]bool
}

func (m *mockTransactionStore) Get(_ context.Context, id string) (*models.Transaction, error) {
	if m.deniedTxIDs[id] {
		return nil, errors.New("permission denied for record transaction")
	}
	tx, ok := m.store.transactions[id]
	if !ok {
		return nil, models.NotFound("transaction", id)
	}
	cp := *tx
	return &cp, nil
}

type mockAccountStore struct {
	interfaces.AccountStore
	accounts map[string]*models.Account
}

func (m *mockAccountStore) Get(_ context.Context, id string) (*models.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, models.NotFound("account", id)
	}
	cp := *a
	return &cp, nil
}

type mockStorage struct {
	portfolios   *mockPortfolioStore
	transactions *mockTransactionStore
	accounts     *mockAccountStore
}

func newMockStorage() *mockStorage {
	portfolios := newMockPortfolioStore()
	return &mockStorage{
		portfolios:   portfolios,
		transactions: &mockTransactionStore{store: portfolios, deniedTxIDs: make(map[string]bool)},
		accounts:     &mockAccountStore{accounts: make(map[string]*models.Account)},
	}
}

func (m *mockStorage) Users() interfaces.UserStore               { return nil }
func (m *mockStorage) Accounts() interfaces.AccountStore         { return m.accounts }
func (m *mockStorage) Transactions() interfaces.TransactionStore { return m.transactions }
func (m *mockStorage) Cards() interfaces.CardStore               { return nil }
func (m *mockStorage) Invoices() interfaces.InvoiceStore         { return nil }
func (m *mockStorage) Recurring() interfaces.RecurringStore      { return nil }
func (m *mockStorage) Portfolios() interfaces.PortfolioStore     { return m.portfolios }
func (m *mockStorage) Budgets() interfaces.BudgetStore           { return nil }
func (m *mockStorage) Categories() interfaces.CategoryStore      { return nil }
func (m *mockStorage) Close() error                              { return nil }

type mockQuoteClient struct {
	quotes map[string]float64
	err    error
}

func (m *mockQuoteClient) GetQuote(_ context.Context, ticker string) (*models.Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Quote{Ticker: ticker, Price: m.quotes[ticker]}, nil
}

func (m *mockQuoteClient) GetQuotes(_ context.Context, tickers []string) ([]*models.Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.Quote
	for _, t := range tickers {
		if price, ok := m.quotes[t]; ok {
			out = append(out, &models.Quote{Ticker: t, Price: price})
		}
	}
	return out, nil
}

func testContext() context.Context {
	return common.WithSession(context.Background(), &common.Session{Owner: "user1", Email: "user1@example.com"})
}

func newTestService(storage *mockStorage, quotes interfaces.QuoteClient) *Service {
	return NewService(storage, quotes, common.NewSilentLogger())
}

func seedPortfolio(t *testing.T, storage *mockStorage, id string, ownership models.OwnershipType, accountID string) {
	t.Helper()
	require.NoError(t, storage.portfolios.Create(context.Background(), &models.Portfolio{
		ID: id, Owner: "user1", Name: "Portfolio " + id,
		OwnershipType: ownership, AccountID: accountID,
	}))
	if accountID != "" {
		storage.accounts.accounts[accountID] = &models.Account{
			ID: accountID, Owner: "user1", Name: "Broker",
			Type: models.AccountTypeInvestment, Status: models.AccountStatusActive,
		}
	}
}

func buy(qty, price float64, date time.Time) models.Movement {
	return models.Movement{Kind: models.MovementBuy, Quantity: qty, PricePerUnit: price, Date: date}
}

func sell(qty, price float64, date time.Time) models.Movement {
	return models.Movement{Kind: models.MovementSell, Quantity: qty, PricePerUnit: price, Date: date}
}

func TestRecordMovementBuy(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipThirdParty, "")

	asset, err := svc.RecordMovement(testContext(), "pf_1", "petr4", buy(10, 100, day(1)))
	require.NoError(t, err)
	assert.Equal(t, "PETR4", asset.Ticker)
	assert.Equal(t, 10.0, asset.Quantity)
	assert.Equal(t, 100.0, asset.AveragePrice)
	assert.Equal(t, 1000.0, asset.TotalInvested)
	assert.Equal(t, int64(1), asset.NextSeq)

	asset, err = svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 200, day(2)))
	require.NoError(t, err)
	assert.Equal(t, 20.0, asset.Quantity)
	assert.Equal(t, 150.0, asset.AveragePrice)
	assert.Equal(t, 3000.0, asset.TotalInvested)

	// third-party portfolio: no cash side
	assert.Empty(t, storage.portfolios.transactions)
}

func TestRecordMovementSell(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipThirdParty, "")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)
	_, err = svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 200, day(2)))
	require.NoError(t, err)

	asset, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", sell(5, 180, day(3)))
	require.NoError(t, err)
	assert.Equal(t, 15.0, asset.Quantity)
	assert.Equal(t, 150.0, asset.AveragePrice)
	assert.Equal(t, 2250.0, asset.TotalInvested)
}

func TestRecordMovementSellMoreThanHeld(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipThirdParty, "")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)

	_, err = svc.RecordMovement(testContext(), "pf_1", "PETR4", sell(11, 120, day(2)))
	assert.True(t, models.IsValidation(err))
	assert.Len(t, storage.portfolios.movements, 1)
}

func TestRecordMovementSellAllResets(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipThirdParty, "")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)

	asset, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", sell(10, 120, day(2)))
	require.NoError(t, err)
	assert.Zero(t, asset.Quantity)
	assert.Zero(t, asset.AveragePrice)
	assert.Zero(t, asset.TotalInvested)
}

func TestRecordMovementOwnPortfolioCashEffect(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipOwn, "ac_broker")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)
	assert.Equal(t, -1000.0, storage.portfolios.balances["ac_broker"])

	_, err = svc.RecordMovement(testContext(), "pf_1", "PETR4", sell(4, 150, day(2)))
	require.NoError(t, err)
	// the sale credits 4 x 150 back
	assert.Equal(t, -400.0, storage.portfolios.balances["ac_broker"])

	require.Len(t, storage.portfolios.transactions, 2)
	for _, mv := range storage.portfolios.movements {
		assert.NotEmpty(t, mv.TransactionID)
	}
}

func TestRecordDividend(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipOwn, "ac_broker")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)
	_, err = svc.RecordMovement(testContext(), "pf_1", "PETR4", sell(4, 110, day(10)))
	require.NoError(t, err)

	// payment date between the buy and the sell: snapshot is 10 units
	mv, err := svc.RecordDividend(testContext(), "pf_1", "PETR4", 25, day(5))
	require.NoError(t, err)
	assert.Equal(t, models.MovementDividend, mv.Kind)
	assert.Equal(t, 10.0, mv.Quantity)
	assert.Equal(t, 2.5, mv.PricePerUnit)
	assert.Equal(t, 25.0, mv.TotalCost)
	assert.NotEmpty(t, mv.TransactionID)

	// revenue leg hit the linked account: -1000 buy + 440 sale + 25 dividend
	assert.InDelta(t, -535.0, storage.portfolios.balances["ac_broker"], 0.001)

	// position aggregates untouched
	asset, err := storage.portfolios.GetAsset(context.Background(), mv.AssetID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, asset.Quantity)
	assert.Equal(t, int64(3), asset.NextSeq)
}

func TestRecordDividendUnknownAsset(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipThirdParty, "")

	_, err := svc.RecordDividend(testContext(), "pf_1", "PETR4", 25, day(5))
	assert.True(t, models.IsNotFound(err))
}

func TestDeleteMovementAndRecalculate(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipOwn, "ac_broker")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)
	_, err = svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 200, day(2)))
	require.NoError(t, err)

	// find the second buy
	var target *models.Movement
	var assetID string
	for _, mv := range storage.portfolios.movements {
		assetID = mv.AssetID
		if mv.PricePerUnit == 200 {
			cp := *mv
			target = &cp
		}
	}
	require.NotNil(t, target)

	asset, err := svc.DeleteMovementAndRecalculate(testContext(), "pf_1", assetID, target.ID)
	require.NoError(t, err)

	// replay of the remaining log: back to the first buy alone
	assert.Equal(t, 10.0, asset.Quantity)
	assert.Equal(t, 100.0, asset.AveragePrice)
	assert.Equal(t, 1000.0, asset.TotalInvested)

	// cash effect reversed: only the first buy still debits
	assert.Equal(t, -1000.0, storage.portfolios.balances["ac_broker"])
	assert.Len(t, storage.portfolios.transactions, 1)
}

func TestDeleteMovementAdvancesSequence(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipThirdParty, "")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)
	_, err = svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(5, 120, day(2)))
	require.NoError(t, err)

	var target *models.Movement
	for _, mv := range storage.portfolios.movements {
		if mv.PricePerUnit == 120 {
			cp := *mv
			target = &cp
		}
	}
	require.NotNil(t, target)

	before, err := storage.portfolios.GetAsset(context.Background(), target.AssetID)
	require.NoError(t, err)
	staleSeq := before.NextSeq

	_, err = svc.DeleteMovementAndRecalculate(testContext(), "pf_1", target.AssetID, target.ID)
	require.NoError(t, err)

	after, err := storage.portfolios.GetAsset(context.Background(), target.AssetID)
	require.NoError(t, err)
	assert.Greater(t, after.NextSeq, staleSeq, "deletion must advance the sequence")

	// a replay folded before the deletion must lose the guard
	cp := *before
	err = storage.portfolios.ReplaceAssetAggregates(context.Background(), &cp, staleSeq)
	assert.True(t, models.IsConsistency(err))
}

func TestDeleteMovementPermissionDeniedFallback(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)
	seedPortfolio(t, storage, "pf_1", models.OwnershipOwn, "ac_broker")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)

	var target *models.Movement
	for _, mv := range storage.portfolios.movements {
		cp := *mv
		target = &cp
	}
	require.NotNil(t, target)
	storage.transactions.deniedTxIDs[target.TransactionID] = true

	asset, err := svc.DeleteMovementAndRecalculate(testContext(), "pf_1", target.AssetID, target.ID)
	require.NoError(t, err)
	assert.Zero(t, asset.Quantity)

	// documented escape hatch: movement and transaction gone, no reversal
	assert.Empty(t, storage.portfolios.movements)
	assert.Empty(t, storage.portfolios.transactions)
	assert.Equal(t, -1000.0, storage.portfolios.balances["ac_broker"])
}

func TestCreatePortfolioValidation(t *testing.T) {
	storage := newMockStorage()
	svc := newTestService(storage, nil)

	err := svc.CreatePortfolio(testContext(), &models.Portfolio{
		Name: "Broker", OwnershipType: models.OwnershipOwn,
	})
	assert.True(t, models.IsValidation(err), "own portfolio without linked account")

	storage.accounts.accounts["ac_check"] = &models.Account{
		ID: "ac_check", Owner: "user1", Name: "Checking",
		Type: models.AccountTypeChecking, Status: models.AccountStatusActive,
	}
	err = svc.CreatePortfolio(testContext(), &models.Portfolio{
		Name: "Broker", OwnershipType: models.OwnershipOwn, AccountID: "ac_check",
	})
	assert.True(t, models.IsValidation(err), "linked account must be an investment account")
}

func TestValuation(t *testing.T) {
	storage := newMockStorage()
	quotes := &mockQuoteClient{quotes: map[string]float64{"PETR4": 120}}
	svc := newTestService(storage, quotes)
	seedPortfolio(t, storage, "pf_1", models.OwnershipThirdParty, "")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)

	valuation, err := svc.Valuation(testContext(), "pf_1")
	require.NoError(t, err)
	require.Len(t, valuation.Positions, 1)
	assert.Equal(t, 1000.0, valuation.TotalInvested)
	assert.Equal(t, 1200.0, valuation.CurrentValue)
	assert.Equal(t, 200.0, valuation.Positions[0].Return)
	assert.InDelta(t, 20.0, valuation.Positions[0].ReturnPct, 0.001)
}

func TestValuationQuoteFailureFallsBackToCost(t *testing.T) {
	storage := newMockStorage()
	quotes := &mockQuoteClient{err: errors.New("rate limited")}
	svc := newTestService(storage, quotes)
	seedPortfolio(t, storage, "pf_1", models.OwnershipThirdParty, "")

	_, err := svc.RecordMovement(testContext(), "pf_1", "PETR4", buy(10, 100, day(1)))
	require.NoError(t, err)

	valuation, err := svc.Valuation(testContext(), "pf_1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, valuation.CurrentValue)
}
