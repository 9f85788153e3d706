package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbarro/lares/internal/auth"
	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

type mockUserStore struct {
	kv map[string]string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{kv: make(map[string]string)}
}

func (m *mockUserStore) Get(ctx context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (m *mockUserStore) Save(ctx context.Context, user *models.User) error { return nil }

func (m *mockUserStore) GetKV(ctx context.Context, userID, key string) (string, error) {
	v, ok := m.kv[userID+"/"+key]
	if !ok {
		return "", models.NotFound("kv", key)
	}
	return v, nil
}

func (m *mockUserStore) SetKV(ctx context.Context, userID, key, value string) error {
	m.kv[userID+"/"+key] = value
	return nil
}

type mockInvoiceService struct {
	interfaces.InvoiceService
	closeCalls int
	lastOwner  string
}

func (m *mockInvoiceService) CloseOverdueInvoices(ctx context.Context, now time.Time) (int, error) {
	m.closeCalls++
	m.lastOwner, _ = common.ResolveOwner(ctx)
	return 2, nil
}

type mockRecurringService struct {
	interfaces.RecurringService
	processCalls int
}

func (m *mockRecurringService) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	m.processCalls++
	return 1, nil
}

type mockStorage struct {
	interfaces.StorageManager
	users *mockUserStore
}

func (m *mockStorage) Users() interfaces.UserStore { return m.users }

func TestSessionMaintenance_RunsOncePerDay(t *testing.T) {
	users := newMockUserStore()
	invoices := &mockInvoiceService{}
	recurring := &mockRecurringService{}
	now := time.Date(2026, time.April, 10, 8, 0, 0, 0, time.UTC)

	runSessionMaintenance(context.Background(), "user1", users, invoices, recurring, common.NewSilentLogger(), now)
	runSessionMaintenance(context.Background(), "user1", users, invoices, recurring, common.NewSilentLogger(), now)

	assert.Equal(t, 1, invoices.closeCalls)
	assert.Equal(t, 1, recurring.processCalls)
	assert.Equal(t, "2026-04-10", users.kv["user1/"+maintenanceStampKey])
}

func TestSessionMaintenance_RunsAgainNextDay(t *testing.T) {
	users := newMockUserStore()
	invoices := &mockInvoiceService{}
	recurring := &mockRecurringService{}

	runSessionMaintenance(context.Background(), "user1", users, invoices, recurring, common.NewSilentLogger(),
		time.Date(2026, time.April, 10, 8, 0, 0, 0, time.UTC))
	runSessionMaintenance(context.Background(), "user1", users, invoices, recurring, common.NewSilentLogger(),
		time.Date(2026, time.April, 11, 8, 0, 0, 0, time.UTC))

	assert.Equal(t, 2, invoices.closeCalls)
	assert.Equal(t, 2, recurring.processCalls)
}

func TestSessionMaintenance_OwnerTravelsInContext(t *testing.T) {
	users := newMockUserStore()
	invoices := &mockInvoiceService{}
	recurring := &mockRecurringService{}

	runSessionMaintenance(context.Background(), "user2", users, invoices, recurring, common.NewSilentLogger(),
		time.Date(2026, time.April, 10, 8, 0, 0, 0, time.UTC))

	assert.Equal(t, "user2", invoices.lastOwner)
}

func TestSessionMaintenance_StampSkippedOnFailure(t *testing.T) {
	users := newMockUserStore()
	invoices := &mockInvoiceService{}
	recurring := &failingRecurringService{}

	runSessionMaintenance(context.Background(), "user1", users, invoices, recurring, common.NewSilentLogger(),
		time.Date(2026, time.April, 10, 8, 0, 0, 0, time.UTC))

	// A failed pass leaves no stamp so the next sign-in retries.
	_, ok := users.kv["user1/"+maintenanceStampKey]
	assert.False(t, ok)
}

type failingRecurringService struct {
	interfaces.RecurringService
}

func (f *failingRecurringService) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	return 0, assert.AnError
}

func TestStartMaintenance_RunsOnSignIn(t *testing.T) {
	users := newMockUserStore()
	invoices := &mockInvoiceService{}
	recurring := &mockRecurringService{}
	watcher := auth.NewSessionWatcher(common.NewSilentLogger())

	a := &App{
		Logger:      common.NewSilentLogger(),
		Storage:     &mockStorage{users: users},
		AuthWatcher: watcher,
		Invoices:    invoices,
		Recurring:   recurring,
	}
	a.StartMaintenance()
	defer a.maintenanceStop()

	watcher.Publish(interfaces.AuthState{UserID: "user1", SignedIn: true, At: time.Now()})
	watcher.Publish(interfaces.AuthState{UserID: "user1", SignedIn: false, At: time.Now()})

	require.Eventually(t, func() bool {
		return invoices.closeCalls == 1
	}, time.Second, 10*time.Millisecond)

	// Sign-out events do not trigger maintenance.
	assert.Equal(t, 1, invoices.closeCalls)
}
