package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"buyone/internal/service/inventory/domain"
	"buyone/internal/service/inventory/domain/port"
	"buyone/internal/service/inventory/infrastructure/memory"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	ledger *memory.StockLedger
	store  *memory.ReservationStore
	clock  *fakeClock
	svc    *ReservationService
}

func newFixture(t *testing.T, stock map[string]int64, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		ledger: memory.NewStockLedger(),
		store:  memory.NewReservationStore(),
		clock:  newFakeClock(),
	}
	for id, qty := range stock {
		require.NoError(t, f.ledger.Seed(context.Background(), id, qty))
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.svc = NewReservationService(f.ledger, f.store, opts...)
	return f
}

func (f *fixture) available(t *testing.T, productID string) int64 {
	t.Helper()
	n, err := f.ledger.Get(context.Background(), productID)
	require.NoError(t, err)
	return n
}

// flakyStore 让指定操作失败，其余委托给内存实现。
type flakyStore struct {
	*memory.ReservationStore
	failCreate  error
	failDeletes int
}

func (s *flakyStore) Create(ctx context.Context, r *domain.Reservation) error {
	if s.failCreate != nil {
		return s.failCreate
	}
	return s.ReservationStore.Create(ctx, r)
}

func (s *flakyStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	if s.failDeletes > 0 {
		s.failDeletes--
		return false, errors.New("connection reset")
	}
	return s.ReservationStore.DeleteByID(ctx, id)
}

// flakyLedger 对指定商品的归还始终失败。
type flakyLedger struct {
	*memory.StockLedger
	failProduct string
}

func (l *flakyLedger) CreditOnce(ctx context.Context, productID string, amount int64, reservationID string) (bool, error) {
	if productID == l.failProduct {
		return false, errors.New("ledger unavailable")
	}
	return l.StockLedger.CreditOnce(ctx, productID, amount, reservationID)
}

type mockAdmission struct {
	mock.Mock
}

func (m *mockAdmission) Admit(ctx context.Context, req port.AdmissionRequest) (bool, error) {
	args := m.Called(ctx, req)
	return args.Bool(0), args.Error(1)
}

type mockLocker struct {
	mock.Mock
	unlocked int
}

func (m *mockLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	args := m.Called(ctx, name)
	return func() { m.unlocked++ }, args.Bool(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishProductEvent(ctx context.Context, event domain.ProductEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
