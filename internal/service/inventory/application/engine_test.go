package application

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"buyone/internal/service/inventory/domain"
	"buyone/internal/service/inventory/domain/port"
	"buyone/internal/service/inventory/infrastructure/memory"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReserveDecrementsLedgerAndStoresHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 5})

	res, err := f.svc.Reserve(ctx, "p-1", 3, "o-1")
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.available(t, "p-1"))
	stored, err := f.store.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "o-1", stored.OrderNumber)
	assert.Equal(t, f.clock.Now(), stored.CreatedAt)
}

func TestReserveRejectsBadInputWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 5})

	_, err := f.svc.Reserve(ctx, "p-1", 0, "o-1")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.svc.Reserve(ctx, "p-1", -2, "o-1")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.svc.Reserve(ctx, "p-1", 1, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	assert.Equal(t, int64(5), f.available(t, "p-1"))
	assert.Equal(t, 0, f.store.Len())
}

func TestReserveInsufficientStockAndUnknownProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 2})

	_, err := f.svc.Reserve(ctx, "p-1", 3, "o-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(2), f.available(t, "p-1"))

	_, err = f.svc.Reserve(ctx, "p-404", 1, "o-1")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, 0, f.store.Len())
}

func TestReserveAdmissionPolicy(t *testing.T) {
	ctx := context.Background()
	policy := &mockAdmission{}
	policy.On("Admit", mock.Anything, port.AdmissionRequest{ProductID: "p-1", Quantity: 9, OrderNumber: "o-1"}).Return(false, nil)
	policy.On("Admit", mock.Anything, port.AdmissionRequest{ProductID: "p-1", Quantity: 1, OrderNumber: "o-1"}).Return(true, nil)
	f := newFixture(t, map[string]int64{"p-1": 10}, WithAdmissionPolicy(policy))

	_, err := f.svc.Reserve(ctx, "p-1", 9, "o-1")
	assert.ErrorIs(t, err, domain.ErrReservationRejected)
	assert.Equal(t, int64(10), f.available(t, "p-1"))

	_, err = f.svc.Reserve(ctx, "p-1", 1, "o-1")
	require.NoError(t, err)
	policy.AssertExpectations(t)
}

func TestReserveCompensatesLedgerWhenStoreWriteFails(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewStockLedger()
	require.NoError(t, ledger.Seed(ctx, "p-1", 4))
	store := &flakyStore{ReservationStore: memory.NewReservationStore(), failCreate: domain.ErrDuplicateReservation}
	svc := NewReservationService(ledger, store)

	_, err := svc.Reserve(ctx, "p-1", 3, "o-1")
	assert.ErrorIs(t, err, domain.ErrDuplicateReservation)

	got, _ := ledger.Get(ctx, "p-1")
	assert.Equal(t, int64(4), got)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 50})

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, outOfStock int
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(ctx, "p-1", 1, "o-concurrent")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				outOfStock++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, ok)
	assert.Equal(t, 150, outOfStock)
	assert.Equal(t, int64(0), f.available(t, "p-1"))
	assert.Equal(t, 50, f.store.Len())
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	ctx := context.Background()
	const initial = 40
	f := newFixture(t, map[string]int64{"p-1": initial})
	rng := rand.New(rand.NewSource(7))

	var committed int64
	var live []*domain.Reservation
	orders := []string{"o-a", "o-b", "o-c", "o-d"}

	for step := 0; step < 300; step++ {
		switch op := rng.Intn(4); {
		case op <= 1:
			res, err := f.svc.Reserve(ctx, "p-1", int64(rng.Intn(4)+1), orders[rng.Intn(len(orders))])
			if err == nil {
				live = append(live, res)
			} else {
				require.ErrorIs(t, err, domain.ErrInsufficientStock)
			}
		case op == 2 && len(live) > 0:
			i := rng.Intn(len(live))
			_, err := f.svc.Release(ctx, live[i].ID)
			require.NoError(t, err)
			// 重复释放不会多加库存
			_, err = f.svc.Release(ctx, live[i].ID)
			require.NoError(t, err)
			live = append(live[:i], live[i+1:]...)
		case op == 3:
			order := orders[rng.Intn(len(orders))]
			holds, err := f.store.FindByOrderNumber(ctx, order)
			require.NoError(t, err)
			_, err = f.svc.CommitReservations(ctx, order)
			require.NoError(t, err)
			for _, h := range holds {
				committed += h.Quantity
			}
			kept := live[:0]
			for _, r := range live {
				if r.OrderNumber != order {
					kept = append(kept, r)
				}
			}
			live = kept
		}

		var held int64
		for _, r := range live {
			held += r.Quantity
		}
		available := f.available(t, "p-1")
		require.GreaterOrEqual(t, available, int64(0))
		require.Equal(t, int64(initial), available+held+committed, "step %d", step)
	}
}

func TestCommitIsStockNeutralAndIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 5})

	_, err := f.svc.Reserve(ctx, "p-1", 3, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.available(t, "p-1"))

	n, err := f.svc.CommitReservations(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(2), f.available(t, "p-1"))

	n, err = f.svc.CommitReservations(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, int64(2), f.available(t, "p-1"))

	_, err = f.svc.CommitReservations(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 5})

	res, err := f.svc.Reserve(ctx, "p-1", 2, "o-1")
	require.NoError(t, err)

	removed, err := f.svc.Release(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, int64(5), f.available(t, "p-1"))

	removed, err = f.svc.Release(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, int64(5), f.available(t, "p-1"))

	removed, err = f.svc.Release(ctx, "never-existed")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestReleaseAfterCommitDoesNotCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 5})

	res, err := f.svc.Reserve(ctx, "p-1", 2, "o-1")
	require.NoError(t, err)
	_, err = f.svc.CommitReservations(ctx, "o-1")
	require.NoError(t, err)

	removed, err := f.svc.Release(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, int64(3), f.available(t, "p-1"))
}

func TestReleaseRetryAfterDeleteFailureCreditsOnce(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewStockLedger()
	require.NoError(t, ledger.Seed(ctx, "p-1", 5))
	store := &flakyStore{ReservationStore: memory.NewReservationStore()}
	svc := NewReservationService(ledger, store)

	res, err := svc.Reserve(ctx, "p-1", 4, "o-1")
	require.NoError(t, err)

	// 归还成功，删除失败：记录仍在
	store.failDeletes = 1
	_, err = svc.Release(ctx, res.ID)
	require.Error(t, err)
	got, _ := ledger.Get(ctx, "p-1")
	assert.Equal(t, int64(5), got)
	_, err = store.FindByID(ctx, res.ID)
	require.NoError(t, err)

	// 重试只补做删除
	removed, err := svc.Release(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	got, _ = ledger.Get(ctx, "p-1")
	assert.Equal(t, int64(5), got)
}

func TestReleaseStockByOrderAndProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 10, "p-2": 10})

	_, err := f.svc.Reserve(ctx, "p-1", 2, "o-1")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "p-1", 3, "o-1")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "p-2", 4, "o-1")
	require.NoError(t, err)

	released, err := f.svc.ReleaseStock(ctx, "p-1", 5, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), released)
	assert.Equal(t, int64(10), f.available(t, "p-1"))
	assert.Equal(t, int64(6), f.available(t, "p-2"))

	released, err = f.svc.ReleaseStock(ctx, "p-1", 5, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), released)

	_, err = f.svc.ReleaseStock(ctx, "p-1", 0, "o-1")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestReleaseStockNeverExceedsRequestedQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 10})

	_, err := f.svc.Reserve(ctx, "p-1", 3, "o-1")
	require.NoError(t, err)
	f.clock.Advance(1)
	_, err = f.svc.Reserve(ctx, "p-1", 3, "o-1")
	require.NoError(t, err)

	released, err := f.svc.ReleaseStock(ctx, "p-1", 4, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), released)
	assert.Equal(t, int64(7), f.available(t, "p-1"))
}

func TestReleaseOrderReturnsAllHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 10, "p-2": 10})

	_, err := f.svc.Reserve(ctx, "p-1", 2, "o-1")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "p-2", 4, "o-1")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "p-2", 1, "o-2")
	require.NoError(t, err)

	released, err := f.svc.ReleaseOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), released)
	assert.Equal(t, int64(10), f.available(t, "p-1"))
	assert.Equal(t, int64(9), f.available(t, "p-2"))
	assert.Equal(t, 1, f.store.Len())
}

func TestScenarioReserveThenCommitKeepsStockConsumed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int64{"p-1": 5})

	_, err := f.svc.Reserve(ctx, "p-1", 3, "o-1")
	require.NoError(t, err)
	_, err = f.svc.CommitReservations(ctx, "o-1")
	require.NoError(t, err)

	stock, err := f.svc.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stock)
	assert.Equal(t, 0, f.store.Len())
}
