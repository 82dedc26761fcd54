package application

import (
	"context"
	"errors"
	"testing"

	"buyone/internal/service/checkout/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) Reserve(ctx context.Context, orderNumber string, line port.ReservationLine) (string, error) {
	args := m.Called(ctx, orderNumber, line)
	return args.String(0), args.Error(1)
}

func (m *mockInventory) Release(ctx context.Context, reservationID string) error {
	return m.Called(ctx, reservationID).Error(0)
}

func (m *mockInventory) Commit(ctx context.Context, orderNumber string) (int64, error) {
	args := m.Called(ctx, orderNumber)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockInventory) ReleaseOrder(ctx context.Context, orderNumber string) (int64, error) {
	args := m.Called(ctx, orderNumber)
	return args.Get(0).(int64), args.Error(1)
}

func TestPlaceOrderReservesEveryLine(t *testing.T) {
	inv := new(mockInventory)
	inv.On("Reserve", mock.Anything, "o-1", port.ReservationLine{ProductID: "p-1", Quantity: 2}).Return("r-1", nil)
	inv.On("Reserve", mock.Anything, "o-1", port.ReservationLine{ProductID: "p-2", Quantity: 1}).Return("r-2", nil)

	ids, err := NewCheckoutService(inv).PlaceOrder(context.Background(), "o-1", []OrderLine{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1", "r-2"}, ids)
	inv.AssertNotCalled(t, "ReleaseOrder", mock.Anything, mock.Anything)
}

func TestPlaceOrderReleasesOrderOnFailure(t *testing.T) {
	inv := new(mockInventory)
	inv.On("Reserve", mock.Anything, "o-1", port.ReservationLine{ProductID: "p-1", Quantity: 2}).Return("r-1", nil).Maybe()
	inv.On("Reserve", mock.Anything, "o-1", port.ReservationLine{ProductID: "p-2", Quantity: 9}).Return("", port.ErrOutOfStock)
	inv.On("ReleaseOrder", mock.Anything, "o-1").Return(int64(2), nil).Once()

	_, err := NewCheckoutService(inv).PlaceOrder(context.Background(), "o-1", []OrderLine{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", Quantity: 9},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrOutOfStock))
	assert.Contains(t, err.Error(), "p-2")
	inv.AssertExpectations(t)
}

func TestPlaceOrderRejectsEmptyOrder(t *testing.T) {
	inv := new(mockInventory)
	_, err := NewCheckoutService(inv).PlaceOrder(context.Background(), "o-1", nil)
	assert.True(t, errors.Is(err, ErrInvalidOrder))

	_, err = NewCheckoutService(inv).PlaceOrder(context.Background(), "o-1", []OrderLine{{ProductID: "p-1", Quantity: 0}})
	assert.True(t, errors.Is(err, ErrInvalidOrder))
	inv.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPaymentAndCancel(t *testing.T) {
	inv := new(mockInventory)
	inv.On("Commit", mock.Anything, "o-1").Return(int64(2), nil)
	inv.On("ReleaseOrder", mock.Anything, "o-2").Return(int64(0), errors.New("boom"))

	svc := NewCheckoutService(inv)
	assert.NoError(t, svc.ConfirmPayment(context.Background(), "o-1"))

	err := svc.Cancel(context.Background(), "o-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "o-2")
	inv.AssertExpectations(t)
}
