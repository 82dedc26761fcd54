package domain

import (
	"context"
	"time"
)

// StockLedger 是每个商品可用库存的权威来源。所有修改都是单条件原子更新。
type StockLedger interface {
	Get(ctx context.Context, productID string) (int64, error)
	// Decrease 仅在 amount <= 可用量时扣减，否则返回 ErrInsufficientStock 且不做任何修改。
	Decrease(ctx context.Context, productID string, amount int64) (int64, error)
	Increase(ctx context.Context, productID string, amount int64) (int64, error)
	// CreditOnce 以预占 ID 为幂等键归还库存；同一 ID 的第二次调用返回 applied=false。
	CreditOnce(ctx context.Context, productID string, amount int64, reservationID string) (applied bool, err error)
	Seed(ctx context.Context, productID string, quantity int64) error
	Set(ctx context.Context, productID string, quantity int64) error
}

// ReservationStore 持久化预占记录。
type ReservationStore interface {
	Create(ctx context.Context, r *Reservation) error
	FindByID(ctx context.Context, id string) (*Reservation, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) ([]*Reservation, error)
	// FindExpired 返回 CreatedAt <= now-lease 的记录，最旧的在前，最多 limit 条。
	FindExpired(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*Reservation, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteByOrderNumber(ctx context.Context, orderNumber string) (int64, error)
}
