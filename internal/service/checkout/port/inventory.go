package port

import (
	"context"
	"errors"
)

var (
	// ErrOutOfStock 库存服务以 409 OUT_OF_STOCK 拒绝了预占。
	ErrOutOfStock     = errors.New("out of stock")
	ErrUnknownProduct = errors.New("unknown product")
)

// ReservationLine 是一次预占请求中的一行。
type ReservationLine struct {
	ProductID string
	Quantity  int64
}

// InventoryService 是库存服务的出站端口。
type InventoryService interface {
	// Reserve 为订单的一行预占库存，返回预占 ID。
	Reserve(ctx context.Context, orderNumber string, line ReservationLine) (reservationID string, err error)
	// Release 按预占 ID 释放，重复调用安全。
	Release(ctx context.Context, reservationID string) error
	// Commit 在支付成功后提交订单的全部预占。
	Commit(ctx context.Context, orderNumber string) (int64, error)
	// ReleaseOrder 是 Reserve 的补偿操作，释放订单的全部预占。
	ReleaseOrder(ctx context.Context, orderNumber string) (int64, error)
}
