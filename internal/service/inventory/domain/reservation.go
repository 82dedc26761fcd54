package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reservation 是一次有租约的库存预占。
// 记录存在 <=> 数量已从台账扣除且既未归还也未被提交消费。
type Reservation struct {
	ID          string
	ProductID   string
	Quantity    int64
	OrderNumber string
	CreatedAt   time.Time // 租约起点，UTC
}

// NewReservation 校验参数并生成带新 ID 的预占。数量校验先于其他校验。
func NewReservation(productID string, quantity int64, orderNumber string, now time.Time) (*Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if strings.TrimSpace(productID) == "" || strings.TrimSpace(orderNumber) == "" {
		return nil, ErrInvalidArgument
	}
	return &Reservation{
		ID:          uuid.NewString(),
		ProductID:   productID,
		Quantity:    quantity,
		OrderNumber: orderNumber,
		CreatedAt:   now.UTC(),
	}, nil
}

// IsStale 租约到期（now - CreatedAt >= lease）时为 true。
func (r *Reservation) IsStale(now time.Time, lease time.Duration) bool {
	return now.Sub(r.CreatedAt) >= lease
}

// ExpiryCutoff 返回 now 时刻下仍被视为过期的最晚 CreatedAt。
func ExpiryCutoff(now time.Time, lease time.Duration) time.Time {
	return now.Add(-lease).UTC()
}
