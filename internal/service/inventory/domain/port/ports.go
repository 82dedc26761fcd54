package port

import (
	"context"

	"buyone/internal/service/inventory/domain"
)

// EventPublisher 发布商品目录事件。
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event domain.ProductEvent) error
}

// AdmissionRequest 是准入策略看到的预占请求。
type AdmissionRequest struct {
	ProductID   string
	Quantity    int64
	OrderNumber string
}

// AdmissionPolicy 在扣减台账之前决定是否接受一次预占。
type AdmissionPolicy interface {
	Admit(ctx context.Context, req AdmissionRequest) (bool, error)
}

// Locker 提供跨副本互斥。拿不到锁时 acquired 为 false，且不返回错误。
type Locker interface {
	TryLock(ctx context.Context, name string) (unlock func(), acquired bool, err error)
}
