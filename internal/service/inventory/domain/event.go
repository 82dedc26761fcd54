package domain

import "time"

type ProductEventType string

const (
	EventProductCreated       ProductEventType = "ProductCreated"
	EventProductStockAdjusted ProductEventType = "ProductStockAdjusted"
)

// ProductEvent 发往 product-events topic。预占、释放、提交都不会产生事件。
type ProductEvent struct {
	Type       ProductEventType `json:"type"`
	ProductID  string           `json:"productId"`
	SellerID   string           `json:"sellerId,omitempty"`
	Name       string           `json:"name,omitempty"`
	Price      float64          `json:"price,omitempty"`
	Quantity   int64            `json:"quantity"`
	OccurredAt time.Time        `json:"occurredAt"`
}

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatusChanged 由订单服务发布，驱动提交或释放。
type OrderStatusChanged struct {
	OrderNumber string      `json:"orderNumber"`
	Status      OrderStatus `json:"status"`
}
