package application

// CreateProductRequest 是创建商品（并初始化库存）的请求体
type CreateProductRequest struct {
	ProductID string  `json:"productId"`
	SellerID  string  `json:"sellerId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
}

// ReserveRequest 是预占库存的请求体
type ReserveRequest struct {
	ProductID   string `json:"productId"`
	Quantity    int64  `json:"quantity"`
	OrderNumber string `json:"orderNumber"`
}

// ReleaseRequest 可以按预占 ID 释放，也可以按 (productId, quantity, orderNumber) 释放。
type ReleaseRequest struct {
	ReservationID string `json:"reservationId,omitempty"`
	ProductID     string `json:"productId,omitempty"`
	Quantity      int64  `json:"quantity,omitempty"`
	OrderNumber   string `json:"orderNumber,omitempty"`
}

type AdjustStockRequest struct {
	Quantity int64 `json:"quantity"`
}

// ReservationView 是预占成功后返回给调用方的数据
type ReservationView struct {
	ReservationID string `json:"reservationId"`
	ProductID     string `json:"productId"`
	Quantity      int64  `json:"quantity"`
	OrderNumber   string `json:"orderNumber"`
	ExpiresAt     string `json:"expiresAt"`
}

type StockView struct {
	ProductID         string `json:"productId"`
	AvailableQuantity int64  `json:"availableQuantity"`
}
