package infrastructure

import "time"

// ProductStockModel 对应 product_stocks 表，是台账的持久化形式
type ProductStockModel struct {
	ProductID         string `gorm:"primaryKey;type:varchar(64)"`
	AvailableQuantity int64  `gorm:"not null;check:chk_available_non_negative,available_quantity >= 0"`
	Version           int64  `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductStockModel) TableName() string {
	return "product_stocks"
}

// ReservationModel 对应 stock_reservations 表。不使用软删除：删除即回收的提交点。
type ReservationModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	ProductID   string    `gorm:"type:varchar(64);not null"`
	Quantity    int64     `gorm:"not null"`
	OrderNumber string    `gorm:"type:varchar(64);not null;index:idx_reservation_order"`
	CreatedAt   time.Time `gorm:"type:datetime(6);not null;index:idx_reservation_created"`
}

func (ReservationModel) TableName() string {
	return "stock_reservations"
}

// StockCreditModel 对应 stock_credits 表：每个预占 ID 至多一次归还
type StockCreditModel struct {
	ReservationID string    `gorm:"primaryKey;type:varchar(36)"`
	ProductID     string    `gorm:"type:varchar(64);not null"`
	Quantity      int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"type:datetime(6);index:idx_credit_created"`
}

func (StockCreditModel) TableName() string {
	return "stock_credits"
}
