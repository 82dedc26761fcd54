package domain

import "time"

// ProductStock 是台账中的一行。AvailableQuantity 已经扣除了所有有效预占，永不为负。
type ProductStock struct {
	ProductID         string
	AvailableQuantity int64
	Version           int64
	UpdatedAt         time.Time
}
