package domain

import "errors"

var (
	// ErrInsufficientStock 请求数量大于可用库存，台账未被修改。
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity 数量必须为正。
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrProductNotFound 台账中没有该商品。
	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicateReservation 预占 ID 冲突。
	ErrDuplicateReservation = errors.New("duplicate reservation")

	ErrReservationNotFound = errors.New("reservation not found")
	ErrProductExists       = errors.New("product already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrReservationRejected = errors.New("reservation rejected by admission policy")
)
