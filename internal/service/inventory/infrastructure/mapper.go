package infrastructure

import (
	"buyone/internal/service/inventory/domain"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const mysqlErrDuplicateEntry = 1062

// ToDomainReservation 将数据库模型转换为领域模型
func ToDomainReservation(model *ReservationModel) *domain.Reservation {
	if model == nil {
		return nil
	}
	return &domain.Reservation{
		ID:          model.ID,
		ProductID:   model.ProductID,
		Quantity:    model.Quantity,
		OrderNumber: model.OrderNumber,
		CreatedAt:   model.CreatedAt.UTC(),
	}
}

// FromDomainReservation 将领域模型转换为数据库模型
func FromDomainReservation(r *domain.Reservation) *ReservationModel {
	if r == nil {
		return nil
	}
	return &ReservationModel{
		ID:          r.ID,
		ProductID:   r.ProductID,
		Quantity:    r.Quantity,
		OrderNumber: r.OrderNumber,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func ToDomainStock(model *ProductStockModel) *domain.ProductStock {
	if model == nil {
		return nil
	}
	return &domain.ProductStock{
		ProductID:         model.ProductID,
		AvailableQuantity: model.AvailableQuantity,
		Version:           model.Version,
		UpdatedAt:         model.UpdatedAt,
	}
}

// isDuplicateKey 识别 MySQL 1062 主键/唯一键冲突。
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
