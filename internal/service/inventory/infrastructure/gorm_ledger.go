package infrastructure

import (
	"context"
	"time"

	"buyone/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormStockLedger 是 StockLedger 的 MySQL 实现。扣减是带 available_quantity >= ? 条件的单条 UPDATE。
type GormStockLedger struct {
	db *gorm.DB
}

func NewGormStockLedger(db *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: db}
}

var _ domain.StockLedger = (*GormStockLedger)(nil)

func (l *GormStockLedger) Get(ctx context.Context, productID string) (int64, error) {
	return l.get(l.db.WithContext(ctx), productID)
}

func (l *GormStockLedger) get(db *gorm.DB, productID string) (int64, error) {
	var model ProductStockModel
	err := db.Select("available_quantity").Where("product_id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrProductNotFound
		}
		return 0, errors.Wrap(err, "query product stock")
	}
	return model.AvailableQuantity, nil
}

func (l *GormStockLedger) Decrease(ctx context.Context, productID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	var remaining int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ProductStockModel{}).
			Where("product_id = ? AND available_quantity >= ?", productID, amount).
			Updates(map[string]interface{}{
				"available_quantity": gorm.Expr("available_quantity - ?", amount),
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "decrease stock")
		}
		if res.RowsAffected == 0 {
			// 区分商品不存在与库存不足
			cur, err := l.get(tx, productID)
			if err != nil {
				return err
			}
			remaining = cur
			return domain.ErrInsufficientStock
		}
		cur, err := l.get(tx, productID)
		remaining = cur
		return err
	})
	return remaining, err
}

func (l *GormStockLedger) Increase(ctx context.Context, productID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	var updated int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.add(tx, productID, amount); err != nil {
			return err
		}
		cur, err := l.get(tx, productID)
		updated = cur
		return err
	})
	return updated, err
}

func (l *GormStockLedger) add(tx *gorm.DB, productID string, amount int64) error {
	res := tx.Model(&ProductStockModel{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"available_quantity": gorm.Expr("available_quantity + ?", amount),
			"version":            gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "increase stock")
	}
	if res.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// CreditOnce 在同一事务中写入 stock_credits 并加库存；主键冲突说明已经归还过。
func (l *GormStockLedger) CreditOnce(ctx context.Context, productID string, amount int64, reservationID string) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	var applied bool
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credit := &StockCreditModel{
			ReservationID: reservationID,
			ProductID:     productID,
			Quantity:      amount,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(credit).Error; err != nil {
			if isDuplicateKey(err) {
				return nil
			}
			return errors.Wrap(err, "insert stock credit")
		}
		if err := l.add(tx, productID, amount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (l *GormStockLedger) Seed(ctx context.Context, productID string, quantity int64) error {
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	err := l.db.WithContext(ctx).Create(&ProductStockModel{
		ProductID:         productID,
		AvailableQuantity: quantity,
	}).Error
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrProductExists
		}
		return errors.Wrap(err, "seed product stock")
	}
	return nil
}

func (l *GormStockLedger) Set(ctx context.Context, productID string, quantity int64) error {
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	res := l.db.WithContext(ctx).Model(&ProductStockModel{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"available_quantity": quantity,
			"version":            gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "set product stock")
	}
	if res.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// PruneCredits 删除早于 before 的归还记录。保留窗口必须远大于租约，
// 否则一个在删除前读到记录的并发 Release 可能再次归还。
func (l *GormStockLedger) PruneCredits(ctx context.Context, before time.Time) (int64, error) {
	res := l.db.WithContext(ctx).Where("created_at < ?", before.UTC()).Delete(&StockCreditModel{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "prune stock credits")
	}
	return res.RowsAffected, nil
}
