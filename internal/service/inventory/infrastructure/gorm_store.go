package infrastructure

import (
	"context"
	"time"

	"buyone/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormReservationStore 是 ReservationStore 的 GORM 实现
type GormReservationStore struct {
	db *gorm.DB
}

func NewGormReservationStore(db *gorm.DB) *GormReservationStore {
	return &GormReservationStore{db: db}
}

var _ domain.ReservationStore = (*GormReservationStore)(nil)

func (s *GormReservationStore) Create(ctx context.Context, r *domain.Reservation) error {
	if err := s.db.WithContext(ctx).Create(FromDomainReservation(r)).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.ErrDuplicateReservation
		}
		return errors.Wrap(err, "insert reservation")
	}
	return nil
}

func (s *GormReservationStore) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	var model ReservationModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, errors.Wrap(err, "query reservation")
	}
	return ToDomainReservation(&model), nil
}

func (s *GormReservationStore) FindByOrderNumber(ctx context.Context, orderNumber string) ([]*domain.Reservation, error) {
	var models []*ReservationModel
	err := s.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query reservations by order")
	}
	return toDomainReservations(models), nil
}

// FindExpired 走 idx_reservation_created 做范围扫描。
func (s *GormReservationStore) FindExpired(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.Reservation, error) {
	var models []*ReservationModel
	q := s.db.WithContext(ctx).
		Where("created_at <= ?", domain.ExpiryCutoff(now, lease)).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query expired reservations")
	}
	return toDomainReservations(models), nil
}

func (s *GormReservationStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&ReservationModel{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "delete reservation")
	}
	return res.RowsAffected > 0, nil
}

func (s *GormReservationStore) DeleteByOrderNumber(ctx context.Context, orderNumber string) (int64, error) {
	res := s.db.WithContext(ctx).Where("order_number = ?", orderNumber).Delete(&ReservationModel{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "delete reservations by order")
	}
	return res.RowsAffected, nil
}

func toDomainReservations(models []*ReservationModel) []*domain.Reservation {
	out := make([]*domain.Reservation, len(models))
	for i, m := range models {
		out[i] = ToDomainReservation(m)
	}
	return out
}
