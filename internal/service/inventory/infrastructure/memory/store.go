package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"buyone/internal/service/inventory/domain"
)

// ReservationStore 是进程内的预占存储。
type ReservationStore struct {
	mu      sync.RWMutex
	records map[string]domain.Reservation
}

func NewReservationStore() *ReservationStore {
	return &ReservationStore{records: make(map[string]domain.Reservation)}
}

var _ domain.ReservationStore = (*ReservationStore)(nil)

func (s *ReservationStore) Create(_ context.Context, r *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return domain.ErrDuplicateReservation
	}
	s.records[r.ID] = *r
	return nil
}

func (s *ReservationStore) FindByID(_ context.Context, id string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return &r, nil
}

func (s *ReservationStore) FindByOrderNumber(_ context.Context, orderNumber string) ([]*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Reservation
	for _, r := range s.records {
		if r.OrderNumber == orderNumber {
			r := r
			out = append(out, &r)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *ReservationStore) FindExpired(_ context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.Reservation, error) {
	cutoff := domain.ExpiryCutoff(now, lease)
	s.mu.RLock()
	var out []*domain.Reservation
	for _, r := range s.records {
		if !r.CreatedAt.After(cutoff) {
			r := r
			out = append(out, &r)
		}
	}
	s.mu.RUnlock()

	sortByCreatedAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ReservationStore) DeleteByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *ReservationStore) DeleteByOrderNumber(_ context.Context, orderNumber string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.records {
		if r.OrderNumber == orderNumber {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Len 返回当前记录数，测试用。
func (s *ReservationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func sortByCreatedAt(rs []*domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
