package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"buyone/internal/service/inventory/domain"
)

type stockEntry struct {
	available atomic.Int64
	version   atomic.Int64
}

// StockLedger 是进程内台账。每个商品的扣减是一个 CAS 循环，不持有全局锁。
type StockLedger struct {
	mu      sync.RWMutex
	entries map[string]*stockEntry

	creditMu sync.Mutex
	credits  map[string]struct{}
}

func NewStockLedger() *StockLedger {
	return &StockLedger{
		entries: make(map[string]*stockEntry),
		credits: make(map[string]struct{}),
	}
}

var _ domain.StockLedger = (*StockLedger)(nil)

func (l *StockLedger) entry(productID string) (*stockEntry, error) {
	l.mu.RLock()
	e, ok := l.entries[productID]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return e, nil
}

func (l *StockLedger) Get(_ context.Context, productID string) (int64, error) {
	e, err := l.entry(productID)
	if err != nil {
		return 0, err
	}
	return e.available.Load(), nil
}

func (l *StockLedger) Decrease(_ context.Context, productID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	e, err := l.entry(productID)
	if err != nil {
		return 0, err
	}
	for {
		cur := e.available.Load()
		if cur < amount {
			return cur, domain.ErrInsufficientStock
		}
		if e.available.CompareAndSwap(cur, cur-amount) {
			e.version.Add(1)
			return cur - amount, nil
		}
	}
}

func (l *StockLedger) Increase(_ context.Context, productID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	e, err := l.entry(productID)
	if err != nil {
		return 0, err
	}
	e.version.Add(1)
	return e.available.Add(amount), nil
}

func (l *StockLedger) CreditOnce(ctx context.Context, productID string, amount int64, reservationID string) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	if _, err := l.entry(productID); err != nil {
		return false, err
	}

	l.creditMu.Lock()
	defer l.creditMu.Unlock()
	if _, done := l.credits[reservationID]; done {
		return false, nil
	}
	if _, err := l.Increase(ctx, productID, amount); err != nil {
		return false, err
	}
	l.credits[reservationID] = struct{}{}
	return true, nil
}

func (l *StockLedger) Seed(_ context.Context, productID string, quantity int64) error {
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[productID]; ok {
		return domain.ErrProductExists
	}
	e := &stockEntry{}
	e.available.Store(quantity)
	l.entries[productID] = e
	return nil
}

func (l *StockLedger) Set(_ context.Context, productID string, quantity int64) error {
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	e, err := l.entry(productID)
	if err != nil {
		return err
	}
	e.available.Store(quantity)
	e.version.Add(1)
	return nil
}

// Version 返回商品的修改次数，测试用。
func (l *StockLedger) Version(productID string) int64 {
	e, err := l.entry(productID)
	if err != nil {
		return 0
	}
	return e.version.Load()
}
