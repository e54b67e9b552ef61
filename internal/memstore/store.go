// Package memstore is a deterministic in-memory implementation of the
// catalog, ledger and order stores plus the transaction manager. It backs
// service and handler tests; the production stores live on Postgres.
package memstore

import (
	"context"
	"sync"

	"github.com/medstok/go-pharmacy-orders/internal/catalog"
	"github.com/medstok/go-pharmacy-orders/internal/ledger"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
)

type Store struct {
	mu        sync.RWMutex
	medicines map[string]catalog.Medicine
	batches   map[string]ledger.Batch
	orders    map[string]orders.Order
	lines     map[string][]orders.Line
}

func New() *Store {
	return &Store{
		medicines: make(map[string]catalog.Medicine),
		batches:   make(map[string]ledger.Batch),
		orders:    make(map[string]orders.Order),
		lines:     make(map[string][]orders.Line),
	}
}

// A transaction holds the write lock for its whole duration, so operations
// invoked inside it must not lock again. The marker travels on the context.
type txKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(txKey{}).(bool)
	return ok && v
}

func (s *Store) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) wlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// TxManager serializes units of work behind the store's write lock and
// restores a snapshot when the unit fails, so a half-applied order or
// cancellation is never observable.
type TxManager struct{ S *Store }

func (m *TxManager) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	m.S.mu.Lock()
	defer m.S.mu.Unlock()

	snap := m.S.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.S.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	medicines map[string]catalog.Medicine
	batches   map[string]ledger.Batch
	orders    map[string]orders.Order
	lines     map[string][]orders.Line
}

func (s *Store) snapshot() snapshot {
	n := snapshot{
		medicines: make(map[string]catalog.Medicine, len(s.medicines)),
		batches:   make(map[string]ledger.Batch, len(s.batches)),
		orders:    make(map[string]orders.Order, len(s.orders)),
		lines:     make(map[string][]orders.Line, len(s.lines)),
	}
	for k, v := range s.medicines {
		n.medicines[k] = v
	}
	for k, v := range s.batches {
		n.batches[k] = v
	}
	for k, v := range s.orders {
		n.orders[k] = v
	}
	for k, v := range s.lines {
		cp := make([]orders.Line, len(v))
		copy(cp, v)
		n.lines[k] = cp
	}
	return n
}

func (s *Store) restore(n snapshot) {
	s.medicines = n.medicines
	s.batches = n.batches
	s.orders = n.orders
	s.lines = n.lines
}
