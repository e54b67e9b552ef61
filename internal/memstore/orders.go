package memstore

import (
	"context"
	"time"

	"github.com/medstok/go-pharmacy-orders/internal/orders"
)

// OrderStore implements orders.Store on the shared in-memory core. A
// transaction already holds the store's write lock, which stands in for the
// row lock GetForUpdate takes on Postgres.
type OrderStore struct{ s *Store }

func NewOrders(s *Store) *OrderStore { return &OrderStore{s: s} }

func (r *OrderStore) Insert(ctx context.Context, o orders.Order, lines []orders.Line) error {
	defer r.s.wlock(ctx)()
	r.s.orders[o.ID] = o
	cp := make([]orders.Line, len(lines))
	copy(cp, lines)
	r.s.lines[o.ID] = cp
	return nil
}

func (r *OrderStore) Get(ctx context.Context, id string) (orders.Order, error) {
	defer r.s.rlock(ctx)()
	o, ok := r.s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (r *OrderStore) GetForUpdate(ctx context.Context, id string) (orders.Order, error) {
	return r.Get(ctx, id)
}

func (r *OrderStore) Lines(ctx context.Context, orderID string) ([]orders.Line, error) {
	defer r.s.rlock(ctx)()
	ls, ok := r.s.lines[orderID]
	if !ok {
		return nil, nil
	}
	cp := make([]orders.Line, len(ls))
	copy(cp, ls)
	return cp, nil
}

func (r *OrderStore) SetStatus(ctx context.Context, id string, from, to orders.Status) error {
	defer r.s.wlock(ctx)()
	o, ok := r.s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.Status != from {
		return orders.ErrInvalidTransition
	}
	o.Status = to
	r.s.orders[id] = o
	return nil
}

func (r *OrderStore) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	defer r.s.wlock(ctx)()
	o, ok := r.s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.Status != orders.StatusDispatched || o.PaymentStatus != orders.PaymentPending {
		return orders.ErrInvalidTransition
	}
	o.Status = orders.StatusDelivered
	o.PaymentStatus = orders.PaymentPaid
	o.DeliveredAt = &at
	r.s.orders[id] = o
	return nil
}

func (r *OrderStore) SetPaymentStatus(ctx context.Context, id string, from, to orders.PaymentStatus) error {
	defer r.s.wlock(ctx)()
	o, ok := r.s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.PaymentStatus != from {
		return orders.ErrInvalidTransition
	}
	o.PaymentStatus = to
	r.s.orders[id] = o
	return nil
}
