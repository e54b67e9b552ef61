package orders

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Store interface {
	// Insert writes the header and all lines. Callers wrap it in the same
	// unit of work as the stock deductions.
	Insert(ctx context.Context, o Order, lines []Line) error

	Get(ctx context.Context, id string) (Order, error)

	// GetForUpdate locks the order row until the surrounding unit of work
	// ends, so cancellation's read-check-restock sequence is exclusive.
	GetForUpdate(ctx context.Context, id string) (Order, error)

	Lines(ctx context.Context, orderID string) ([]Line, error)

	// SetStatus applies from->to as a compare-and-swap on the status
	// column. ErrInvalidTransition when the order is no longer in from.
	SetStatus(ctx context.Context, id string, from, to Status) error

	// MarkDelivered is the composite COD settlement: status delivered,
	// payment paid, delivered_at set, in one conditional update from
	// dispatched/pending.
	MarkDelivered(ctx context.Context, id string, at time.Time) error

	// SetPaymentStatus applies a payment CAS (refund path).
	SetPaymentStatus(ctx context.Context, id string, from, to PaymentStatus) error
}
