package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medstok/go-pharmacy-orders/internal/catalog"
	"github.com/medstok/go-pharmacy-orders/internal/ledger"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
)

type Service struct {
	Catalog catalog.Store
	Ledger  ledger.Store
	Orders  orders.Store
	Tx      TxManager
	Log     *zap.Logger

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CreateOrder allocates every requested line and writes the order as one
// atomic unit: any line failure rolls back all earlier deductions before the
// error surfaces.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (orders.Order, []orders.Line, error) {
	if err := validateCreate(req); err != nil {
		return orders.Order{}, nil, err
	}

	planner := &Planner{Ledger: s.Ledger}
	now := s.now()
	o := orders.Order{
		ID:             uuid.NewString(),
		CustomerID:     req.CustomerID,
		PharmacyID:     req.PharmacyID,
		PrescriptionID: req.PrescriptionID,
		Status:         orders.StatusProcessing,
		PaymentStatus:  orders.PaymentPending,
		PlacedAt:       now,
	}
	var lines []orders.Line

	err := s.Tx.Within(ctx, func(ctx context.Context) error {
		lines = lines[:0]
		o.TotalCents = 0
		for i, lr := range req.Lines {
			if _, err := s.Catalog.Get(ctx, lr.MedicineID); err != nil {
				return err
			}
			alloc, err := planner.PlanLine(ctx, req.PharmacyID, lr, now)
			if err != nil {
				return fmt.Errorf("line %d: %w", i, err)
			}
			lines = append(lines, orders.Line{
				ID:             uuid.NewString(),
				OrderID:        o.ID,
				MedicineID:     alloc.MedicineID,
				BatchID:        alloc.BatchID,
				Quantity:       alloc.Quantity,
				UnitPriceCents: alloc.UnitPriceCents,
				SubtotalCents:  alloc.SubtotalCents,
			})
			o.TotalCents += alloc.SubtotalCents
		}
		return s.Orders.Insert(ctx, o, lines)
	})
	if err != nil {
		return orders.Order{}, nil, err
	}

	s.Log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("pharmacy_id", o.PharmacyID),
		zap.Int64("total_cents", o.TotalCents),
		zap.Int("lines", len(lines)))
	return o, lines, nil
}

// Advance moves an order along a plain edge of the status graph (ready,
// dispatched). Delivery and cancellation carry side effects and go through
// MarkDelivered and Cancel.
func (s *Service) Advance(ctx context.Context, orderID string, target orders.Status) (orders.Order, error) {
	if target == orders.StatusDelivered || target == orders.StatusCancelled {
		return orders.Order{}, fmt.Errorf("%w: status %s has a dedicated transition", ErrInvalidRequest, target)
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if !orders.CanTransition(o.Status, target) {
		return orders.Order{}, orders.ErrInvalidTransition
	}
	if err := s.Orders.SetStatus(ctx, orderID, o.Status, target); err != nil {
		return orders.Order{}, err
	}
	o.Status = target
	s.Log.Info("order advanced", zap.String("order_id", orderID), zap.String("status", string(target)))
	return o, nil
}

// MarkDelivered settles a cash-on-delivery order: delivered + paid +
// delivered_at in one conditional update. A repeat call fails.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (orders.Order, error) {
	at := s.now()
	if err := s.Orders.MarkDelivered(ctx, orderID, at); err != nil {
		return orders.Order{}, err
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	s.Log.Info("order delivered", zap.String("order_id", orderID))
	return o, nil
}

// Cancel restocks every line's batch and marks the order cancelled, as one
// atomic unit. Restocks apply in reverse line order, mirroring allocation.
func (s *Service) Cancel(ctx context.Context, orderID string) (orders.Order, []orders.Line, error) {
	var o orders.Order
	var lines []orders.Line

	err := s.Tx.Within(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !orders.Cancellable(o.Status) {
			return orders.ErrInvalidTransition
		}
		lines, err = s.Orders.Lines(ctx, orderID)
		if err != nil {
			return err
		}
		for i := len(lines) - 1; i >= 0; i-- {
			if err := s.Ledger.Restock(ctx, lines[i].BatchID, lines[i].Quantity); err != nil {
				return err
			}
		}
		return s.Orders.SetStatus(ctx, orderID, o.Status, orders.StatusCancelled)
	})
	if err != nil {
		return orders.Order{}, nil, err
	}

	o.Status = orders.StatusCancelled
	s.Log.Info("order cancelled", zap.String("order_id", orderID), zap.Int("restocked_lines", len(lines)))
	return o, lines, nil
}

// Refund flips payment paid -> refunded on a delivered order (post-delivery
// return path). Stock does not move; the goods already left the pharmacy.
func (s *Service) Refund(ctx context.Context, orderID string) (orders.Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if o.Status != orders.StatusDelivered || !orders.CanTransitionPayment(o.PaymentStatus, orders.PaymentRefunded) {
		return orders.Order{}, orders.ErrInvalidTransition
	}
	if err := s.Orders.SetPaymentStatus(ctx, orderID, o.PaymentStatus, orders.PaymentRefunded); err != nil {
		return orders.Order{}, err
	}
	o.PaymentStatus = orders.PaymentRefunded
	return o, nil
}

// GetOrder reads the order header.
func (s *Service) GetOrder(ctx context.Context, orderID string) (orders.Order, error) {
	return s.Orders.Get(ctx, orderID)
}

// AddStock creates a batch or tops up an existing one (same pharmacy,
// medicine and batch number).
func (s *Service) AddStock(ctx context.Context, b ledger.Batch) (ledger.Batch, error) {
	switch {
	case b.PharmacyID == "" || b.MedicineID == "" || b.BatchNo == "":
		return ledger.Batch{}, fmt.Errorf("%w: pharmacy_id, medicine_id and batch_no are required", ErrInvalidRequest)
	case b.Quantity <= 0:
		return ledger.Batch{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	case b.UnitPriceCents <= 0:
		return ledger.Batch{}, fmt.Errorf("%w: price must be positive", ErrInvalidRequest)
	case b.Expired(s.now()):
		return ledger.Batch{}, fmt.Errorf("%w: expiry date must be in the future", ErrInvalidRequest)
	}
	if _, err := s.Catalog.Get(ctx, b.MedicineID); err != nil {
		return ledger.Batch{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	id, err := s.Ledger.AddStock(ctx, b)
	if err != nil {
		return ledger.Batch{}, err
	}
	return s.Ledger.Get(ctx, id)
}

func validateCreate(req CreateOrderRequest) error {
	switch {
	case req.PharmacyID == "":
		return fmt.Errorf("%w: pharmacy_id is required", ErrInvalidRequest)
	case req.CustomerID == "":
		return fmt.Errorf("%w: customer_id is required", ErrInvalidRequest)
	case len(req.Lines) == 0:
		return fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}
	for i, l := range req.Lines {
		switch {
		case l.MedicineID == "":
			return fmt.Errorf("%w: item %d: medicine_id is required", ErrInvalidRequest, i)
		case l.Quantity <= 0:
			return fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidRequest, i)
		case l.PriceCents <= 0:
			return fmt.Errorf("%w: item %d: price must be positive", ErrInvalidRequest, i)
		}
	}
	return nil
}
