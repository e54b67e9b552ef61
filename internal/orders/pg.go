package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medstok/go-pharmacy-orders/internal/postgres"
)

type PG struct{ DB *pgxpool.Pool }

func (r *PG) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFrom(ctx, r.DB)
}

const orderCols = `id, customer_id, pharmacy_id, prescription_id, total_cents, status, payment_status, placed_at, delivered_at`

func (r *PG) Insert(ctx context.Context, o Order, lines []Line) error {
	q := r.q(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO orders(id, customer_id, pharmacy_id, prescription_id, total_cents, status, payment_status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.CustomerID, o.PharmacyID, o.PrescriptionID, o.TotalCents, o.Status, o.PaymentStatus, o.PlacedAt)
	if err != nil {
		return err
	}
	for _, l := range lines {
		_, err = q.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, medicine_id, batch_id, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.ID, l.OrderID, l.MedicineID, l.BatchID, l.Quantity, l.UnitPriceCents, l.SubtotalCents)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PG) Get(ctx context.Context, id string) (Order, error) {
	return scanOrder(r.q(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
}

func (r *PG) GetForUpdate(ctx context.Context, id string) (Order, error) {
	return scanOrder(r.q(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func (r *PG) Lines(ctx context.Context, orderID string) ([]Line, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT id, order_id, medicine_id, batch_id, quantity, unit_price_cents, subtotal_cents
		FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.MedicineID, &l.BatchID,
			&l.Quantity, &l.UnitPriceCents, &l.SubtotalCents); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PG) SetStatus(ctx context.Context, id string, from, to Status) error {
	ct, err := r.q(ctx).Exec(ctx, `
		UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return r.transitionFailure(ctx, id)
}

func (r *PG) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	ct, err := r.q(ctx).Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, delivered_at = $4
		WHERE id = $1 AND status = $5 AND payment_status = $6`,
		id, StatusDelivered, PaymentPaid, at, StatusDispatched, PaymentPending)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return r.transitionFailure(ctx, id)
}

func (r *PG) SetPaymentStatus(ctx context.Context, id string, from, to PaymentStatus) error {
	ct, err := r.q(ctx).Exec(ctx, `
		UPDATE orders SET payment_status = $3 WHERE id = $1 AND payment_status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return r.transitionFailure(ctx, id)
}

// transitionFailure tells a missing order apart from a CAS loss.
func (r *PG) transitionFailure(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.PharmacyID, &o.PrescriptionID,
		&o.TotalCents, &o.Status, &o.PaymentStatus, &o.PlacedAt, &o.DeliveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}
