package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medstok/go-pharmacy-orders/internal/postgres"
)

type PG struct{ DB *pgxpool.Pool }

func (r *PG) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFrom(ctx, r.DB)
}

const batchCols = `id, pharmacy_id, medicine_id, batch_no, quantity, unit_price_cents, expiry_date, created_at, updated_at`

func (r *PG) Get(ctx context.Context, batchID string) (Batch, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT `+batchCols+` FROM batches WHERE id = $1`, batchID)
	return scanBatch(row)
}

func (r *PG) AddStock(ctx context.Context, b Batch) (string, error) {
	var id string
	err := r.q(ctx).QueryRow(ctx, `
		INSERT INTO batches(id, pharmacy_id, medicine_id, batch_no, quantity, unit_price_cents, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pharmacy_id, medicine_id, batch_no)
		DO UPDATE SET quantity = batches.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING id`,
		b.ID, b.PharmacyID, b.MedicineID, b.BatchNo, b.Quantity, b.UnitPriceCents, b.ExpiryDate,
	).Scan(&id)
	return id, err
}

func (r *PG) Deduct(ctx context.Context, batchID string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ct, err := r.q(ctx).Exec(ctx, `
		UPDATE batches SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2`, batchID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	// distinguish a missing batch from a short one
	if _, err := r.Get(ctx, batchID); err != nil {
		return err
	}
	return ErrInsufficientStock
}

func (r *PG) Restock(ctx context.Context, batchID string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ct, err := r.q(ctx).Exec(ctx, `
		UPDATE batches SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1`, batchID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrBatchNotFound
	}
	return nil
}

func (r *PG) CandidatesFor(ctx context.Context, medicineID, pharmacyID string) ([]Batch, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT `+batchCols+` FROM batches
		WHERE medicine_id = $1 AND pharmacy_id = $2
		  AND expiry_date > now() AND quantity > 0
		ORDER BY expiry_date ASC, id ASC`, medicineID, pharmacyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PG) AggregateAvailable(ctx context.Context, medicineID, pharmacyID string) (int64, error) {
	var total int64
	err := r.q(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM batches
		WHERE medicine_id = $1 AND pharmacy_id = $2 AND expiry_date > now()`,
		medicineID, pharmacyID).Scan(&total)
	return total, err
}

func (r *PG) AggregateByPharmacy(ctx context.Context, pharmacyID string) ([]MedicineStock, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT medicine_id, COALESCE(SUM(quantity), 0) FROM batches
		WHERE pharmacy_id = $1 AND expiry_date > now()
		GROUP BY medicine_id ORDER BY medicine_id`, pharmacyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MedicineStock
	for rows.Next() {
		var s MedicineStock
		if err := rows.Scan(&s.MedicineID, &s.Available); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.PharmacyID, &b.MedicineID, &b.BatchNo,
		&b.Quantity, &b.UnitPriceCents, &b.ExpiryDate, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	return b, nil
}
