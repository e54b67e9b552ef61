package catalog

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

func (r *PG) Create(ctx context.Context, m Medicine) error {
	_, err := r.q(ctx).Exec(ctx, `
		INSERT INTO medicines(id, name, brand, dosage_form, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Name, m.Brand, m.DosageForm, m.CreatedAt)
	return err
}

func (r *PG) Get(ctx context.Context, id string) (Medicine, error) {
	return r.scanOne(ctx, `
		SELECT id, name, brand, dosage_form, created_at
		FROM medicines WHERE id = $1`, id)
}

func (r *PG) Resolve(ctx context.Context, nameOrBrand string) (Medicine, error) {
	return r.scanOne(ctx, `
		SELECT id, name, brand, dosage_form, created_at
		FROM medicines
		WHERE lower(name) = lower($1) OR lower(brand) = lower($1)
		ORDER BY name LIMIT 1`, nameOrBrand)
}

func (r *PG) scanOne(ctx context.Context, sql string, args ...any) (Medicine, error) {
	var m Medicine
	err := r.q(ctx).QueryRow(ctx, sql, args...).
		Scan(&m.ID, &m.Name, &m.Brand, &m.DosageForm, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Medicine{}, ErrMedicineNotFound
	}
	if err != nil {
		return Medicine{}, err
	}
	return m, nil
}
