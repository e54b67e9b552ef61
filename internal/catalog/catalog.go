// Package catalog holds the medicine reference data. Medicines are created
// administratively and never mutated during fulfillment.
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrMedicineNotFound = errors.New("medicine not found")

type Medicine struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Brand      string    `json:"brand"`
	DosageForm string    `json:"dosage_form"`
	CreatedAt  time.Time `json:"created_at"`
}

type Store interface {
	Create(ctx context.Context, m Medicine) error
	Get(ctx context.Context, id string) (Medicine, error)
	// Resolve maps a name or brand to the canonical medicine record.
	Resolve(ctx context.Context, nameOrBrand string) (Medicine, error)
}
