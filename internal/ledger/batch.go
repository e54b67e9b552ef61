// Package ledger is the stock of record: per-pharmacy, per-medicine batches.
// All quantity mutation goes through this package.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrBatchNotFound     = errors.New("batch not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrExpiredBatch      = errors.New("batch expired")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Batch is a discrete lot of one medicine held by one pharmacy. Batches are
// never deleted; expired ones stay queryable but are excluded from
// allocation.
type Batch struct {
	ID             string    `json:"id"`
	PharmacyID     string    `json:"pharmacy_id"`
	MedicineID     string    `json:"medicine_id"`
	BatchNo        string    `json:"batch_no"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	ExpiryDate     time.Time `json:"expiry_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (b Batch) Expired(now time.Time) bool {
	return !b.ExpiryDate.After(now)
}

// MedicineStock is one row of the per-pharmacy availability rollup.
type MedicineStock struct {
	MedicineID string `json:"medicine_id"`
	Available  int64  `json:"available"`
}

type Store interface {
	Get(ctx context.Context, batchID string) (Batch, error)

	// AddStock inserts a new batch, or increments quantity when a batch
	// with the same (pharmacy, medicine, batch_no) already exists. Returns
	// the batch id.
	AddStock(ctx context.Context, b Batch) (string, error)

	// Deduct atomically subtracts qty only if the current quantity covers
	// it; otherwise ErrInsufficientStock with no mutation. Single
	// conditional update, never read-then-write.
	Deduct(ctx context.Context, batchID string, qty int64) error

	// Restock atomically adds qty back (cancellation compensation).
	Restock(ctx context.Context, batchID string, qty int64) error

	// CandidatesFor returns non-expired batches with quantity > 0 for the
	// medicine at the pharmacy, ordered by ascending expiry (FEFO).
	CandidatesFor(ctx context.Context, medicineID, pharmacyID string) ([]Batch, error)

	// AggregateAvailable sums quantity over non-expired batches.
	AggregateAvailable(ctx context.Context, medicineID, pharmacyID string) (int64, error)

	// AggregateByPharmacy rolls availability up per medicine.
	AggregateByPharmacy(ctx context.Context, pharmacyID string) ([]MedicineStock, error)
}
