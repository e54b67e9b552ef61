package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medstok/go-pharmacy-orders/internal/ledger"
)

// LedgerStore implements ledger.Store on the shared in-memory core.
type LedgerStore struct{ s *Store }

func NewLedger(s *Store) *LedgerStore { return &LedgerStore{s: s} }

func (l *LedgerStore) Get(ctx context.Context, batchID string) (ledger.Batch, error) {
	defer l.s.rlock(ctx)()
	b, ok := l.s.batches[batchID]
	if !ok {
		return ledger.Batch{}, ledger.ErrBatchNotFound
	}
	return b, nil
}

func (l *LedgerStore) AddStock(ctx context.Context, b ledger.Batch) (string, error) {
	defer l.s.wlock(ctx)()
	for id, existing := range l.s.batches {
		if existing.PharmacyID == b.PharmacyID &&
			existing.MedicineID == b.MedicineID &&
			existing.BatchNo == b.BatchNo {
			existing.Quantity += b.Quantity
			existing.UpdatedAt = time.Now()
			l.s.batches[id] = existing
			return id, nil
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	l.s.batches[b.ID] = b
	return b.ID, nil
}

func (l *LedgerStore) Deduct(ctx context.Context, batchID string, qty int64) error {
	if qty <= 0 {
		return ledger.ErrInvalidQuantity
	}
	defer l.s.wlock(ctx)()
	b, ok := l.s.batches[batchID]
	if !ok {
		return ledger.ErrBatchNotFound
	}
	if b.Quantity < qty {
		return ledger.ErrInsufficientStock
	}
	b.Quantity -= qty
	b.UpdatedAt = time.Now()
	l.s.batches[batchID] = b
	return nil
}

func (l *LedgerStore) Restock(ctx context.Context, batchID string, qty int64) error {
	if qty <= 0 {
		return ledger.ErrInvalidQuantity
	}
	defer l.s.wlock(ctx)()
	b, ok := l.s.batches[batchID]
	if !ok {
		return ledger.ErrBatchNotFound
	}
	b.Quantity += qty
	b.UpdatedAt = time.Now()
	l.s.batches[batchID] = b
	return nil
}

func (l *LedgerStore) CandidatesFor(ctx context.Context, medicineID, pharmacyID string) ([]ledger.Batch, error) {
	defer l.s.rlock(ctx)()
	now := time.Now()
	var out []ledger.Batch
	for _, b := range l.s.batches {
		if b.MedicineID == medicineID && b.PharmacyID == pharmacyID &&
			!b.Expired(now) && b.Quantity > 0 {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (l *LedgerStore) AggregateAvailable(ctx context.Context, medicineID, pharmacyID string) (int64, error) {
	defer l.s.rlock(ctx)()
	now := time.Now()
	var total int64
	for _, b := range l.s.batches {
		if b.MedicineID == medicineID && b.PharmacyID == pharmacyID && !b.Expired(now) {
			total += b.Quantity
		}
	}
	return total, nil
}

func (l *LedgerStore) AggregateByPharmacy(ctx context.Context, pharmacyID string) ([]ledger.MedicineStock, error) {
	defer l.s.rlock(ctx)()
	now := time.Now()
	sums := make(map[string]int64)
	for _, b := range l.s.batches {
		if b.PharmacyID == pharmacyID && !b.Expired(now) {
			sums[b.MedicineID] += b.Quantity
		}
	}
	out := make([]ledger.MedicineStock, 0, len(sums))
	for id, q := range sums {
		out = append(out, ledger.MedicineStock{MedicineID: id, Available: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MedicineID < out[j].MedicineID })
	return out, nil
}
