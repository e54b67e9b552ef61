package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/medstok/go-pharmacy-orders/internal/ledger"
)

// Planner turns one requested line into an applied allocation. It runs
// inside the orchestrator's unit of work, so a deduction it applies rolls
// back with everything else when a later line fails.
type Planner struct {
	Ledger ledger.Store
}

// PlanLine validates the line against the ledger and deducts the quantity
// from exactly one batch. One line never splits across batches: with an
// explicit batch the deduction happens there or not at all, and FEFO
// auto-selection only ever considers the earliest-expiring candidate.
func (p *Planner) PlanLine(ctx context.Context, pharmacyID string, req LineRequest, now time.Time) (Allocation, error) {
	batchID := req.BatchID
	if batchID != "" {
		b, err := p.Ledger.Get(ctx, batchID)
		if err != nil {
			return Allocation{}, err
		}
		if b.PharmacyID != pharmacyID {
			// a foreign batch is indistinguishable from a missing one
			return Allocation{}, ledger.ErrBatchNotFound
		}
		if b.MedicineID != req.MedicineID {
			return Allocation{}, fmt.Errorf("%w: batch %s does not hold medicine %s",
				ErrInvalidRequest, batchID, req.MedicineID)
		}
		if b.Expired(now) {
			return Allocation{}, ledger.ErrExpiredBatch
		}
	} else {
		candidates, err := p.Ledger.CandidatesFor(ctx, req.MedicineID, pharmacyID)
		if err != nil {
			return Allocation{}, err
		}
		if len(candidates) == 0 || candidates[0].Quantity < req.Quantity {
			return Allocation{}, ledger.ErrInsufficientStock
		}
		batchID = candidates[0].ID
	}

	if err := p.Ledger.Deduct(ctx, batchID, req.Quantity); err != nil {
		return Allocation{}, err
	}
	return Allocation{
		BatchID:        batchID,
		MedicineID:     req.MedicineID,
		Quantity:       req.Quantity,
		UnitPriceCents: req.PriceCents,
		SubtotalCents:  req.Quantity * req.PriceCents,
	}, nil
}
