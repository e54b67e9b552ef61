// Package fulfillment coordinates order creation against the batch ledger
// and drives orders through the status/payment state machine.
package fulfillment

import (
	"context"
	"errors"
)

var ErrInvalidRequest = errors.New("invalid request")

// TxManager runs fn as one atomic unit of work: either every mutation inside
// commits, or none do. Postgres and the in-memory store both provide one.
type TxManager interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}

type LineRequest struct {
	MedicineID string `json:"medicine_id"`
	// BatchID is the pharmacist's manual pick; empty means FEFO
	// auto-selection.
	BatchID    string `json:"batch_id,omitempty"`
	Quantity   int64  `json:"quantity"`
	PriceCents int64  `json:"price"`
}

type CreateOrderRequest struct {
	CustomerID     string        `json:"customer_id"`
	PharmacyID     string        `json:"pharmacy_id"`
	PrescriptionID *string       `json:"prescription_id,omitempty"`
	Lines          []LineRequest `json:"items"`
}

// Allocation is the planner's validated decision for one line: the exact
// batch debited and the priced quantities.
type Allocation struct {
	BatchID        string
	MedicineID     string
	Quantity       int64
	UnitPriceCents int64
	SubtotalCents  int64
}
