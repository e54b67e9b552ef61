package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medstok/go-pharmacy-orders/internal/catalog"
	"github.com/medstok/go-pharmacy-orders/internal/fulfillment"
	"github.com/medstok/go-pharmacy-orders/internal/ledger"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
	"github.com/medstok/go-pharmacy-orders/internal/postgres"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps the domain error taxonomy onto HTTP statuses. Stock and
// transition failures are conflicts, not client mistakes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fulfillment.ErrInvalidRequest),
		errors.Is(err, ledger.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errBody{err.Error(), "validation"})
	case errors.Is(err, catalog.ErrMedicineNotFound),
		errors.Is(err, ledger.ErrBatchNotFound),
		errors.Is(err, orders.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errBody{err.Error(), "not_found"})
	case errors.Is(err, ledger.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errBody{err.Error(), "insufficient_stock"})
	case errors.Is(err, ledger.ErrExpiredBatch):
		writeJSON(w, http.StatusConflict, errBody{err.Error(), "expired_batch"})
	case errors.Is(err, orders.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errBody{err.Error(), "invalid_transition"})
	case errors.Is(err, postgres.ErrTxConflict):
		writeJSON(w, http.StatusServiceUnavailable, errBody{"temporary conflict, retry", "conflict"})
	default:
		writeJSON(w, http.StatusInternalServerError, errBody{"internal error", "internal"})
	}
}
