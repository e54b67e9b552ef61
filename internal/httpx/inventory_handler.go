package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medstok/go-pharmacy-orders/internal/fulfillment"
	"github.com/medstok/go-pharmacy-orders/internal/ledger"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
	"github.com/medstok/go-pharmacy-orders/internal/redisx"
)

type InventoryHandler struct {
	Svc         *fulfillment.Service
	Ledger      ledger.Store
	Redis       *redis.Client // optional aggregate cache
	StockEvents Publisher
	Service     string
	Log         *zap.Logger
}

type addStockReq struct {
	PharmacyID string `json:"pharmacy_id"`
	MedicineID string `json:"medicine_id"`
	BatchNo    string `json:"batch_no"`
	Quantity   int64  `json:"quantity"`
	PriceCents int64  `json:"price"`
	ExpiryDate string `json:"expiry_date"` // YYYY-MM-DD
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(WithPrincipal)
		r.Post("/inventory", h.addStock)
		r.Get("/inventory", h.listInventory)
	})
}

func (h *InventoryHandler) addStock(w http.ResponseWriter, r *http.Request) {
	var req addStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{"invalid json", "validation"})
		return
	}
	if !requirePharmacy(w, r, req.PharmacyID) {
		return
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{"expiry_date must be YYYY-MM-DD", "validation"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	b, err := h.Svc.AddStock(ctx, ledger.Batch{
		PharmacyID:     req.PharmacyID,
		MedicineID:     req.MedicineID,
		BatchNo:        req.BatchNo,
		Quantity:       req.Quantity,
		UnitPriceCents: req.PriceCents,
		ExpiryDate:     expiry,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidateInventory(ctx, b.PharmacyID)
	h.publishStockChange(r, b.PharmacyID, b.MedicineID, b.ID, req.Quantity)

	writeJSON(w, http.StatusCreated, b)
}

func (h *InventoryHandler) listInventory(w http.ResponseWriter, r *http.Request) {
	pharmacyID := r.URL.Query().Get("pharmacy_id")
	if pharmacyID == "" {
		writeJSON(w, http.StatusBadRequest, errBody{"pharmacy_id is required", "validation"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyInventory, pharmacyID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	rows, err := h.Ledger.AggregateByPharmacy(ctx, pharmacyID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []ledger.MedicineStock{}
	}
	if h.Redis != nil {
		b, _ := json.Marshal(rows)
		_ = h.Redis.Set(ctx, key, b, redisx.TTLInventory).Err()
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *InventoryHandler) invalidateInventory(ctx context.Context, pharmacyID string) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyInventory, pharmacyID)).Err()
}

func (h *InventoryHandler) publishStockChange(r *http.Request, pharmacyID, medicineID, batchID string, delta int64) {
	publishEnvelope(h.StockEvents, h.Service, r.Header.Get("X-Request-Id"),
		orders.EventStockChanged, "", orders.PartitionKey(pharmacyID),
		orders.StockChangedPayload{
			PharmacyID: pharmacyID,
			MedicineID: medicineID,
			BatchID:    batchID,
			Delta:      delta,
		})
}
