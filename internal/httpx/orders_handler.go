package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/medstok/go-pharmacy-orders/internal/fulfillment"
	kafkax "github.com/medstok/go-pharmacy-orders/internal/kafka"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
	"github.com/medstok/go-pharmacy-orders/internal/redisx"
)

// Publisher is the slice of the Kafka producer the handlers need; nil
// disables event publishing (tests).
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Svc         *fulfillment.Service
	Redis       *redis.Client // optional status cache
	OrderEvents Publisher
	StockEvents Publisher
	Service     string
	Log         *zap.Logger
}

type createOrderResp struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
}

type statusResp struct {
	OrderID       string               `json:"order_id"`
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(WithPrincipal)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.Patch("/orders/{id}/status", h.patchStatus)
		r.Patch("/orders/{id}/deliver", h.deliver)
		r.Patch("/orders/{id}/cancel", h.cancel)
		r.Patch("/orders/{id}/refund", h.refund)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req fulfillment.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{"invalid json", "validation"})
		return
	}
	if !requirePharmacy(w, r, req.PharmacyID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, lines, err := h.Svc.CreateOrder(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publishOrderEvent(r, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		PharmacyID: o.PharmacyID,
		Items:      toLineItems(lines),
		TotalCents: o.TotalCents,
	})
	for _, l := range lines {
		h.publishStockChange(r, o.PharmacyID, l.MedicineID, l.BatchID, -l.Quantity)
	}

	writeJSON(w, http.StatusCreated, createOrderResp{OrderID: o.ID, TotalCents: o.TotalCents})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first, DB is the truth
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Svc.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus})
}

func (h *OrdersHandler) patchStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{"invalid json", "validation"})
		return
	}
	target, ok := orders.ParseStatus(body.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errBody{"unknown status: " + body.Status, "validation"})
		return
	}
	if !requireRole(w, r, RoleAdmin, RolePharmacist, RoleCourier) {
		return
	}

	// delivery and cancellation carry side effects; route to their handlers
	switch target {
	case orders.StatusDelivered:
		h.deliver(w, r)
		return
	case orders.StatusCancelled:
		h.cancel(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.Advance(ctx, orderID, target)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	h.publishOrderEvent(r, orders.EventOrderAdvanced, o.ID, orders.OrderStatusPayload{
		OrderID: o.ID, PharmacyID: o.PharmacyID, Status: o.Status,
	})
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus})
}

func (h *OrdersHandler) deliver(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if !requireRole(w, r, RoleAdmin, RolePharmacist, RoleCourier) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.MarkDelivered(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	h.publishOrderEvent(r, orders.EventOrderDelivered, o.ID, orders.OrderStatusPayload{
		OrderID: o.ID, PharmacyID: o.PharmacyID, Status: o.Status,
	})
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, lines, err := h.Svc.Cancel(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	h.publishOrderEvent(r, orders.EventOrderCancelled, o.ID, orders.OrderStatusPayload{
		OrderID: o.ID, PharmacyID: o.PharmacyID, Status: o.Status,
	})
	for _, l := range lines {
		h.publishStockChange(r, o.PharmacyID, l.MedicineID, l.BatchID, l.Quantity)
	}
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus})
}

func (h *OrdersHandler) refund(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if !requireRole(w, r, RoleAdmin, RolePharmacist) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.Refund(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(statusResp{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishOrderEvent(r *http.Request, eventType, orderID string, payload any) {
	publishEnvelope(h.OrderEvents, h.Service, r.Header.Get("X-Request-Id"),
		eventType, orderID, orders.PartitionKey(orderID), payload)
}

func (h *OrdersHandler) publishStockChange(r *http.Request, pharmacyID, medicineID, batchID string, delta int64) {
	publishEnvelope(h.StockEvents, h.Service, r.Header.Get("X-Request-Id"),
		orders.EventStockChanged, "", orders.PartitionKey(pharmacyID),
		orders.StockChangedPayload{
			PharmacyID: pharmacyID,
			MedicineID: medicineID,
			BatchID:    batchID,
			Delta:      delta,
		})
}

// publishEnvelope wraps a payload in the versioned event envelope. A nil
// publisher disables events.
func publishEnvelope(pub Publisher, producer, traceID, eventType, correlationID string, key []byte, payload any) {
	if pub == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	pub.Publish(key, kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func toLineItems(lines []orders.Line) []orders.LineItem {
	out := make([]orders.LineItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, orders.LineItem{
			MedicineID: l.MedicineID,
			BatchID:    l.BatchID,
			Quantity:   l.Quantity,
			PriceCents: l.UnitPriceCents,
		})
	}
	return out
}
