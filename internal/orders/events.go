package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderAdvanced  = "OrderAdvanced"
	EventOrderDelivered = "OrderDelivered"
	EventOrderCancelled = "OrderCancelled"
	EventStockChanged   = "StockChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type LineItem struct {
	MedicineID string `json:"medicine_id"`
	BatchID    string `json:"batch_id"`
	Quantity   int64  `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	CustomerID string     `json:"customer_id"`
	PharmacyID string     `json:"pharmacy_id"`
	Items      []LineItem `json:"items"`
	TotalCents int64      `json:"total_cents"`
}

type OrderStatusPayload struct {
	OrderID    string `json:"order_id"`
	PharmacyID string `json:"pharmacy_id"`
	Status     Status `json:"status"`
}

// StockChangedPayload announces any stock movement (deduct, restock, new
// batch) so cache maintainers can refresh the affected aggregate.
type StockChangedPayload struct {
	PharmacyID string `json:"pharmacy_id"`
	MedicineID string `json:"medicine_id"`
	BatchID    string `json:"batch_id"`
	Delta      int64  `json:"delta"`
}
