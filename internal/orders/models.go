package orders

import "time"

// Order is the order header. It is written once by fulfillment; only the
// status fields and DeliveredAt change afterwards, and only through the
// transition operations.
type Order struct {
	ID             string        `json:"id"`
	CustomerID     string        `json:"customer_id"`
	PharmacyID     string        `json:"pharmacy_id"`
	PrescriptionID *string       `json:"prescription_id,omitempty"`
	TotalCents     int64         `json:"total_cents"`
	Status         Status        `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	PlacedAt       time.Time     `json:"placed_at"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
}

// Line records the exact batch a quantity was debited from, at the price in
// force when the order was placed. Immutable after creation.
type Line struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	MedicineID     string `json:"medicine_id"`
	BatchID        string `json:"batch_id"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}
