package redisx

import "time"

const (
	// Cache order status: order_status:{order_id} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Aggregate availability per pharmacy+medicine: stock_agg:{pharmacy_id}:{medicine_id} -> quantity
	KeyStockAgg = "stock_agg:%s:%s"

	// Per-pharmacy inventory rollup: inventory:{pharmacy_id} -> JSON array
	KeyInventory = "inventory:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLStockAgg    = 10 * time.Minute
	TTLInventory   = 1 * time.Minute
	TTLDedup       = 48 * time.Hour
)
