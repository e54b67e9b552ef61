package orders

const (
	TopicOrderEvents = "pharmacy.order.events"
	TopicStockEvents = "pharmacy.stock.events"
)

// Partition key = order_id (or pharmacy_id for stock events) so events for
// one aggregate keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
