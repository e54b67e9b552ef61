package orders

type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusDispatched Status = "dispatched"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusReady: true, StatusCancelled: true},
	StatusReady:      {StatusDispatched: true, StatusCancelled: true},
	StatusDispatched: {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether to is a direct successor of from.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Cancellable reports whether an order in s may still be cancelled.
func Cancellable(s Status) bool {
	return CanTransition(s, StatusCancelled)
}

var validNextPayment = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:  {PaymentPaid: true},
	PaymentPaid:     {PaymentRefunded: true},
	PaymentRefunded: {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validNextPayment[from][to]
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusProcessing, StatusReady, StatusDispatched, StatusDelivered, StatusCancelled:
		return Status(s), true
	}
	return "", false
}
