package enums

// OrderEventType labels rows of the append-only order_events audit log.
type OrderEventType string

const (
	OrderEventPlaced               OrderEventType = "OrderPlaced"
	OrderEventStatusChanged        OrderEventType = "StatusChanged"
	OrderEventCancelledByCustomer  OrderEventType = "CancelledByCustomer"
	OrderEventSplitBillsCreated    OrderEventType = "SplitBillsCreated"
	OrderEventPaymentInitiated     OrderEventType = "PaymentInitiated"
	OrderEventPaymentCaptured      OrderEventType = "PaymentCaptured"
	OrderEventSplitPaymentCaptured OrderEventType = "SplitPaymentCaptured"
	OrderEventPaymentFailed        OrderEventType = "PaymentFailed"
)
