package enums

// KitchenTicketStatus tracks kitchen work independently of OrderStatus.
type KitchenTicketStatus string

const (
	KitchenTicketQueued     KitchenTicketStatus = "Queued"
	KitchenTicketInProgress KitchenTicketStatus = "InProgress"
	KitchenTicketReady      KitchenTicketStatus = "Ready"
	KitchenTicketServed     KitchenTicketStatus = "Served"
	KitchenTicketVoided     KitchenTicketStatus = "Voided"
)
