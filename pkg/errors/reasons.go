package errors

// Reason is a stable, client-facing discriminator layered on top of Code.
type Reason string

const (
	ReasonNoItems               Reason = "NoItems"
	ReasonRestaurantUnavailable Reason = "RestaurantUnavailable"
	ReasonTableNotFound         Reason = "TableNotFound"
	ReasonItemUnavailable       Reason = "ItemUnavailable"
	ReasonOrderCreationFailed   Reason = "OrderCreationFailed"
	ReasonOrderNotFound         Reason = "OrderNotFound"
	ReasonInvalidTransition     Reason = "InvalidTransition"
	ReasonNoUnpaidOrders        Reason = "NoUnpaidOrders"
	ReasonDuplicateGroupPayment Reason = "DuplicateGroupPayment"
	ReasonSplitMismatch         Reason = "SplitMismatch"
	ReasonSplitAlreadyPaid      Reason = "SplitAlreadyPaid"
	ReasonPaymentNotFound       Reason = "PaymentNotFound"
	ReasonSettlementFailed      Reason = "SettlementFailed"
	ReasonAuthenticationFailed  Reason = "AuthenticationFailed"
	ReasonGatewayUnavailable    Reason = "GatewayUnavailable"
	ReasonInvalidSignature      Reason = "InvalidSignature"
	ReasonChargeFailed          Reason = "ChargeFailed"
)
