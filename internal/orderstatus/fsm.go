package orderstatus

import (
	"fmt"

	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
)

// Event is an input to the order lifecycle.
type Event string

const (
	EventConfirm              Event = "Confirm"
	EventStartPreparing       Event = "StartPreparing"
	EventMarkReadyForPickup   Event = "MarkReadyForPickup"
	EventMarkReadyForDelivery Event = "MarkReadyForDelivery"
	EventComplete             Event = "Complete"
	EventCancel               Event = "Cancel"
	EventRefund               Event = "Refund"
)

// table lists every accepted (state, event) pair. Terminal states have no row.
var table = map[enums.OrderStatus]map[Event]enums.OrderStatus{
	enums.OrderStatusPending: {
		EventConfirm: enums.OrderStatusConfirmed,
	},
	enums.OrderStatusConfirmed: {
		EventStartPreparing: enums.OrderStatusPreparing,
	},
	enums.OrderStatusPreparing: {
		EventMarkReadyForPickup:   enums.OrderStatusReadyForPickup,
		EventMarkReadyForDelivery: enums.OrderStatusReadyForDelivery,
	},
	enums.OrderStatusReadyForPickup: {
		EventComplete: enums.OrderStatusCompleted,
	},
	enums.OrderStatusReadyForDelivery: {
		EventComplete: enums.OrderStatusCompleted,
	},
}

func init() {
	for _, events := range table {
		events[EventCancel] = enums.OrderStatusCancelled
		events[EventRefund] = enums.OrderStatusRefunded
	}
}

// Next applies event to from and returns the resulting state.
func Next(from enums.OrderStatus, event Event) (enums.OrderStatus, error) {
	if to, ok := table[from][event]; ok {
		return to, nil
	}
	return "", invalidTransition(from, string(event))
}

// EventFor finds the event that moves from into to.
func EventFor(from, to enums.OrderStatus) (Event, error) {
	if !to.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", to))
	}
	for event, next := range table[from] {
		if next == to {
			return event, nil
		}
	}
	return "", invalidTransition(from, string(to))
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to enums.OrderStatus) bool {
	_, err := EventFor(from, to)
	return err == nil
}

func invalidTransition(from enums.OrderStatus, target string) error {
	message := fmt.Sprintf("cannot move order from %s to %s", from, target)
	if from.IsTerminal() {
		message = fmt.Sprintf("order is already %s", from)
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithReason(pkgerrors.ReasonInvalidTransition).
		WithDetails(map[string]any{"from": from, "to": target})
}

// ticketStatusFor mirrors order progress onto the kitchen ticket. States the
// kitchen does not act on return false.
func ticketStatusFor(to enums.OrderStatus) (enums.KitchenTicketStatus, bool) {
	switch to {
	case enums.OrderStatusPreparing:
		return enums.KitchenTicketInProgress, true
	case enums.OrderStatusReadyForPickup, enums.OrderStatusReadyForDelivery:
		return enums.KitchenTicketReady, true
	case enums.OrderStatusCompleted:
		return enums.KitchenTicketServed, true
	case enums.OrderStatusCancelled, enums.OrderStatusRefunded:
		return enums.KitchenTicketVoided, true
	}
	return "", false
}
