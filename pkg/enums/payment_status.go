package enums

import "fmt"

// PaymentStatus is shared by orders (all four values) and payment rows
// (Unpaid, Paid, Failed).
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "Unpaid"
	PaymentStatusPartiallyPaid PaymentStatus = "PartiallyPaid"
	PaymentStatusPaid          PaymentStatus = "Paid"
	PaymentStatusFailed        PaymentStatus = "Failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusUnpaid,
	PaymentStatusPartiallyPaid,
	PaymentStatusPaid,
	PaymentStatusFailed,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// CallbackStatus is the terminal status reported by a payment gateway.
type CallbackStatus string

const (
	CallbackStatusSuccess CallbackStatus = "SUCCESS"
	CallbackStatusFailed  CallbackStatus = "FAILED"
)

// ParseCallbackStatus accepts SUCCESS or FAILED only.
func ParseCallbackStatus(value string) (CallbackStatus, error) {
	switch CallbackStatus(value) {
	case CallbackStatusSuccess, CallbackStatusFailed:
		return CallbackStatus(value), nil
	}
	return "", fmt.Errorf("invalid callback status %q", value)
}
