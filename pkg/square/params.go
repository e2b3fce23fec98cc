package square

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
)

const defaultCurrency = "INR"

// Square caps reference_id and note lengths.
const (
	maxReferenceLen = 40
	maxNoteLen      = 500
)

// PaymentCreateParams describes one card charge. Amount is in major units
// and is converted to the currency's smallest unit on the wire.
type PaymentCreateParams struct {
	Amount         decimal.Decimal
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

// MinorUnits converts a two-decimal amount to the smallest currency unit,
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (p PaymentCreateParams) validate() error {
	if strings.TrimSpace(p.SourceID) == "" {
		return errors.New("source id is required")
	}
	if MinorUnits(p.Amount) <= 0 {
		return errors.New("amount must be positive")
	}
	if len(strings.TrimSpace(p.ReferenceID)) > maxReferenceLen {
		return errors.New("reference id exceeds 40 characters")
	}
	return nil
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       p.SourceID,
		LocationID:     optional(p.LocationID),
		CustomerID:     optional(p.CustomerID),
		ReferenceID:    optional(p.ReferenceID),
		AmountMoney:    money(MinorUnits(p.Amount), p.Currency),
	}
	if note := strings.TrimSpace(p.Note); note != "" {
		if len(note) > maxNoteLen {
			note = note[:maxNoteLen]
		}
		req.Note = &note
	}
	return req
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func money(minor int64, currency string) *sq.Money {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = defaultCurrency
	}
	c := sq.Currency(code)
	return &sq.Money{Amount: &minor, Currency: &c}
}
