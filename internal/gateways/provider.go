package gateways

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/square"
)

// ChargeStatus is the provider's view of a charge once the call returns.
type ChargeStatus string

const (
	ChargeCompleted ChargeStatus = "COMPLETED"
	ChargePending   ChargeStatus = "PENDING"
	ChargeFailed    ChargeStatus = "FAILED"
)

type ChargeRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	SourceID      string
}

type ChargeResult struct {
	GatewayRef string
	Status     ChargeStatus
	Detail     string
}

// Provider drives one payment gateway.
type Provider interface {
	Name() enums.PaymentProvider
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// manualProvider covers cash and offline payments; staff confirm them through the callback.
type manualProvider struct{}

func (manualProvider) Name() enums.PaymentProvider { return enums.PaymentProviderManual }

func (manualProvider) Charge(context.Context, ChargeRequest) (*ChargeResult, error) {
	return &ChargeResult{Status: ChargePending}, nil
}

type squarePayments interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

type squareProvider struct {
	client squarePayments
}

func newSquareProvider(client squarePayments) *squareProvider {
	return &squareProvider{client: client}
}

func (p *squareProvider) Name() enums.PaymentProvider { return enums.PaymentProviderSquare }

func (p *squareProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sourceId is required for square charges").
			WithReason(pkgerrors.ReasonChargeFailed)
	}
	payment, err := p.client.CreatePayment(ctx, square.PaymentCreateParams{
		Amount:         req.Amount,
		Currency:       req.Currency,
		SourceID:       req.SourceID,
		IdempotencyKey: req.TransactionID,
		ReferenceID:    req.TransactionID,
		Note:           "tableserve " + req.TransactionID,
	})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment").
			WithReason(pkgerrors.ReasonChargeFailed)
	}
	result := &ChargeResult{Status: squareStatus(payment.GetStatus())}
	if id := payment.GetID(); id != nil {
		result.GatewayRef = *id
	}
	if status := payment.GetStatus(); status != nil {
		result.Detail = *status
	}
	return result, nil
}

func squareStatus(status *string) ChargeStatus {
	if status == nil {
		return ChargePending
	}
	switch strings.ToUpper(*status) {
	case "COMPLETED":
		return ChargeCompleted
	case "FAILED", "CANCELED":
		return ChargeFailed
	default:
		return ChargePending
	}
}
