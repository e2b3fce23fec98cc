package gateways

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableserve-backend/internal/settlement"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/metrics"
)

// Settler applies gateway outcomes to payments and orders.
type Settler interface {
	PaymentGatewayCallback(ctx context.Context, input settlement.CallbackInput) (*settlement.CallbackResult, error)
	SplitBillCallback(ctx context.Context, input settlement.CallbackInput) (*settlement.CallbackResult, error)
}

// ChargeInput drives the gateway for one correlation id. A non-nil scope
// restricts the charge to payments of that restaurant or customer.
type ChargeInput struct {
	TransactionID string
	SourceID      string
	RestaurantID  *uuid.UUID
	CustomerID    *uuid.UUID
}

type ChargeOutcome struct {
	TransactionID    string                     `json:"txnId"`
	Provider         enums.PaymentProvider      `json:"provider"`
	Amount           decimal.Decimal            `json:"amount"`
	Currency         string                     `json:"currency"`
	Status           ChargeStatus               `json:"status"`
	GatewayRef       string                     `json:"gatewayRef,omitempty"`
	AlreadyProcessed bool                       `json:"alreadyProcessed"`
	Settlement       *settlement.CallbackResult `json:"settlement,omitempty"`
}

type Service interface {
	Charge(ctx context.Context, input ChargeInput) (*ChargeOutcome, error)
	VerifyCallback(ctx context.Context, transactionID string, body []byte, signature string) error
	Invalidate(ctx context.Context, restaurantID uuid.UUID) bool
}

type service struct {
	repo     Repository
	registry *Registry
	settler  Settler
	logg     *logger.Logger
	metrics  *metrics.SettlementMetrics

	// callbackSecret signs callbacks for restaurants without their own secret.
	callbackSecret string
}

func NewService(repo Repository, registry *Registry, settler Settler, logg *logger.Logger, m *metrics.SettlementMetrics, callbackSecret string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("gateway repository required")
	}
	if registry == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if settler == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:           repo,
		registry:       registry,
		settler:        settler,
		logg:           logg,
		metrics:        m,
		callbackSecret: strings.TrimSpace(callbackSecret),
	}, nil
}

func (s *service) Charge(ctx context.Context, input ChargeInput) (*ChargeOutcome, error) {
	ctx = s.logg.WithTxnID(ctx, input.TransactionID)
	payments, err := s.scopedPayments(ctx, input)
	if err != nil {
		s.metrics.IncInitiated("charge", "rejected")
		return nil, err
	}

	first := payments[0]
	outcome := &ChargeOutcome{
		TransactionID: input.TransactionID,
		Provider:      first.Provider,
		Currency:      first.Currency,
	}
	due := decimal.Zero
	for _, p := range payments {
		if p.Status != enums.PaymentStatusPaid {
			due = due.Add(p.Amount)
		}
	}
	outcome.Amount = due
	if due.IsZero() {
		outcome.Status = ChargeCompleted
		outcome.AlreadyProcessed = true
		return outcome, nil
	}

	provider, err := s.providerFor(ctx, first)
	if err != nil {
		s.metrics.IncInitiated("charge", "error")
		return nil, err
	}

	result, err := provider.Charge(ctx, ChargeRequest{
		TransactionID: input.TransactionID,
		Amount:        due,
		Currency:      first.Currency,
		SourceID:      input.SourceID,
	})
	if err != nil {
		s.metrics.IncInitiated("charge", "error")
		s.logg.Error(ctx, "gateways.charge.failed", err)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge payment").
			WithReason(pkgerrors.ReasonChargeFailed)
	}
	outcome.Status = result.Status
	outcome.GatewayRef = result.GatewayRef

	if result.GatewayRef != "" {
		if err := s.repo.SetGatewayRef(ctx, input.TransactionID, result.GatewayRef); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record gateway reference")
		}
	}

	switch result.Status {
	case ChargeCompleted:
		outcome.Settlement, err = s.settle(ctx, payments, settlement.CallbackInput{
			TransactionID: input.TransactionID,
			Status:        settlement.CallbackSuccess,
			GatewayRef:    result.GatewayRef,
		})
	case ChargeFailed:
		outcome.Settlement, err = s.settle(ctx, payments, settlement.CallbackInput{
			TransactionID: input.TransactionID,
			Status:        settlement.CallbackFailed,
			GatewayRef:    result.GatewayRef,
			FailureReason: result.Detail,
		})
	}
	if err != nil {
		s.metrics.IncInitiated("charge", "error")
		return nil, err
	}

	s.metrics.IncInitiated("charge", string(result.Status))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"provider": string(provider.Name()),
		"status":   string(result.Status),
		"amount":   due.StringFixed(2),
	}), "gateways.charge.completed")
	return outcome, nil
}

func (s *service) VerifyCallback(ctx context.Context, transactionID string, body []byte, signature string) error {
	payments, err := s.repo.PaymentsByRef(ctx, transactionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payments")
	}
	// unknown ids fall through so settlement reports PaymentNotFound
	if len(payments) == 0 {
		return nil
	}
	gw, err := s.registry.ClientFor(ctx, payments[0].RestaurantID)
	if err != nil {
		return err
	}
	secret := gw.WebhookSecret
	if secret == "" {
		secret = s.callbackSecret
	}
	// no restaurant or platform secret: refuse
	if secret == "" {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"txn_id":        transactionID,
			"restaurant_id": payments[0].RestaurantID.String(),
		}), "gateways.callback.signing_not_configured")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "callback signing is not configured").
			WithReason(pkgerrors.ReasonInvalidSignature)
	}
	if !VerifySignature(secret, body, signature) {
		s.logg.Warn(s.logg.WithTxnID(ctx, transactionID), "gateways.callback.invalid_signature")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid callback signature").
			WithReason(pkgerrors.ReasonInvalidSignature)
	}
	return nil
}

func (s *service) Invalidate(ctx context.Context, restaurantID uuid.UUID) bool {
	dropped := s.registry.Invalidate(restaurantID)
	s.logg.Info(s.logg.WithFields(s.logg.WithRestaurantID(ctx, restaurantID.String()), map[string]any{
		"dropped": dropped,
	}), "gateways.registry.invalidated")
	return dropped
}

func (s *service) scopedPayments(ctx context.Context, input ChargeInput) ([]models.Payment, error) {
	if input.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "txnId is required")
	}
	payments, err := s.repo.PaymentsByRef(ctx, input.TransactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payments")
	}
	scoped := payments[:0]
	for _, p := range payments {
		if input.RestaurantID != nil && p.RestaurantID != *input.RestaurantID {
			continue
		}
		if input.CustomerID != nil && (p.CustomerID == nil || *p.CustomerID != *input.CustomerID) {
			continue
		}
		scoped = append(scoped, p)
	}
	if len(scoped) == 0 || len(scoped) != len(payments) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found").
			WithReason(pkgerrors.ReasonPaymentNotFound)
	}
	return scoped, nil
}

func (s *service) providerFor(ctx context.Context, payment models.Payment) (Provider, error) {
	if payment.Provider == enums.PaymentProviderManual {
		return manualProvider{}, nil
	}
	gw, err := s.registry.ClientFor(ctx, payment.RestaurantID)
	if err != nil {
		return nil, err
	}
	if gw.Provider.Name() != payment.Provider {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "restaurant gateway does not match payment provider").
			WithReason(pkgerrors.ReasonGatewayUnavailable).
			WithDetails(map[string]any{
				"paymentProvider": payment.Provider,
				"gatewayProvider": gw.Provider.Name(),
			})
	}
	return gw.Provider, nil
}

func (s *service) settle(ctx context.Context, payments []models.Payment, input settlement.CallbackInput) (*settlement.CallbackResult, error) {
	for _, p := range payments {
		if p.SplitBillID != nil {
			return s.settler.SplitBillCallback(ctx, input)
		}
	}
	return s.settler.PaymentGatewayCallback(ctx, input)
}
