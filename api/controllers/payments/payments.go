package payments

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableserve-backend/api/middleware"
	"github.com/angelmondragon/tableserve-backend/api/responses"
	"github.com/angelmondragon/tableserve-backend/api/validators"
	"github.com/angelmondragon/tableserve-backend/internal/gateways"
	"github.com/angelmondragon/tableserve-backend/internal/settlement"
	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
)

const defaultCallbackBodyLimit int64 = 64 << 10

type groupRequest struct {
	RestaurantID uuid.UUID  `json:"restaurantId"`
	CustomerID   *uuid.UUID `json:"customerId,omitempty"`
	Provider     string     `json:"provider" validate:"omitempty,oneof=manual square"`
	Method       string     `json:"method" validate:"omitempty,oneof=cash card upi wallet"`
}

// CreateGroup opens one correlation id covering every completed unpaid order
// of a customer at a restaurant. Customers settle their own orders; staff
// name the customer.
func CreateGroup(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req groupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.RestaurantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "restaurantId is required"))
			return
		}

		var customerID uuid.UUID
		switch {
		case caller.IsCustomer():
			customerID = caller.SubjectID
		case !caller.IsStaffOf(req.RestaurantID):
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "payments can only be collected for your restaurant"))
			return
		case req.CustomerID == nil || *req.CustomerID == uuid.Nil:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "customerId is required"))
			return
		default:
			customerID = *req.CustomerID
		}

		group, err := svc.CreateGroupPayment(r.Context(), settlement.GroupInput{
			CustomerID:     customerID,
			RestaurantID:   req.RestaurantID,
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
			Provider:       enums.PaymentProvider(req.Provider),
			Method:         enums.PaymentMethod(req.Method),
			Actor:          caller.ActorRef(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, "group payment created", group)
	}
}

type chargeRequest struct {
	SourceID string `json:"sourceId" validate:"max=255"`
}

// Charge drives the restaurant's gateway for a correlation id.
func Charge(svc gateways.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txnID := strings.TrimSpace(chi.URLParam(r, "txnId"))
		if txnID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required"))
			return
		}

		var req chargeRequest
		if err := decodeOptionalBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scope := scopeFor(caller)
		outcome, err := svc.Charge(r.Context(), gateways.ChargeInput{
			TransactionID: txnID,
			SourceID:      strings.TrimSpace(req.SourceID),
			RestaurantID:  scope.RestaurantID,
			CustomerID:    scope.CustomerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "charge submitted", outcome)
	}
}

type callbackRequest struct {
	TransactionID string     `json:"txnId" validate:"required"`
	Status        string     `json:"status" validate:"required,oneof=SUCCESS FAILED"`
	SplitBillID   *uuid.UUID `json:"splitBillId,omitempty"`
	GatewayRef    string     `json:"gatewayRef" validate:"max=255"`
	FailureReason string     `json:"failureReason" validate:"max=500"`
}

type callbackFunc func(*http.Request, settlement.CallbackInput) (*settlement.CallbackResult, error)

// GatewayCallback settles a group or single payment reported by a gateway.
func GatewayCallback(verifier gateways.Service, svc settlement.Service, maxBody int64, logg *logger.Logger) http.HandlerFunc {
	return callbackHandler(verifier, maxBody, false, logg, func(r *http.Request, input settlement.CallbackInput) (*settlement.CallbackResult, error) {
		return svc.PaymentGatewayCallback(r.Context(), input)
	})
}

// SplitCallback settles a split bill payment reported by a gateway.
func SplitCallback(verifier gateways.Service, svc settlement.Service, maxBody int64, logg *logger.Logger) http.HandlerFunc {
	return callbackHandler(verifier, maxBody, true, logg, func(r *http.Request, input settlement.CallbackInput) (*settlement.CallbackResult, error) {
		return svc.SplitBillCallback(r.Context(), input)
	})
}

func callbackHandler(verifier gateways.Service, maxBody int64, split bool, logg *logger.Logger, settle callbackFunc) http.HandlerFunc {
	if maxBody <= 0 {
		maxBody = defaultCallbackBodyLimit
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil || settle == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var req callbackRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !split && req.SplitBillID != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "splitBillId is only accepted on the split callback"))
			return
		}

		txnID := strings.TrimSpace(req.TransactionID)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithTxnID(ctx, txnID)
		}
		if err := verifier.VerifyCallback(ctx, txnID, body, r.Header.Get(gateways.SignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := settle(r.WithContext(ctx), settlement.CallbackInput{
			TransactionID: txnID,
			Status:        settlement.CallbackStatus(req.Status),
			SplitBillID:   req.SplitBillID,
			GatewayRef:    strings.TrimSpace(req.GatewayRef),
			FailureReason: validators.SanitizeString(req.FailureReason, 500),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		message := "payment settled"
		if result.AlreadyProcessed {
			message = "payment already processed"
		}
		responses.WriteSuccess(w, message, result)
	}
}

type splitLine struct {
	Label  string          `json:"label" validate:"max=100"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0,money"`
}

type splitRequest struct {
	Splits       []splitLine `json:"splits" validate:"required,min=1,dive"`
	AllowPartial bool        `json:"allowPartial"`
}

// CreateSplits divides an order's net amount into split bills.
func CreateSplits(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req splitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]settlement.SplitLine, 0, len(req.Splits))
		for _, line := range req.Splits {
			lines = append(lines, settlement.SplitLine{
				Label:  validators.SanitizeString(line.Label, 100),
				Amount: line.Amount,
			})
		}

		bills, err := svc.CreateSplitBills(r.Context(), settlement.SplitInput{
			OrderID:      orderID,
			Splits:       lines,
			AllowPartial: req.AllowPartial,
			Scope:        scopeFor(caller),
			Actor:        caller.ActorRef(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, "split bills created", bills)
	}
}

type paySplitRequest struct {
	Provider string `json:"provider" validate:"omitempty,oneof=manual square"`
	Method   string `json:"method" validate:"omitempty,oneof=cash card upi wallet"`
}

// PaySplit opens a payment for one split bill.
func PaySplit(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		splitID, err := validators.ParseURLParamUUID(r, "splitId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req paySplitRequest
		if err := decodeOptionalBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.PaySplitBill(r.Context(), settlement.PaySplitInput{
			SplitBillID: splitID,
			Provider:    enums.PaymentProvider(req.Provider),
			Method:      enums.PaymentMethod(req.Method),
			Scope:       scopeFor(caller),
			Actor:       caller.ActorRef(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, "split payment created", payment)
	}
}

// scopeFor limits customers to their own orders and staff to their
// restaurant. Platform admins are unscoped.
func scopeFor(caller auth.Identity) settlement.OrderScope {
	switch {
	case caller.IsCustomer():
		id := caller.SubjectID
		return settlement.OrderScope{CustomerID: &id}
	case caller.Role == enums.RolePlatformAdmin:
		return settlement.OrderScope{}
	default:
		if caller.RestaurantID == nil {
			// staff without a restaurant match nothing
			none := uuid.Nil
			return settlement.OrderScope{RestaurantID: &none}
		}
		return settlement.OrderScope{RestaurantID: caller.RestaurantID}
	}
}

func decodeOptionalBody(r *http.Request, dest any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return validators.ValidateStruct(dest)
	}
	if !json.Valid(body) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return validators.DecodeJSONBody(r, dest)
}
