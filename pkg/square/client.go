package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Credentials are one restaurant's Square account settings.
type Credentials struct {
	AccessToken string
	Environment string
	LocationID  string
}

// Client charges one restaurant's Square account. The gateway registry
// keeps one per restaurant.
type Client struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	logger      *logger.Logger
}

func NewClient(ctx context.Context, creds Credentials, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(creds.Environment)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(creds.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	c := &Client{
		sdk: sqclient.NewClient(
			sqoption.WithBaseURL(baseURLs[env]),
			sqoption.WithToken(token),
		),
		environment: env,
		locationID:  strings.TrimSpace(creds.LocationID),
		logger:      logg,
	}
	logg.Debug(logg.WithFields(ctx, map[string]any{
		"square_env":  env,
		"location_id": c.locationID,
	}), "square.client_ready")
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// LocationID is charged when a request names none.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// CreatePayment charges a source. ReferenceID carries our transaction id so
// webhooks can be matched back to the payments they settle.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if strings.TrimSpace(params.LocationID) == "" {
		params.LocationID = c.locationID
	}
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid square payment").WithReason(pkgerrors.ReasonChargeFailed)
	}
	ctx = c.logger.WithFields(ctx, map[string]any{
		"square_op":    "payments.create",
		"reference_id": params.ReferenceID,
		"amount":       params.Amount.StringFixed(2),
		"currency":     params.Currency,
	})

	resp, err := c.sdk.Payments.Create(ctx, params.toSquareRequest(idempotencyKey("charge", params.IdempotencyKey)))
	if err != nil {
		mapped := mapError("create payment", err)
		c.logger.Warn(c.logger.WithField(ctx, "error", mapped.Error()), "square.call_failed")
		return nil, mapped
	}

	payment := resp.GetPayment()
	c.logger.Info(c.logger.WithFields(ctx, map[string]any{
		"payment_id":     deref(payment.GetID()),
		"payment_status": deref(payment.GetStatus()),
	}), "square.payment_created")
	return payment, nil
}

// idempotencyKey keeps a caller supplied key so retries of one charge
// collapse on Square's side.
func idempotencyKey(prefix, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	return prefix + "-" + uuid.NewString()
}

// mapError turns SDK failures into typed errors. Card problems are the
// caller's to fix; credential and availability problems are ours.
func mapError(op string, err error) *pkgerrors.Error {
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg).WithReason(pkgerrors.ReasonGatewayUnavailable)
	}

	for _, sqErr := range squareErrors(apiErr) {
		switch {
		case sqErr.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		case sqErr.Category == sq.ErrorCategoryPaymentMethodError:
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "payment was declined").
				WithReason(pkgerrors.ReasonChargeFailed).
				WithDetails(map[string]any{"gatewayCode": string(sqErr.Code)})
		case sqErr.Category == sq.ErrorCategoryAuthenticationError:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg).WithReason(pkgerrors.ReasonGatewayUnavailable)
		}
	}

	code := codeForStatus(apiErr.StatusCode)
	reason := pkgerrors.ReasonChargeFailed
	if code == pkgerrors.CodeDependency {
		reason = pkgerrors.ReasonGatewayUnavailable
	}
	return pkgerrors.Wrap(code, err, msg).WithReason(reason)
}

// squareErrors decodes the error list the SDK leaves as the wrapped cause.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &payload); err != nil {
		return nil
	}
	out := payload.Errors[:0]
	for _, e := range payload.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		return pkgerrors.CodeConflict
	case status == http.StatusUnprocessableEntity, status == http.StatusPaymentRequired:
		return pkgerrors.CodeStateConflict
	// merchant credential and throttling problems are not the diner's
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return pkgerrors.CodeDependency
	case status >= 400 && status < 500:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		return sandboxEnv, nil
	}
	if _, ok := baseURLs[env]; !ok {
		return "", errInvalidSquareEnv
	}
	return env, nil
}
