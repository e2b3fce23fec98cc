package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type splitBody struct {
	Label  string          `json:"label" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

func TestDecodeJSONBodyValidatesDecimals(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"label":"A","amount":"12.50"}`))
	var body splitBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.True(t, body.Amount.Equal(decimal.RequireFromString("12.50")))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"label":"A","amount":0}`))
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"amount": "must be greater than 0"}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"label":"A","amount":1,"extra":true}`))
	var body splitBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"truncated":     `{"label":"A"`,
		"trailing":      `{"label":"A","amount":1} {"label":"B"}`,
		"wrong type":    `{"label":7,"amount":1}`,
		"syntax":        `{"label":"A",,}`,
		"sub-cent":      `{"label":"A","amount":"1.005"}`,
		"missing label": `{"amount":"1.00"}`,
	}
	for name, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var dest moneyBody
		err := DecodeJSONBody(req, &dest)
		require.Error(t, err, name)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), name)
	}
}

type moneyBody struct {
	Label  string          `json:"label" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0,money"`
}

func TestNestedFieldPaths(t *testing.T) {
	type line struct {
		Qty int `json:"quantity" validate:"min=1"`
	}
	type cart struct {
		Items []line `json:"items" validate:"required,dive"`
	}
	err := ValidateStruct(&cart{Items: []line{{Qty: 1}, {Qty: 0}}})
	require.Error(t, err)
	assert.Equal(t, map[string]string{"items[1].quantity": "must be at least 1"}, pkgerrors.As(err).Details())
}

func TestQueryParsers(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?restaurant_id="+id.String()+"&start_date=2024-03-01&min_amount=10.5&limit=20", nil)

	got, err := ParseQueryUUID(req, "restaurant_id")
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	start, err := ParseQueryTime(req, "start_date")
	require.NoError(t, err)
	assert.Equal(t, 2024, start.Year())

	minAmount, err := ParseQueryDecimal(req, "min_amount")
	require.NoError(t, err)
	assert.Equal(t, "10.5", minAmount.String())

	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, limit)

	missing, err := ParseQueryUUID(req, "table_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	bad := httptest.NewRequest(http.MethodGet, "/?restaurant_id=nope", nil)
	_, err = ParseQueryUUID(bad, "restaurant_id")
	assert.Error(t, err)
}

func TestParseURLParamUUID(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseURLParamUUID(req, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseURLParamUUID(req, "splitId")
	assert.Error(t, err)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "no onions", SanitizeString("  no onions \r\n", 0))
	assert.Equal(t, "extra\tspicy\nplease", SanitizeString("extra\tspicy\x1b\nplease\x00", 0))
	assert.Equal(t, "jalapeño", SanitizeString("jalapeño poppers", 8))
	assert.Equal(t, "ab", SanitizeString("ab  cd", 4))
}
