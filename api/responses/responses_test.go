package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, "order placed", map[string]string{"orderNo": "ORD20240101000000ABCD"})

	require.Equal(t, http.StatusOK, w.Code)

	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, types.StatusSuccess, body.Status)
	assert.Equal(t, "order placed", body.Message)
	assert.Equal(t, "ORD20240101000000ABCD", body.Data.(map[string]any)["orderNo"])
}

func TestWriteList(t *testing.T) {
	w := httptest.NewRecorder()
	WriteList(w, "", []int{1, 2}, 10, 2)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "SUCCESS", body["status"])
	assert.Equal(t, float64(10), body["recordsTotal"])
	assert.Equal(t, float64(2), body["recordsFiltered"])
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeConflict, "split amounts do not match order total").
		WithReason(pkgerrors.ReasonSplitMismatch).
		WithDetails(map[string]string{"expected": "100.00"})
	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusConflict, w.Code)

	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, types.StatusFailed, body.Status)
	assert.Equal(t, string(pkgerrors.CodeConflict), body.Error.Code)
	assert.Equal(t, "SplitMismatch", body.Error.Reason)
	assert.Equal(t, "split amounts do not match order total", body.Error.Message)
	assert.NotNil(t, body.Error.Details)
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	w := httptest.NewRecorder()
	WriteError(context.Background(), logg, w, errors.New("pq: relation orders does not exist"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	raw := w.Body.String()
	assert.NotContains(t, raw, "relation orders")

	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.Nil(t, body.Error.Details)
	assert.Contains(t, buf.String(), "request.error")
}
