package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableserve-backend/api/responses"
	"github.com/angelmondragon/tableserve-backend/api/validators"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
)

type gatewayInvalidator interface {
	Invalidate(ctx context.Context, restaurantID uuid.UUID) bool
}

// InvalidateGateway drops the cached gateway client of a restaurant so the
// next charge rebuilds it from the current configuration row.
func InvalidateGateway(svc gatewayInvalidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway service unavailable"))
			return
		}
		restaurantID, err := validators.ParseURLParamUUID(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dropped := svc.Invalidate(r.Context(), restaurantID)
		responses.WriteSuccess(w, "gateway cache invalidated", map[string]any{
			"restaurantId": restaurantID,
			"dropped":      dropped,
		})
	}
}
