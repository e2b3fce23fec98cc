package middleware

import (
	"net/http"

	"github.com/angelmondragon/tableserve-backend/api/responses"
	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
)

// Auth resolves the bearer credential and seeds the request context with the caller identity.
func Auth(resolver *auth.Resolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithSubject(ctx, string(identity.SubjectType), identity.SubjectID.String(), string(identity.Role))
				if identity.RestaurantID != nil {
					ctx = logg.WithRestaurantID(ctx, identity.RestaurantID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
