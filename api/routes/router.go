package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tableserve-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/tableserve-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/tableserve-backend/api/controllers/payments"
	"github.com/angelmondragon/tableserve-backend/api/middleware"
	"github.com/angelmondragon/tableserve-backend/internal/gateways"
	"github.com/angelmondragon/tableserve-backend/internal/orders"
	"github.com/angelmondragon/tableserve-backend/internal/orderstatus"
	"github.com/angelmondragon/tableserve-backend/internal/settlement"
	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/db"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP layer needs.
type redisStore interface {
	redis.IdempotencyStore
	redis.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope, id string) string
}

var staffRoles = []enums.ActorRole{
	enums.RoleRestaurantManager,
	enums.RoleRestaurantStaff,
	enums.RoleKitchenStaff,
}

func withRoles(roles []enums.ActorRole, extra ...enums.ActorRole) []enums.ActorRole {
	out := make([]enums.ActorRole, 0, len(roles)+len(extra))
	out = append(out, roles...)
	return append(out, extra...)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	resolver *auth.Resolver,
	ordersSvc orders.Service,
	statusSvc orderstatus.Service,
	settlementSvc settlement.Service,
	gatewaySvc gateways.Service,
	realtimeServer http.Handler,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	callbackPolicy := middleware.NewRateLimitPolicy(
		"callback",
		cfg.HTTP.CallbackRateWindow,
		cfg.HTTP.CallbackRateLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	if realtimeServer != nil {
		r.Method(http.MethodGet, "/ws", realtimeServer)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// gateway callbacks authenticate by signature, not bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(callbackPolicy, redisClient, logg))
			r.Post("/payments/callback", paymentcontrollers.GatewayCallback(gatewaySvc, settlementSvc, cfg.HTTP.CallbackMaxBodyBytes, logg))
			r.Post("/payments/split/callback", paymentcontrollers.SplitCallback(gatewaySvc, settlementSvc, cfg.HTTP.CallbackMaxBodyBytes, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(resolver, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			staffOrCustomer := middleware.RequireRoles(logg, withRoles(staffRoles, enums.RoleCustomer)...)
			staffOnly := middleware.RequireRoles(logg, staffRoles...)

			r.Route("/orders", func(r chi.Router) {
				r.With(staffOrCustomer).Post("/", ordercontrollers.Place(ordersSvc, logg))
				r.With(middleware.RequireRoles(logg, withRoles(staffRoles, enums.RolePlatformAdmin)...)).Get("/", ordercontrollers.List(ordersSvc, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
				r.With(staffOnly).Post("/{orderId}/status", ordercontrollers.UpdateStatus(statusSvc, logg))
				r.With(middleware.RequireRoles(logg, enums.RoleCustomer)).Post("/{orderId}/cancel", ordercontrollers.Cancel(statusSvc, logg))
				r.With(staffOrCustomer).Post("/{orderId}/splits", paymentcontrollers.CreateSplits(settlementSvc, logg))
			})

			r.With(staffOrCustomer).Post("/payments/group", paymentcontrollers.CreateGroup(settlementSvc, logg))
			r.With(staffOrCustomer).Post("/payments/{txnId}/charge", paymentcontrollers.Charge(gatewaySvc, logg))
			r.With(staffOrCustomer).Post("/splits/{splitId}/pay", paymentcontrollers.PaySplit(settlementSvc, logg))

			r.With(middleware.RequireRoles(logg, enums.RolePlatformAdmin)).
				Post("/admin/restaurants/{restaurantId}/gateway/invalidate", controllers.InvalidateGateway(gatewaySvc, logg))
		})
	})

	return r
}
