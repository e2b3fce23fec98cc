package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tableserve-backend/api"
	"github.com/angelmondragon/tableserve-backend/api/routes"
	"github.com/angelmondragon/tableserve-backend/internal/catalog"
	"github.com/angelmondragon/tableserve-backend/internal/gateways"
	"github.com/angelmondragon/tableserve-backend/internal/orders"
	"github.com/angelmondragon/tableserve-backend/internal/orderstatus"
	"github.com/angelmondragon/tableserve-backend/internal/realtime"
	"github.com/angelmondragon/tableserve-backend/internal/settlement"
	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/auth/session"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/db"
	"github.com/angelmondragon/tableserve-backend/pkg/instance"
	"github.com/angelmondragon/tableserve-backend/pkg/lock"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/metrics"
	"github.com/angelmondragon/tableserve-backend/pkg/migrate"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
	"github.com/angelmondragon/tableserve-backend/pkg/redis"
	"github.com/angelmondragon/tableserve-backend/pkg/refgen"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	app, err := build(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire api", err)
		_ = multierr.Combine(redisClient.Close(), dbClient.Close())
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := api.NewServer(addr, cfg.HTTP, app.handler)
	serveErr := api.Serve(ctx, server, cfg.HTTP, logg)
	if serveErr != nil {
		logg.Error(ctx, "api server stopped unexpectedly", serveErr)
	}

	closeErr := multierr.Combine(
		app.hub.Close(),
		redisClient.Close(),
		dbClient.Close(),
	)
	if closeErr != nil {
		logg.Error(ctx, "error releasing resources", closeErr)
	}
	if serveErr != nil || closeErr != nil {
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

type application struct {
	handler http.Handler
	hub     *realtime.Hub
}

func build(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*application, error) {
	loc, err := cfg.Ordering.Location()
	if err != nil {
		return nil, fmt.Errorf("ordering time zone: %w", err)
	}
	refs := refgen.New(loc)

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)
	hub := realtime.NewHub(logg, metrics.NewRealtimeMetrics(prometheus.DefaultRegisterer))

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	resolver := auth.NewResolver(cfg.JWT, sessions)

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	pricer, err := orders.NewPricer(catalog.NewReader(dbClient.DB()), cfg.Ordering.Currency)
	if err != nil {
		return nil, fmt.Errorf("pricer: %w", err)
	}
	ordersRepo := orders.NewRepository(dbClient.DB())
	writer, err := orders.NewWriter(orders.WriterParams{
		Tx:       dbClient,
		Repo:     ordersRepo,
		Outbox:   emitter,
		Numbers:  refs,
		Notifier: hub,
		Logger:   logg,
		Metrics:  orderMetrics,
		Config: orders.WriterConfig{
			TxTimeout:             cfg.Ordering.TxTimeout,
			NumberAttempts:        cfg.Ordering.OrderNumberAttempts,
			ReadBackAttempts:      cfg.Ordering.ReadBackAttempts,
			ReadBackRetryInterval: cfg.Ordering.ReadBackRetryInterval,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("order writer: %w", err)
	}
	ordersSvc, err := orders.NewService(ordersRepo, pricer, writer, logg, orderMetrics)
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	statusSvc, err := orderstatus.NewService(orderstatus.ServiceParams{
		Tx:        dbClient,
		Repo:      orderstatus.NewRepository(dbClient.DB()),
		Outbox:    emitter,
		Notifier:  hub,
		Logger:    logg,
		Metrics:   orderMetrics,
		TxTimeout: cfg.Ordering.TxTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("order status service: %w", err)
	}

	locks, err := lock.NewFactory(redisClient, redisClient.LockKey, cfg.Settlement.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("settlement locks: %w", err)
	}
	settlementSvc, err := settlement.NewService(settlement.ServiceParams{
		Tx:       dbClient,
		Repo:     settlement.NewRepository(dbClient.DB()),
		Locks:    locks,
		Refs:     refs,
		Outbox:   emitter,
		Notifier: hub,
		Logger:   logg,
		Metrics:  settlementMetrics,
		Config:   cfg.Settlement,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	gatewayRepo := gateways.NewRepository(dbClient.DB())
	registry, err := gateways.NewRegistry(gatewayRepo, gateways.SquareFactory(logg), logg)
	if err != nil {
		return nil, fmt.Errorf("gateway registry: %w", err)
	}
	gatewaySvc, err := gateways.NewService(gatewayRepo, registry, settlementSvc, logg, settlementMetrics, cfg.Settlement.CallbackSecret)
	if err != nil {
		return nil, fmt.Errorf("gateway service: %w", err)
	}

	wsServer := realtime.NewServer(hub, resolver, statusSvc, cfg.Realtime, logg)

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		resolver,
		ordersSvc,
		statusSvc,
		settlementSvc,
		gatewaySvc,
		wsServer,
		promhttp.Handler(),
	)
	return &application{handler: handler, hub: hub}, nil
}
