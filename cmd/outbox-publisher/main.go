package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/db"
	"github.com/angelmondragon/tableserve-backend/pkg/instance"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/migrate"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox/registry"
	"github.com/angelmondragon/tableserve-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	var dlqCmd dlqOptions
	flag.BoolVar(&dlqCmd.list, "dlq-list", false, "print parked events and exit")
	flag.StringVar(&dlqCmd.reason, "dlq-reason", "", "filter -dlq-list by reason (max_attempts|non_retryable|unroutable)")
	flag.IntVar(&dlqCmd.limit, "dlq-limit", 50, "maximum rows for -dlq-list")
	flag.StringVar(&dlqCmd.replay, "dlq-replay", "", "comma separated event ids to move back into the outbox")
	flag.Parse()

	bootLog := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "config.load_failed", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
	})

	if err := run(ctx, cfg, logg, dlqCmd); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox.publisher_stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox.publisher_shutdown")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, dlqCmd dlqOptions) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	dlq := outbox.NewDLQRepository(dbClient.DB())
	if dlqCmd.active() {
		return runDLQCommand(ctx, dbClient, dlq, dlqCmd, os.Stdout)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlq,
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "topics", eventRegistry.Topics()), "outbox.publisher_started")
	return service.Run(ctx)
}
