// Command devtoken mints access tokens for local testing and manages the
// matching Redis sessions when TABLESERVE_JWT_REQUIRE_SESSION is enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tableserve-backend/pkg/auth/session"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.subjectType, "subject-type", "User", "User|Customer")
	flag.StringVar(&opts.subjectID, "subject", "", "subject uuid (random when empty)")
	flag.StringVar(&opts.role, "role", "RestaurantManager", "actor role")
	flag.StringVar(&opts.restaurantID, "restaurant", "", "restaurant uuid, required for staff roles")
	flag.StringVar(&opts.revoke, "revoke", "", "access token id (jti) to revoke instead of minting")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "devtoken"})
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "config.load_failed", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg, logg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) (err error) {
	var sessions sessionRegistry
	if cfg.JWT.RequireSession || opts.revoke != "" {
		client, dialErr := redis.New(ctx, cfg.Redis, logg)
		if dialErr != nil {
			return fmt.Errorf("bootstrap redis: %w", dialErr)
		}
		defer func() { err = multierr.Append(err, client.Close()) }()

		manager, mgrErr := session.NewManager(client, cfg.JWT)
		if mgrErr != nil {
			return mgrErr
		}
		sessions = manager
	}
	if opts.revoke != "" {
		return revoke(ctx, sessions, opts.revoke, os.Stdout)
	}
	return mint(ctx, cfg.JWT, sessions, opts, os.Stdout)
}
