package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/db"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot when running in dev
// with TABLESERVE_AUTO_MIGRATE set. Every binary calls it before wiring
// repositories.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "migrate.autorun.start")

	results, err := Up(ctx, sqlDB, "")
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "applied", len(results)), "migrate.autorun.done")
	return nil
}
