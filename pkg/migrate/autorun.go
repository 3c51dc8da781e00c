package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

// MaybeRunDev applies the shipped migrations to the remote store in dev when auto-migrate
// is on. Elsewhere it only reports a schema that lags behind the binary.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	dialect := DialectFor(cfg.FeatureFlags.UseSQLite)
	runner, err := NewRunner(sqlDB, dialect, Shipped())
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": string(dialect)})

	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		pending, err := runner.Pending(ctx)
		if err != nil {
			return err
		}
		if pending {
			logg.Warn(ctx, "migrate.schema_behind")
		}
		return nil
	}

	results, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(results)), "migrate.dev_applied")
	return nil
}
