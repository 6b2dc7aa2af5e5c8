package migrate

import (
	"context"
	"fmt"

	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/logger"
)

// MaybeRunDev applies migrations on boot when the app runs in dev mode with
// the auto-migrate flag, or always for sqlite which has no separate migrate step.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqlite := cfg.DB.NormalizedDriver() == config.DriverSQLite
	if !sqlite && (!cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate) {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "db_driver": client.Driver()})
	logg.Info(ctx, "applying schema migrations (auto-run)")

	if err := Apply(ctx, client); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	logg.Info(ctx, "schema migrations completed")
	return nil
}
