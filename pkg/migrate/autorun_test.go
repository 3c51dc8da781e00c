package migrate

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

func sqliteRemote(t *testing.T) (*config.Config, *db.Client) {
	t.Helper()
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{SQLitePath: filepath.Join(t.TempDir(), "remote.db")},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true},
	}
	client, err := db.New(context.Background(), cfg.DB, true, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return cfg, client
}

func TestMaybeRunDevOnlyWarnsWithoutAutoMigrate(t *testing.T) {
	cfg, client := sqliteRemote(t)
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	require.NoError(t, MaybeRunDev(context.Background(), cfg, logg, client))
	assert.Contains(t, buf.String(), "migrate.schema_behind")
	assert.False(t, client.DB().Migrator().HasTable("orders"))
}

func TestMaybeRunDevAppliesShippedMigrations(t *testing.T) {
	cfg, client := sqliteRemote(t)
	cfg.FeatureFlags.AutoMigrate = true

	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), client))
	assert.True(t, client.DB().Migrator().HasTable("orders"))
	assert.True(t, client.DB().Migrator().HasTable("sync_applied_entries"))

	cfg.FeatureFlags.AutoMigrate = false
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logg, client))
	assert.NotContains(t, buf.String(), "migrate.schema_behind")
}
