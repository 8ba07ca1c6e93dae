package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, "postgres://tasksync:pw@localhost:5432/tasksync?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "development-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "tasks:", cfg.Feed.ChannelPrefix)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "prod")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SYNC_INTERVAL_SECONDS", "45")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("RUN_MIGRATIONS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Address())
	assert.Equal(t, 45*time.Second, cfg.Buffer.SyncInterval)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
	assert.False(t, cfg.Migrations.Enabled)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Environment: "production", Storage: StorageDatastore}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GCP_PROJECT_ID")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg = &Config{Environment: "production", Storage: "mongo", Auth: AuthConfig{JWTSecret: "x"}}
	assert.ErrorContains(t, cfg.Validate(), "unknown STORAGE_DRIVER")

	cfg = &Config{Environment: "staging", Storage: StorageDatastore, Datastore: DatastoreConfig{ProjectID: "p"}, Auth: AuthConfig{JWTSecret: "x"}}
	assert.NoError(t, cfg.Validate())
}
