package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasksync/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(config.DatabaseConfig{
		URL:             "postgres://tasksync:pw@db.internal:5432/tasksync?sslmode=disable",
		MaxOpenConns:    10,
		MaxIdleConns:    20,
		MaxConnLifetime: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, int32(10), cfg.MinConns)
	assert.Equal(t, time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "db.internal", cfg.ConnConfig.Host)
	assert.Equal(t, "tasksync", cfg.ConnConfig.Database)
}

func TestPoolConfigRejectsEmptyURL(t *testing.T) {
	_, err := poolConfig(config.DatabaseConfig{})
	assert.Error(t, err)
}
