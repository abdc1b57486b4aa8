package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("IDEMPOTENCY_BACKEND", "postgres")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Reconciliation.MaxVariancePercent.Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.Reconciliation.MaxVarianceUnits.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 2*time.Minute, cfg.Reconciliation.BulkTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Idempotency.StaleAfter)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_EnvSobrescribe(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("IDEMPOTENCY_BACKEND", "memory")
	t.Setenv("RECON_MAX_VARIANCE_VALUE", "250.50")
	t.Setenv("RECON_BULK_TIMEOUT_SECONDS", "30")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.True(t, cfg.Reconciliation.MaxVarianceValue.Equal(decimal.RequireFromString("250.50")))
	assert.Equal(t, 30*time.Second, cfg.Reconciliation.BulkTimeout)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoad_RedisSinDireccion(t *testing.T) {
	t.Setenv("IDEMPOTENCY_BACKEND", "redis")
	t.Setenv("REDIS_ADDRESS", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_UmbralInvalido(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("IDEMPOTENCY_BACKEND", "memory")
	t.Setenv("RECON_MAX_VARIANCE_UNITS", "diez")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:w/rd", DBName: "ledger", SSLMode: "disable"}

	assert.Equal(t, "postgres://app:p%40ss%3Aw%2Frd@db:5432/ledger?sslmode=disable", c.ConnectionString())
}
