package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://data.binance.vision", cfg.Archive.BaseURL)
	assert.Equal(t, "spot", cfg.Archive.TradingType)
	assert.Equal(t, "./binance_data", cfg.Sync.DataDir)
	assert.Equal(t, time.Second, cfg.Sync.RateLimitSleep)
	assert.Equal(t, 64*time.Second, cfg.Sync.MaxBackoff)
	assert.False(t, cfg.MySQL.Enabled)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ARCHIVE_TRADING_TYPE", "futures/um")
	t.Setenv("SYNC_RATE_LIMIT_SLEEP", "2s")
	t.Setenv("SYNC_MAX_BACKOFF", "128s")
	t.Setenv("SYNC_DATA_DIR", "/var/data/klines")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "futures/um", cfg.Archive.TradingType)
	assert.Equal(t, 2*time.Second, cfg.Sync.RateLimitSleep)
	assert.Equal(t, 128*time.Second, cfg.Sync.MaxBackoff)
	assert.Equal(t, "/var/data/klines", cfg.Sync.DataDir)
}

func TestValidate_MaxBackoffBelowInitialSleep(t *testing.T) {
	t.Setenv("SYNC_RATE_LIMIT_SLEEP", "10s")
	t.Setenv("SYNC_MAX_BACKOFF", "5s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max backoff")
}

func TestGetMySQLDSN(t *testing.T) {
	cfg := &Config{}
	cfg.MySQL.User = "klines"
	cfg.MySQL.Password = "secret"
	cfg.MySQL.Host = "db.internal"
	cfg.MySQL.Port = 3306
	cfg.MySQL.Database = "klines"

	assert.Equal(t,
		"klines:secret@tcp(db.internal:3306)/klines?parseTime=true&multiStatements=true",
		cfg.GetMySQLDSN(),
	)
}
