package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Archive ArchiveConfig `env:", prefix=ARCHIVE_"`
	Sync    SyncConfig    `env:", prefix=SYNC_"`
	MySQL   MySQLConfig   `env:", prefix=MYSQL_"`
	NATS    NATSConfig    `env:", prefix=NATS_"`
	Logging LoggingConfig `env:", prefix=LOG_"`
}

// ArchiveConfig holds Binance Vision archive settings
type ArchiveConfig struct {
	BaseURL     string        `env:"BASE_URL, default=https://data.binance.vision"`
	TradingType string        `env:"TRADING_TYPE, default=spot"`
	Timeout     time.Duration `env:"TIMEOUT, default=60s"`
}

// SyncConfig holds synchronization defaults; the sync command's flags
// override DataDir and the backoff knobs per invocation
type SyncConfig struct {
	DataDir        string        `env:"DATA_DIR, default=./binance_data"`
	RateLimitSleep time.Duration `env:"RATE_LIMIT_SLEEP, default=1s"`
	MaxBackoff     time.Duration `env:"MAX_BACKOFF, default=64s"`
}

// MySQLConfig holds the optional sync-run ledger database configuration
type MySQLConfig struct {
	Enabled         bool          `env:"ENABLED, default=false"`
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=klines"`
	User            string        `env:"USER, default=klines"`
	Password        string        `env:"PASSWORD"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=5"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// NATSConfig holds the optional event publisher configuration
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=text"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive base URL is required")
	}

	if c.Sync.RateLimitSleep <= 0 {
		return fmt.Errorf("rate limit sleep must be positive, got %s", c.Sync.RateLimitSleep)
	}

	if c.Sync.MaxBackoff < c.Sync.RateLimitSleep {
		return fmt.Errorf("max backoff %s is below the initial sleep %s", c.Sync.MaxBackoff, c.Sync.RateLimitSleep)
	}

	if c.MySQL.Enabled && c.MySQL.Host == "" {
		return fmt.Errorf("MySQL host is required when the ledger is enabled")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required when event publishing is enabled")
	}

	return nil
}

// GetMySQLDSN returns MySQL DSN string
func (c *Config) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Database,
	)
}
