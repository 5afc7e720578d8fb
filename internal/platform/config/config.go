// Package config loads process configuration from LTED_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "LTED"

// Config is the process-level configuration. Governance rules are data and
// live in the store, not here.
type Config struct {
	Addr              string        `default:":8080"`
	DatabaseURL       string        `split_words:"true"`
	DBMaxOpenConns    int           `split_words:"true" default:"10"`
	DBMaxIdleConns    int           `split_words:"true" default:"5"`
	DBConnMaxLifetime time.Duration `split_words:"true" default:"30m"`
	Redis             RedisConfig
	LogLevel          string        `split_words:"true" default:"info"`
	ReconcileInterval time.Duration `split_words:"true" default:"0"`
	TxTimeout         time.Duration `split_words:"true" default:"5s"`
	MetricsEnabled    bool          `split_words:"true" default:"true"`
	ShutdownTimeout   time.Duration `split_words:"true" default:"10s"`
}

// RedisConfig configures the optional reconciliation run lock, read from
// LTED_REDIS_*. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int           `split_words:"true" default:"10"`
	MinIdleConns int           `split_words:"true" default:"2"`
	DialTimeout  time.Duration `split_words:"true" default:"5s"`
	ReadTimeout  time.Duration `split_words:"true" default:"3s"`
	WriteTimeout time.Duration `split_words:"true" default:"3s"`
	LockTTL      time.Duration `split_words:"true" default:"10m"`
}

// FromEnv reads and validates the configuration.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("reconcile interval must not be negative")
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("tx timeout must be positive")
	}
	if c.Redis.URL != "" && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis lock ttl must be positive")
	}
	return nil
}
