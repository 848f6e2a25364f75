// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Config is the full process configuration.
type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	Pricing     PricingConfig
	Idempotency IdempotencyConfig
}

type AppConfig struct {
	Env      string `envconfig:"FARMACIA_APP_ENV" default:"development"`
	Port     string `envconfig:"FARMACIA_APP_PORT" default:"8080"`
	LogLevel string `envconfig:"FARMACIA_LOG_LEVEL" default:"info"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

type DBConfig struct {
	URL             string        `envconfig:"FARMACIA_DATABASE_URL" required:"true"`
	MaxConns        int32         `envconfig:"FARMACIA_DB_MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"FARMACIA_DB_MIN_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"FARMACIA_DB_CONN_MAX_LIFETIME" default:"1h"`

	// StatementTimeout caps each statement inside a transaction. 0 disables it.
	StatementTimeout time.Duration `envconfig:"FARMACIA_DB_STATEMENT_TIMEOUT" default:"30s"`
}

// RedisConfig is optional. An empty URL disables the category cache.
type RedisConfig struct {
	URL         string        `envconfig:"FARMACIA_REDIS_URL"`
	CategoryTTL time.Duration `envconfig:"FARMACIA_CATEGORY_CACHE_TTL" default:"5m"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type PricingConfig struct {
	BulkWorkers int `envconfig:"FARMACIA_BULK_WORKERS" default:"4"`
}

type IdempotencyConfig struct {
	Enabled bool          `envconfig:"FARMACIA_IDEMPOTENCY_ENABLED" default:"false"`
	TTL     time.Duration `envconfig:"FARMACIA_IDEMPOTENCY_TTL" default:"24h"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment take precedence over .env.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !isMissingFile(err) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Pricing.BulkWorkers < 1 {
		return errors.New("FARMACIA_BULK_WORKERS must be at least 1")
	}
	if c.DB.MinConns > c.DB.MaxConns {
		return errors.New("FARMACIA_DB_MIN_CONNS must not exceed FARMACIA_DB_MAX_CONNS")
	}
	if c.Idempotency.Enabled && c.Idempotency.TTL <= 0 {
		return errors.New("FARMACIA_IDEMPOTENCY_TTL must be positive")
	}
	return nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
