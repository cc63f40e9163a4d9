// Package config loads service configuration from an optional YAML file,
// a .env file and LOTCOST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"lotcost/internal/domain/costing"
)

const envPrefix = "LOTCOST"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	App struct {
		Env      string `mapstructure:"env"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"app"`

	Storage struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"storage"`

	Postgres struct {
		DSN              string        `mapstructure:"dsn"`
		MaxConns         int32         `mapstructure:"max_conns"`
		MinConns         int32         `mapstructure:"min_conns"`
		StatementTimeout time.Duration `mapstructure:"statement_timeout"`
		LockTimeout      time.Duration `mapstructure:"lock_timeout"`
		MigrateOnStart   bool          `mapstructure:"migrate_on_start"`
	} `mapstructure:"postgres"`

	Costing struct {
		DefaultMethod  string            `mapstructure:"default_method"`
		Overrides      map[string]string `mapstructure:"overrides"`
		MaxRetries     uint64            `mapstructure:"max_retries"`
		RetryBaseDelay time.Duration     `mapstructure:"retry_base_delay"`
	} `mapstructure:"costing"`

	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`

	Idempotency struct {
		Enabled bool          `mapstructure:"enabled"`
		TTL     time.Duration `mapstructure:"ttl"`
	} `mapstructure:"idempotency"`

	Audit struct {
		CompressThreshold int `mapstructure:"compress_threshold"`
	} `mapstructure:"audit"`

	Worker struct {
		ReconcileSpec   string        `mapstructure:"reconcile_spec"`
		OutboxSpec      string        `mapstructure:"outbox_spec"`
		OutboxBatchSize int           `mapstructure:"outbox_batch_size"`
		OutboxRetention time.Duration `mapstructure:"outbox_retention"`
		CleanupSpec     string        `mapstructure:"cleanup_spec"`
	} `mapstructure:"worker"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("storage.driver", StorageMemory)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 25)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.statement_timeout", 30*time.Second)
	v.SetDefault("postgres.lock_timeout", 5*time.Second)
	v.SetDefault("postgres.migrate_on_start", true)

	v.SetDefault("costing.default_method", "fifo")
	v.SetDefault("costing.overrides", map[string]string{})
	v.SetDefault("costing.max_retries", 3)
	v.SetDefault("costing.retry_base_delay", 10*time.Millisecond)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", 24*time.Hour)

	v.SetDefault("audit.compress_threshold", 4096)

	v.SetDefault("worker.reconcile_spec", "@every 10m")
	v.SetDefault("worker.outbox_spec", "@every 5s")
	v.SetDefault("worker.outbox_batch_size", 100)
	v.SetDefault("worker.outbox_retention", 7*24*time.Hour)
	v.SetDefault("worker.cleanup_spec", "@hourly")
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then LOTCOST_* environment variables, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage.Driver))
	}

	if _, err := c.CostingSettings(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("idempotency.ttl must be positive"))
	}
	if c.Worker.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("worker.outbox_batch_size must be positive"))
	}

	return errors.Join(errs...)
}

// CostingSettings builds the per-organization costing method settings.
func (c *Config) CostingSettings() (costing.Settings, error) {
	return costing.NewSettings(c.Costing.DefaultMethod, c.Costing.Overrides)
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
