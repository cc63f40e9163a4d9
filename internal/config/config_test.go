package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/core/id"
	"lotcost/internal/domain/costing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, uint64(3), cfg.Costing.MaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, "@every 10m", cfg.Worker.ReconcileSpec)
	assert.True(t, cfg.IsDevelopment())

	settings, err := cfg.CostingSettings()
	require.NoError(t, err)
	assert.Equal(t, costing.FIFO, settings.Default)
}

func TestLoad_FileAndEnv(t *testing.T) {
	org := id.New()
	path := writeConfig(t, `
storage:
  driver: postgres
postgres:
  dsn: postgres://localhost/lotcost
  lock_timeout: 2s
costing:
  default_method: lifo
  overrides:
    `+org.String()+`: wac
`)
	t.Setenv("LOTCOST_HTTP_ADDR", ":9090")
	t.Setenv("LOTCOST_COSTING_MAX_RETRIES", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Postgres.LockTimeout)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, uint64(5), cfg.Costing.MaxRetries)

	settings, err := cfg.CostingSettings()
	require.NoError(t, err)
	assert.Equal(t, costing.LIFO, settings.MethodFor(id.New()))
	assert.Equal(t, costing.WAC, settings.MethodFor(org))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = StoragePostgres }, "postgres.dsn"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.driver"},
		{"bad method", func(c *Config) { c.Costing.DefaultMethod = "average" }, "default costing method"},
		{"zero ttl", func(c *Config) { c.Idempotency.TTL = 0 }, "idempotency.ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
