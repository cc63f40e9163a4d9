// Package app wires storage, the costing engine and the document services
// from configuration. It is shared by the server, worker and seed commands.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"lotcost/internal/config"
	"lotcost/internal/core/numerator"
	"lotcost/internal/core/tx"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/costing"
	"lotcost/internal/domain/documents/production"
	"lotcost/internal/domain/documents/sale"
	"lotcost/internal/domain/registers/lots"
	"lotcost/internal/infrastructure/idempotency"
	"lotcost/internal/infrastructure/memory"
	"lotcost/internal/infrastructure/metrics"
	pgnumerator "lotcost/internal/infrastructure/numerator"
	"lotcost/internal/infrastructure/storage/postgres"
	"lotcost/internal/infrastructure/storage/postgres/catalog_repo"
	"lotcost/internal/infrastructure/storage/postgres/register_repo"
	"lotcost/pkg/logger"
)

// Container holds the wired components.
type Container struct {
	Config *config.Config

	TxManager    tx.Manager
	MaterialRepo material.Repository
	LotRepo      lots.Repository

	// Bulk inserts lots in one batch; it is the lot repository itself.
	Bulk lots.BulkCreator

	Settings   costing.Settings
	Engine     *costing.Engine
	Materials  *material.Service
	Sales      *sale.Service
	Production *production.Service

	Idempotency idempotency.Store
	Numerator   numerator.Generator
	Registry    *prometheus.Registry

	// Postgres only; nil for in-memory storage.
	Pool *postgres.Pool
	PgTx *postgres.TxManager
}

// New builds the container for cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	settings, err := cfg.CostingSettings()
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:   cfg,
		Settings: settings,
		Registry: prometheus.NewRegistry(),
	}

	var journal costing.Journal
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		journal, err = c.openPostgres(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
	default:
		c.openMemory()
	}

	opts := []costing.Option{
		costing.WithRetryPolicy(c.retryPolicy()),
	}
	if journal != nil {
		opts = append(opts, costing.WithJournal(journal))
	}
	if cfg.Metrics.Enabled {
		c.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder, err := metrics.NewRecorder(c.Registry)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, costing.WithRecorder(recorder))
	}

	c.Engine = costing.NewEngine(c.TxManager, c.MaterialRepo, c.LotRepo, opts...)
	c.Materials = material.NewService(c.MaterialRepo, c.TxManager)
	c.Sales = sale.NewService(c.Engine, c.MaterialRepo, settings, c.Numerator)
	c.Production = production.NewService(c.Engine, c.MaterialRepo, settings, c.Numerator)

	logger.Info(ctx, "components wired",
		"storage", cfg.Storage.Driver,
		"default_method", cfg.Costing.DefaultMethod,
		"metrics", cfg.Metrics.Enabled)
	return c, nil
}

func (c *Container) openMemory() {
	store := memory.NewStore()
	c.TxManager = store.TxManager()
	c.MaterialRepo = store.Materials()
	lotRepo := store.Lots()
	c.LotRepo = lotRepo
	c.Bulk = lotRepo
	c.Idempotency = idempotency.NewMemoryStore(c.Config.Idempotency.TTL)
	c.Numerator = numerator.NewMemoryGenerator()
}

func (c *Container) openPostgres(ctx context.Context) (costing.Journal, error) {
	cfg := c.Config

	poolCfg := postgres.DefaultPoolConfig(cfg.Postgres.DSN)
	if cfg.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolCfg.MinConns = cfg.Postgres.MinConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	c.Pool = pool

	if cfg.Postgres.MigrateOnStart {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}
	}

	txOpts := postgres.DefaultTxOptions()
	if cfg.Postgres.StatementTimeout > 0 {
		txOpts.StatementTimeout = cfg.Postgres.StatementTimeout
	}
	if cfg.Postgres.LockTimeout > 0 {
		txOpts.LockTimeout = cfg.Postgres.LockTimeout
	}
	txm := postgres.NewTxManager(pool, txOpts)
	c.PgTx = txm
	c.TxManager = txm

	c.MaterialRepo = catalog_repo.NewMaterialRepo(txm)
	lotRepo := register_repo.NewLotRepo(txm)
	c.LotRepo = lotRepo
	c.Bulk = lotRepo
	c.Idempotency = postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL)
	c.Numerator = pgnumerator.New(txm)

	audit, err := postgres.NewAuditService(txm, cfg.Audit.CompressThreshold)
	if err != nil {
		return nil, fmt.Errorf("create audit service: %w", err)
	}
	return postgres.NewJournal(postgres.NewOutboxPublisher(txm), audit), nil
}

func (c *Container) retryPolicy() tx.RetryPolicy {
	policy := tx.DefaultRetryPolicy()
	policy.MaxRetries = c.Config.Costing.MaxRetries
	if c.Config.Costing.RetryBaseDelay > 0 {
		policy.BaseDelay = c.Config.Costing.RetryBaseDelay
	}
	return policy
}

// Close releases the database pool, if any.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
