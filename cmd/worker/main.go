// Package main is the entry point for the lotcost background worker.
// It reconciles material aggregates, relays journal events from the outbox
// and cleans up expired idempotency keys.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lotcost/internal/app"
	"lotcost/internal/config"
	"lotcost/internal/infrastructure/storage/postgres"
	"lotcost/internal/scheduler"
	"lotcost/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Storage.Driver != config.StoragePostgres {
		log.Fatalw("worker requires postgres storage", "storage", cfg.Storage.Driver)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting lotcost worker")

	c, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer c.Close()

	relay := postgres.NewOutboxRelay(c.PgTx, cfg.Worker.OutboxBatchSize, postgres.OutboxHandlerFunc(publishToLog))

	sched := scheduler.New(scheduler.Options{
		ReconcileSpec:   cfg.Worker.ReconcileSpec,
		OutboxSpec:      cfg.Worker.OutboxSpec,
		OutboxRetention: cfg.Worker.OutboxRetention,
		CleanupSpec:     cfg.Worker.CleanupSpec,
	}, log, c.Engine, relay, c.Idempotency, c.Pool)

	if err := sched.Start(); err != nil {
		log.Fatalw("failed to start scheduler", "error", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	sched.Stop()
	log.Info("worker stopped")
}

// publishToLog is the outbox sink: events are written to the structured log,
// where downstream collectors pick them up.
func publishToLog(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "event published",
		"event_id", msg.ID,
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"payload", string(msg.Payload))
	return nil
}
