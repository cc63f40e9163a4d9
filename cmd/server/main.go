// Package main is the entry point for the lotcost API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lotcost/internal/app"
	"lotcost/internal/config"
	v1 "lotcost/internal/infrastructure/http/v1"
	"lotcost/internal/infrastructure/http/v1/handlers"
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

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting lotcost server", "storage", cfg.Storage.Driver, "env", cfg.App.Env)

	c, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer c.Close()

	routerCfg := v1.RouterConfig{
		Logger:     log,
		Engine:     c.Engine,
		Settings:   c.Settings,
		Materials:  c.Materials,
		Sales:      c.Sales,
		Production: c.Production,
		Storage:    cfg.Storage.Driver,
	}
	if c.Pool != nil {
		var db handlers.Pinger = c.Pool
		routerCfg.DB = db
	}
	if cfg.Idempotency.Enabled {
		routerCfg.Idempotency = c.Idempotency
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
