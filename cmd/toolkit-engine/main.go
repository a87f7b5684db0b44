package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/toolkit-engine/internal/answers"
	"github.com/terra-clan/toolkit-engine/internal/api"
	"github.com/terra-clan/toolkit-engine/internal/config"
	"github.com/terra-clan/toolkit-engine/internal/events"
	"github.com/terra-clan/toolkit-engine/internal/goals"
	"github.com/terra-clan/toolkit-engine/internal/graph"
	"github.com/terra-clan/toolkit-engine/internal/health"
	"github.com/terra-clan/toolkit-engine/internal/registry"
	"github.com/terra-clan/toolkit-engine/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting toolkit-engine",
		"env", cfg.Env,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	defs, err := registry.LoadFile(cfg.Registry.File)
	if err != nil {
		slog.Error("failed to load toolkit registry", "file", cfg.Registry.File, "error", err)
		os.Exit(1)
	}
	slog.Info("toolkit registry loaded", "types", len(defs.Types()))

	primary, err := storage.NewPostgresExecutor(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer primary.Close()
	slog.Info("database connected successfully")

	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.RunMigrations(initCtx, primary.Pool(), cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	checks := health.NewRegistry(cfg.Health.CheckTimeout)
	checks.Register(primary)

	// Graph aggregation reads from the replica when one is configured
	var reads storage.Executor = primary
	if cfg.Database.ReplicaDSN != "" {
		replica, err := storage.NewReplicaExecutor(initCtx, cfg.Database.ReplicaDSN, cfg.Database.MaxOpenConns)
		if err != nil {
			slog.Error("failed to connect to read replica", "error", err)
			os.Exit(1)
		}
		defer replica.Close()
		checks.Register(replica)
		reads = replica
		slog.Info("read replica connected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bus events.Bus
	if cfg.Redis.Enabled {
		redisBus, err := events.NewRedisBus(initCtx, events.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		checks.Register(redisBus)
		bus = redisBus
	} else {
		slog.Warn("redis disabled, unlock events stay in-process")
		bus = events.NewLocalBus()
	}
	defer bus.Close()

	health.NewMonitor(checks, cfg.Health.CheckInterval).Start(ctx)

	hub := events.NewHub()
	if err := bus.StartForwarder(ctx, hub.Dispatch); err != nil {
		slog.Error("failed to start event forwarder", "error", err)
		os.Exit(1)
	}

	catalog := storage.NewCatalogStore(primary)
	answerStore := storage.NewAnswerStore(primary)
	goalStore := storage.NewGoalStore(primary, defs)

	engine := goals.NewEngine(goalStore, catalog, bus)
	resolver := answers.NewResolver(defs, answerStore, catalog)
	answerService := answers.NewService(defs, answerStore, catalog, resolver, engine)
	aggregator := graph.NewAggregator(defs, storage.NewAggregateStore(reads), graph.KeyLabeler{})

	server := api.NewServer(cfg.Server, cfg.IsProduction(), api.Services{
		Answers: answerService,
		Graphs:  aggregator,
		Goals:   engine,
		Feed:    hub,
		Health:  checks,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Stops the event forwarder and health monitor
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("toolkit-engine stopped")
}
