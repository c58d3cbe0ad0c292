package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"signal-analytics-go/internal/api"
	"signal-analytics-go/internal/config"
	"signal-analytics-go/internal/database"
	"signal-analytics-go/internal/logger"
	"signal-analytics-go/internal/observability"
	"signal-analytics-go/internal/performance"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/remote"
	"signal-analytics-go/internal/store"
)

func main() {
	configPath := flag.String("config", "./configs", "directory holding config.yml")
	flag.Parse()

	// Load application configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.FromConfig(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.String("store_backend", cfg.Store.Backend))

	blobs, err := newStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize store", zap.Error(err))
	}

	metrics := observability.NewMetrics(observability.DefaultNamespace)

	opts := []performance.Option{
		performance.WithStore(blobs, cfg.Store.Key),
		performance.WithMetrics(metrics),
		performance.WithAutoPersist(cfg.Analytics.AutoPersist),
	}
	if cfg.Analytics.Seed != 0 {
		opts = append(opts, performance.WithRandom(random.New(cfg.Analytics.Seed)))
	}
	aggregator := performance.New(log, opts...)

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := aggregator.Load(ctx); err != nil {
		log.Fatal("Failed to load persisted snapshot", zap.Error(err))
	}
	log.Info("Snapshot loaded", zap.Int("trades", aggregator.Len()))

	autosaveDone := make(chan struct{})
	go func() {
		defer close(autosaveDone)
		performance.NewAutosaver(log, aggregator, cfg.Analytics.PersistInterval).Run(ctx)
	}()

	server := api.NewAPIServer(cfg.Server.Port, aggregator, api.DefaultsFromConfig(cfg.Analytics), metrics, log)
	server.Start()

	<-ctx.Done()
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	<-autosaveDone

	log.Info("Server has been shut down.")
}

// newStore opens the blob store named by cfg.Store.Backend.
func newStore(cfg config.Config, log *zap.Logger) (store.BlobStore, error) {
	switch cfg.Store.Backend {
	case "sqlite", "":
		db, err := database.NewDatabase(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		log.Info("Database connection successful and schema migrated.", zap.String("dsn", cfg.Database.DSN))
		return database.NewBlobStore(db), nil
	case "http":
		return remote.NewClient(cfg.Store, log), nil
	case "memory":
		log.Warn("Using in-memory store; snapshots are lost on exit")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
