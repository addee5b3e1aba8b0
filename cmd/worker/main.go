// Package main is the entry point for the logiref background worker.
// It purges expired reservations and idempotency keys on a fixed interval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"logiref/internal/bootstrap"
	"logiref/internal/config"
	"logiref/internal/core/idempotency"
	"logiref/internal/infrastructure/telemetry"
	"logiref/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting logiref worker")

	providers, err := telemetry.Setup(ctx, telemetry.ConfigFromEnv("logiref-worker"))
	if err != nil {
		log.Fatalw("failed to set up telemetry", "error", err)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	file, err := config.Load(getEnv("SCHEMES_CONFIG", ""))
	if err != nil {
		log.Fatalw("failed to load scheme configuration", "error", err)
	}
	svcCfg, err := file.ServiceConfig()
	if err != nil {
		log.Fatalw("invalid allocation configuration", "error", err)
	}

	backend, err := bootstrap.Open(ctx, bootstrap.Options{
		Driver:         getEnv("STORE_DRIVER", bootstrap.DriverPostgres),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "logiref.db"),
		MaxConns:       2,
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		Logger:         log,
	})
	if err != nil {
		log.Fatalw("failed to open store", "error", err)
	}
	defer backend.Close()

	refService, err := bootstrap.NewReferenceService(backend, file, svcCfg, log.WithComponent("reference"))
	if err != nil {
		log.Fatalw("failed to build reference service", "error", err)
	}

	worker := NewPurgeWorker(refService, backend.Idempotency, getEnvDuration("PURGE_INTERVAL", 10*time.Minute), log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// ReservationPurger removes expired reservations.
type ReservationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeWorker periodically drops expired reservations and idempotency keys.
type PurgeWorker struct {
	reservations ReservationPurger
	idempotency  idempotency.Store
	interval     time.Duration
	log          *logger.Logger
}

// NewPurgeWorker creates a worker. idem may be nil.
func NewPurgeWorker(reservations ReservationPurger, idem idempotency.Store, interval time.Duration, log *logger.Logger) *PurgeWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &PurgeWorker{
		reservations: reservations,
		idempotency:  idem,
		interval:     interval,
		log:          log.WithComponent("worker"),
	}
}

// Run purges once immediately and then on every tick until ctx is cancelled.
func (w *PurgeWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.purge(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.purge(ctx)
		}
	}
}

func (w *PurgeWorker) purge(ctx context.Context) {
	n, err := w.reservations.PurgeExpired(ctx)
	if err != nil {
		w.log.Errorw("failed to purge reservations", "error", err)
	} else {
		w.log.Debugw("reservation purge done", "count", n)
	}

	if w.idempotency == nil {
		return
	}
	n, err = w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
