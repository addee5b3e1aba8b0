// Package main is the entry point for the logiref API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"logiref/internal/bootstrap"
	"logiref/internal/config"
	"logiref/internal/domain/auth"
	v1 "logiref/internal/infrastructure/http/v1"
	"logiref/internal/infrastructure/http/v1/handlers"
	"logiref/internal/infrastructure/telemetry"
	"logiref/pkg/logger"
)

const version = "0.1.0"

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Infow("starting logiref server", "version", version)

	// --- Telemetry ---
	providers, err := telemetry.Setup(ctx, telemetry.ConfigFromEnv("logiref-server"))
	if err != nil {
		log.Fatalw("failed to set up telemetry", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warnw("telemetry shutdown", "error", err)
		}
	}()

	// --- Scheme configuration ---
	file, err := config.Load(getEnv("SCHEMES_CONFIG", ""))
	if err != nil {
		log.Fatalw("failed to load scheme configuration", "error", err)
	}
	svcCfg, err := file.ServiceConfig()
	if err != nil {
		log.Fatalw("invalid allocation configuration", "error", err)
	}
	svcCfg.MaxRetries = getEnvInt("ALLOC_MAX_RETRIES", svcCfg.MaxRetries)
	svcCfg.MaxCount = getEnvInt("ALLOC_MAX_COUNT", svcCfg.MaxCount)
	svcCfg.ReservationTTL = getEnvDuration("RESERVATION_TTL", svcCfg.ReservationTTL)
	svcCfg.RetryBackoff = getEnvDuration("ALLOC_RETRY_BACKOFF", svcCfg.RetryBackoff)

	// --- Store ---
	backend, err := bootstrap.Open(ctx, bootstrap.Options{
		Driver:         getEnv("STORE_DRIVER", bootstrap.DriverPostgres),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "logiref.db"),
		MaxConns:       int32(getEnvInt("DB_MAX_CONNS", 10)),
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		Logger:         log,
	})
	if err != nil {
		log.Fatalw("failed to open store", "error", err)
	}
	defer backend.Close()

	if err := backend.Ping(ctx); err != nil {
		log.Fatalw("failed to ping store", "error", err)
	}

	if getEnv("AUTO_MIGRATE", "false") == "true" {
		v, err := backend.Migrate(ctx)
		if err != nil {
			log.Fatalw("migration failed", "error", err)
		}
		log.Infow("schema migrated", "version", v)
	}

	// --- Services ---
	refService, err := bootstrap.NewReferenceService(backend, file, svcCfg, log.WithComponent("reference"))
	if err != nil {
		log.Fatalw("failed to build reference service", "error", err)
	}
	for _, s := range refService.Schemes() {
		log.Infow("scheme registered", "name", s.Name, "kind", s.Kind,
			"source", s.Source.Table+"."+s.Source.Column)
	}

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(mustEnv("JWT_SECRET")))
	gate := auth.NewGate(backend.Roles)

	idem := backend.Idempotency
	if getEnv("IDEMPOTENCY_ENABLED", "false") != "true" {
		idem = nil
	} else if idem == nil {
		log.Warnw("idempotency requested but not supported by store", "driver", backend.Driver)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Authorizer:   gate,
		References:   refService,
		Health:       handlers.NewHealthHandler(backend, backend.Driver, version, backend.Stats),
		Idempotency:  idem,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      gzhttp.GzipHandler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port, "driver", backend.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
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
