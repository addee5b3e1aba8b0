// Package bootstrap opens the configured store and builds the services shared by
// the server, the worker and refctl.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"logiref/internal/config"
	"logiref/internal/core/idempotency"
	"logiref/internal/core/tx"
	"logiref/internal/domain/auth"
	"logiref/internal/domain/reference"
	"logiref/internal/infrastructure/storage/postgres"
	"logiref/internal/infrastructure/storage/postgres/auth_repo"
	"logiref/internal/infrastructure/storage/postgres/reference_repo"
	"logiref/internal/infrastructure/storage/sqlite"
	"logiref/pkg/logger"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects and configures the store.
type Options struct {
	Driver         string
	DatabaseURL    string // postgres
	SQLitePath     string // sqlite; ":memory:" for a throwaway database
	MaxConns       int32
	IdempotencyTTL time.Duration
	Logger         *logger.Logger
}

// IdentifierImporter writes identifiers issued outside the allocator into a source column.
type IdentifierImporter interface {
	InsertIdentifiers(ctx context.Context, src reference.Source, values ...string) error
}

// Backend bundles the repositories of one store.
type Backend struct {
	Driver      string
	References  reference.Repository
	Importer    IdentifierImporter
	TxManager   tx.SerializableManager
	Roles       auth.RoleResolver
	Idempotency idempotency.Store // nil when the driver has none

	ping    func(ctx context.Context) error
	migrate func(ctx context.Context) (int64, error)
	stats   func() any
	close   func()
}

// Open connects to the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverPostgres, "":
		return openPostgres(ctx, opts, log)
	case DriverSQLite:
		return openSQLite(opts, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

func openPostgres(ctx context.Context, opts Options, log *logger.Logger) (*Backend, error) {
	if opts.DatabaseURL == "" {
		return nil, fmt.Errorf("postgres driver requires DATABASE_URL")
	}
	poolCfg := postgres.DefaultPoolConfig(opts.DatabaseURL)
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	log.Infow("postgres pool ready", "max_conns", poolCfg.MaxConns)

	txm := postgres.NewTxManager(pool)
	refs := reference_repo.NewReferenceRepo(txm)
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Backend{
		Driver:      DriverPostgres,
		References:  refs,
		Importer:    refs,
		TxManager:   txm,
		Roles:       auth_repo.NewRoleRepo(txm),
		Idempotency: postgres.NewIdempotencyStore(txm, ttl),
		ping:        txm.Ping,
		migrate: func(ctx context.Context) (int64, error) {
			return postgres.Migrate(ctx, pool)
		},
		stats: func() any { return pool.Stats() },
		close: pool.Close,
	}, nil
}

func openSQLite(opts Options, log *logger.Logger) (*Backend, error) {
	path := opts.SQLitePath
	if path == "" {
		path = "logiref.db"
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	log.Infow("sqlite store ready", "path", path)

	refs := sqlite.NewReferenceRepo(store)
	return &Backend{
		Driver:     DriverSQLite,
		References: refs,
		Importer:   refs,
		TxManager:  store,
		Roles:      sqlite.NewRoleRepo(store),
		ping:       store.Ping,
		// Migrations run when the store is opened.
		migrate: func(context.Context) (int64, error) { return 0, nil },
		stats:   func() any { return store.DB().Stats() },
		close:   func() { _ = store.Close() },
	}, nil
}

// Ping checks the store connection.
func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Migrate applies pending schema migrations and returns the resulting version.
func (b *Backend) Migrate(ctx context.Context) (int64, error) {
	return b.migrate(ctx)
}

// Stats returns driver-specific pool statistics.
func (b *Backend) Stats() any {
	return b.stats()
}

// Close releases the store.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// NewReferenceService builds the allocation service from the scheme file and cfg.
func NewReferenceService(b *Backend, file *config.File, cfg reference.Config, log *logger.Logger) (*reference.Service, error) {
	schemes, err := file.ResolveSchemes()
	if err != nil {
		return nil, fmt.Errorf("load schemes: %w", err)
	}
	return reference.NewService(reference.ServiceConfig{
		Repo:      b.References,
		TxManager: b.TxManager,
		Schemes:   schemes,
		Config:    cfg,
		Logger:    log,
	})
}
