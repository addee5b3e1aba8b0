// Package sqlite provides an embedded SQLite store for local runs and tests.
// It implements the same ports as the PostgreSQL adapter.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/pressly/goose/v3"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"logiref/internal/core/tx"
	"logiref/pkg/logger"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ tx.SerializableManager = (*Store)(nil)

// Store owns the database handle and the transaction carried in contexts.
//
// The pool is limited to one connection: SQLite serializes writers anyway,
// and an in-memory database only exists on the connection that created it.
type Store struct {
	db *sql.DB
}

// Open opens an instrumented SQLite database, applies pragmas and runs migrations.
// Every statement gets a span and the pool reports db stats metrics.
func Open(dataSourceName string) (*Store, error) {
	db, err := otelsql.Open("sqlite", dataSourceName,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}
	if !strings.Contains(dataSourceName, ":memory:") {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type txKey struct{}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) querier(ctx context.Context) querier {
	if t, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return t
	}
	return s.db
}

// RunInTransaction executes fn in a transaction, reusing one already in ctx.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapConflict(err))
	}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		if rbErr := t.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return mapConflict(err)
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapConflict(err))
	}
	return nil
}

// RunSerializable is RunInTransaction: every SQLite transaction is serializable,
// so reusing an outer one never weakens isolation.
func (s *Store) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// mapConflict wraps unique violations and lock contention with tx.ErrConflict.
func mapConflict(err error) error {
	if err == nil || errors.Is(err, tx.ErrConflict) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %w", tx.ErrConflict, err)
	}
	return err
}
