// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the implementations live in
// infrastructure/storage (postgres and sqlite).
package tx

import (
	"context"
	"errors"
)

// ErrConflict marks a transaction that lost a race against a concurrent one
// (serialization failure, deadlock, or unique-constraint violation). The whole
// read-decide-write cycle may be retried.
var ErrConflict = errors.New("conflicting concurrent transaction")

// ErrIsolationDowngrade is returned when a transaction is requested inside an
// already open one with weaker isolation. Reusing the outer transaction would
// silently drop the guarantee the caller asked for.
var ErrIsolationDowngrade = errors.New("transaction nested in one with weaker isolation")

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested transaction support.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SerializableManager runs fn with serializable isolation. A read-then-insert cycle
// executed this way either commits against the snapshot it read or fails with a
// serialization error that the caller may retry.
//
// RunSerializable must not be nested inside a weaker transaction; implementations
// return ErrIsolationDowngrade in that case.
type SerializableManager interface {
	Manager

	RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}
