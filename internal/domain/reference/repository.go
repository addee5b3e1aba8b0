package reference

import (
	"context"
	"time"

	"logiref/internal/core/tx"
)

// ErrConflict is returned by Repository.Reserve (and by the transaction manager on
// commit) when a concurrent allocation won the race. The whole cycle is retried.
var ErrConflict = tx.ErrConflict

// PageQuery requests one page of raw identifiers from a source column.
type PageQuery struct {
	Source Source
	// Prefix narrows the scan to rows that may parse with this head once trimmed and
	// upper-cased. Implementations may return a superset. Empty means all rows.
	Prefix string
	Offset int
	Limit  int
}

// Repository is the storage port of the allocation service.
// Implementations pick up the transaction from ctx when one is active.
type Repository interface {
	// ListIdentifiers returns one page of raw column values ordered ascending.
	// Values may be NULL or malformed; filtering is the caller's job.
	ListIdentifiers(ctx context.Context, q PageQuery) ([]*string, error)

	// ListReservedNumbers returns sequence numbers of reservations for scheme/group
	// that have not expired at now.
	ListReservedNumbers(ctx context.Context, scheme, groupKey string, now time.Time) ([]int64, error)

	// Reserve inserts reservations. A uniqueness violation yields an error wrapping ErrConflict.
	Reserve(ctx context.Context, reservations []Reservation) error

	// PurgeExpired deletes reservations that expired at or before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
