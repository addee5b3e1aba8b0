package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"logiref/internal/core/numerator"
	"logiref/internal/domain/reference"
)

var _ reference.Repository = (*ReferenceRepo)(nil)

// ReferenceRepo implements reference.Repository on SQLite.
type ReferenceRepo struct {
	store *Store
}

// NewReferenceRepo creates a new reference repository.
func NewReferenceRepo(store *Store) *ReferenceRepo {
	return &ReferenceRepo{store: store}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// ListIdentifiers returns one page of raw values of the source column.
func (r *ReferenceRepo) ListIdentifiers(ctx context.Context, q reference.PageQuery) ([]*string, error) {
	if err := q.Source.Validate(); err != nil {
		return nil, err
	}
	if q.Limit <= 0 || q.Offset < 0 {
		return nil, fmt.Errorf("invalid page offset=%d limit=%d", q.Offset, q.Limit)
	}

	col := q.Source.Column
	b := builder().
		Select(col).
		From(q.Source.Table).
		OrderBy(col + " ASC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset))
	if q.Prefix != "" {
		// LIKE is case-insensitive for ASCII in SQLite.
		b = b.Where(squirrel.Expr(col+` LIKE ? ESCAPE '\'`, numerator.LikePattern(q.Prefix)))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build page query: %w", err)
	}

	var values []*string
	if err := sqlscan.Select(ctx, r.store.querier(ctx), &values, query, args...); err != nil {
		return nil, fmt.Errorf("select %s.%s: %w", q.Source.Table, col, mapConflict(err))
	}
	return values, nil
}

// ListReservedNumbers returns sequence numbers of unexpired reservations.
func (r *ReferenceRepo) ListReservedNumbers(ctx context.Context, scheme, groupKey string, now time.Time) ([]int64, error) {
	query, args, err := builder().
		Select("seq").
		From("ref_reservations").
		Where(squirrel.Eq{"scheme": scheme, "group_key": groupKey}).
		Where(squirrel.Gt{"expires_at": now.UnixNano()}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reservations query: %w", err)
	}

	var nums []int64
	if err := sqlscan.Select(ctx, r.store.querier(ctx), &nums, query, args...); err != nil {
		return nil, fmt.Errorf("select reservations: %w", mapConflict(err))
	}
	return nums, nil
}

// Reserve inserts reservations, replacing only expired rows for the same reference.
func (r *ReferenceRepo) Reserve(ctx context.Context, rs []reference.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	ins := builder().Insert("ref_reservations").
		Columns("id", "scheme", "group_key", "seq", "reference", "reserved_by", "reserved_at", "expires_at")
	for _, res := range rs {
		ins = ins.Values(res.ID.String(), res.Scheme, res.GroupKey, res.Seq, res.Reference,
			res.ReservedBy, res.ReservedAt.UnixNano(), res.ExpiresAt.UnixNano())
	}
	ins = ins.Suffix(`ON CONFLICT (reference) DO UPDATE SET
		id = excluded.id, scheme = excluded.scheme, group_key = excluded.group_key, seq = excluded.seq,
		reserved_by = excluded.reserved_by, reserved_at = excluded.reserved_at, expires_at = excluded.expires_at
		WHERE ref_reservations.expires_at <= excluded.reserved_at`)

	query, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build reservation insert: %w", err)
	}
	result, err := r.store.querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert reservations: %w", mapConflict(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != int64(len(rs)) {
		return fmt.Errorf("%d of %d references already reserved: %w", int64(len(rs))-n, len(rs), reference.ErrConflict)
	}
	return nil
}

// PurgeExpired deletes reservations expired at or before now.
func (r *ReferenceRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.store.querier(ctx).ExecContext(ctx,
		`DELETE FROM ref_reservations WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge reservations: %w", err)
	}
	return result.RowsAffected()
}

// InsertIdentifiers adds rows to a source column. Used by refctl import and tests.
func (r *ReferenceRepo) InsertIdentifiers(ctx context.Context, src reference.Source, values ...string) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	ins := builder().Insert(src.Table).Columns(src.Column)
	for _, v := range values {
		ins = ins.Values(v)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.store.querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s.%s: %w", src.Table, src.Column, err)
	}
	return nil
}
