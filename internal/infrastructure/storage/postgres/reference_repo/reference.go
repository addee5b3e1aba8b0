// Package reference_repo provides the PostgreSQL implementation of reference.Repository.
package reference_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"logiref/internal/core/numerator"
	"logiref/internal/domain/reference"
	"logiref/internal/infrastructure/storage/postgres"
)

const reservationsTable = "ref_reservations"

var reservationColumns = postgres.DBColumns[reference.Reservation]()

var _ reference.Repository = (*ReferenceRepo)(nil)

// ReferenceRepo reads identifier sources and writes the reservation ledger.
type ReferenceRepo struct {
	txm *postgres.TxManager
}

// NewReferenceRepo creates a new reference repository.
func NewReferenceRepo(txm *postgres.TxManager) *ReferenceRepo {
	return &ReferenceRepo{txm: txm}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// ListIdentifiers returns one page of raw values of the source column.
func (r *ReferenceRepo) ListIdentifiers(ctx context.Context, q reference.PageQuery) ([]*string, error) {
	sql, args, err := buildPageQuery(q)
	if err != nil {
		return nil, err
	}

	var values []*string
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &values, sql, args...); err != nil {
		return nil, postgres.MapConflict(fmt.Errorf("select %s.%s: %w", q.Source.Table, q.Source.Column, err))
	}
	return values, nil
}

func buildPageQuery(q reference.PageQuery) (string, []any, error) {
	if err := q.Source.Validate(); err != nil {
		return "", nil, err
	}
	if q.Limit <= 0 || q.Offset < 0 {
		return "", nil, fmt.Errorf("invalid page offset=%d limit=%d", q.Offset, q.Limit)
	}

	col := q.Source.Column
	b := builder().
		Select(col).
		From(q.Source.Table).
		OrderBy(col + " ASC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset))
	if q.Prefix != "" {
		b = b.Where(squirrel.Expr(col+` ILIKE ? ESCAPE '\'`, numerator.LikePattern(q.Prefix)))
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build page query: %w", err)
	}
	return sql, args, nil
}

// ListReservedNumbers returns sequence numbers of unexpired reservations.
func (r *ReferenceRepo) ListReservedNumbers(ctx context.Context, scheme, groupKey string, now time.Time) ([]int64, error) {
	sql, args, err := builder().
		Select("seq").
		From(reservationsTable).
		Where(squirrel.Eq{"scheme": scheme, "group_key": groupKey}).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reservations query: %w", err)
	}

	var nums []int64
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &nums, sql, args...); err != nil {
		return nil, postgres.MapConflict(fmt.Errorf("select reservations: %w", err))
	}
	return nums, nil
}

// Reserve inserts reservations. An existing row for the same reference is only
// replaced when it has expired; otherwise the insert counts short and the whole
// batch is reported as a conflict.
func (r *ReferenceRepo) Reserve(ctx context.Context, rs []reference.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	sql, args, err := buildReserveInsert(rs)
	if err != nil {
		return err
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapConflict(fmt.Errorf("insert reservations: %w", err))
	}
	if n := tag.RowsAffected(); n != int64(len(rs)) {
		return fmt.Errorf("%d of %d references already reserved: %w", int64(len(rs))-n, len(rs), reference.ErrConflict)
	}
	return nil
}

func buildReserveInsert(rs []reference.Reservation) (string, []any, error) {
	ins := builder().Insert(reservationsTable).Columns(reservationColumns...)
	for _, res := range rs {
		ins = ins.Values(postgres.RowValues(res, reservationColumns)...)
	}

	var set []string
	for _, col := range reservationColumns {
		if col == "reference" {
			continue
		}
		set = append(set, col+" = EXCLUDED."+col)
	}
	ins = ins.Suffix("ON CONFLICT (reference) DO UPDATE SET " + strings.Join(set, ", ") +
		" WHERE " + reservationsTable + ".expires_at <= EXCLUDED.reserved_at")

	sql, args, err := ins.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build reservation insert: %w", err)
	}
	return sql, args, nil
}

// PurgeExpired deletes reservations expired at or before now.
func (r *ReferenceRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	sql, args, err := builder().
		Delete(reservationsTable).
		Where(squirrel.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("purge reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertIdentifiers bulk-loads values into a source column with COPY, in one
// transaction. Used by refctl import to bring in identifiers issued elsewhere.
func (r *ReferenceRepo) InsertIdentifiers(ctx context.Context, src reference.Source, values ...string) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := postgres.NewBatchInserter(r.txm).CopyFromSlice(ctx, src.Table, []string{src.Column}, rows)
		return err
	})
}
