package reference_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logiref/internal/domain/reference"
)

func TestBuildPageQuery(t *testing.T) {
	src := reference.Source{Table: "registros", Column: "ref_asli"}

	sql, args, err := buildPageQuery(reference.PageQuery{Source: src, Offset: 2000, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, "SELECT ref_asli FROM registros ORDER BY ref_asli ASC LIMIT 1000 OFFSET 2000", sql)
	assert.Empty(t, args)

	sql, args, err = buildPageQuery(reference.PageQuery{
		Source: reference.Source{Table: "registros", Column: "ref_cliente"},
		Prefix: "FAS2526KIW",
		Limit:  1000,
	})
	require.NoError(t, err)
	assert.Contains(t, sql, `WHERE ref_cliente ILIKE $1 ESCAPE '\'`)
	assert.Equal(t, []any{"%FA_2526K_W%"}, args)
}

func TestBuildPageQuery_Rejects(t *testing.T) {
	_, _, err := buildPageQuery(reference.PageQuery{
		Source: reference.Source{Table: "registros; --", Column: "ref_asli"},
		Limit:  10,
	})
	assert.Error(t, err)

	_, _, err = buildPageQuery(reference.PageQuery{
		Source: reference.Source{Table: "registros", Column: "ref_asli"},
	})
	assert.Error(t, err)
}

func TestBuildReserveInsert(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	rs := []reference.Reservation{
		{ID: uuid.New(), Scheme: "asli", Seq: 4, Reference: "A0004", ReservedBy: "u", ReservedAt: now, ExpiresAt: now.Add(time.Hour)},
		{ID: uuid.New(), Scheme: "asli", Seq: 6, Reference: "A0006", ReservedBy: "u", ReservedAt: now, ExpiresAt: now.Add(time.Hour)},
	}

	sql, args, err := buildReserveInsert(rs)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql,
		"INSERT INTO ref_reservations (id,scheme,group_key,seq,reference,reserved_by,reserved_at,expires_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8),($9,"))
	assert.Contains(t, sql, "ON CONFLICT (reference) DO UPDATE SET id = EXCLUDED.id")
	assert.NotContains(t, sql, "reference = EXCLUDED.reference")
	assert.True(t, strings.HasSuffix(sql, "WHERE ref_reservations.expires_at <= EXCLUDED.reserved_at"))

	require.Len(t, args, 16)
	assert.Equal(t, "A0004", args[4])
	assert.Equal(t, int64(6), args[11])
}
