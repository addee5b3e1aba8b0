package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logiref/internal/core/tx"
)

// openTx stands in for a transaction already running in ctx; it is never queried.
type openTx struct {
	pgx.Tx
}

func withOpenTx(level pgx.TxIsoLevel) context.Context {
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(openTx{}))
	return context.WithValue(ctx, txIsoKey{}, level)
}

func TestRunSerializable_RejectsWeakerOuterTx(t *testing.T) {
	m := &TxManager{}
	called := false

	err := m.RunSerializable(withOpenTx(pgx.ReadCommitted), func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, tx.ErrIsolationDowngrade)
	assert.False(t, called)
}

func TestRunSerializable_ReusesSerializableOuterTx(t *testing.T) {
	m := &TxManager{}
	called := false

	err := m.RunSerializable(withOpenTx(pgx.Serializable), func(ctx context.Context) error {
		called = true
		assert.NotNil(t, m.GetTx(ctx))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestRunInTransaction_ReusesStricterOuterTx(t *testing.T) {
	m := &TxManager{}
	called := false

	err := m.RunInTransaction(withOpenTx(pgx.Serializable), func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestIsolationRank(t *testing.T) {
	assert.Less(t, isolationRank(pgx.ReadCommitted), isolationRank(pgx.RepeatableRead))
	assert.Less(t, isolationRank(pgx.RepeatableRead), isolationRank(pgx.Serializable))
	assert.Equal(t, isolationRank(pgx.ReadCommitted), isolationRank(""))
}
