package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableIdentifier(t *testing.T) {
	assert.Equal(t, `"registros"`, TableIdentifier("registros").Sanitize())
	assert.Equal(t, `"public"."registros"`, TableIdentifier("public.registros").Sanitize())
}

func TestCopyFromSlice_RequiresTransaction(t *testing.T) {
	b := NewBatchInserter(&TxManager{})
	_, err := b.CopyFromSlice(context.Background(), "registros", []string{"ref_asli"}, [][]any{{"A0001"}})
	assert.ErrorContains(t, err, "requires transaction")
}
