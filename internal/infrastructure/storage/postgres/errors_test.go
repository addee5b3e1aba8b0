package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"logiref/internal/core/tx"
)

func TestMapConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapConflict(tt.err)
			assert.Equal(t, tt.conflict, errors.Is(mapped, tx.ErrConflict))
			assert.ErrorIs(t, mapped, tt.err)
		})
	}

	assert.NoError(t, MapConflict(nil))
	already := fmt.Errorf("x: %w", tx.ErrConflict)
	assert.Same(t, already, MapConflict(already))
}
