package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"logiref/internal/core/tx"
)

// SQLSTATE codes that mean "another transaction got there first".
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsConflict reports whether err is a unique violation, serialization failure or deadlock.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// MapConflict wraps conflict errors with tx.ErrConflict and leaves the rest untouched.
func MapConflict(err error) error {
	if err == nil || errors.Is(err, tx.ErrConflict) || !IsConflict(err) {
		return err
	}
	return fmt.Errorf("%w: %w", tx.ErrConflict, err)
}
