package auth

import (
	"context"
	"errors"
)

// ErrRoleNotFound is returned by a RoleResolver when the user has no profile row.
var ErrRoleNotFound = errors.New("role not found")

// RoleResolver looks up the application role of an authenticated user.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (string, error)
}
