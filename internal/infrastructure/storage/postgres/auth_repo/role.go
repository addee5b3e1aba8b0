// Package auth_repo provides the PostgreSQL role lookup used by the authorization gate.
package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"logiref/internal/domain/auth"
	"logiref/internal/infrastructure/storage/postgres"
)

var _ auth.RoleResolver = (*RoleRepo)(nil)

// RoleRepo reads usuarios.rol by the identity provider's user id.
type RoleRepo struct {
	txm *postgres.TxManager
}

// NewRoleRepo creates a new role repository.
func NewRoleRepo(txm *postgres.TxManager) *RoleRepo {
	return &RoleRepo{txm: txm}
}

// ResolveRole returns the role of userID or auth.ErrRoleNotFound.
func (r *RoleRepo) ResolveRole(ctx context.Context, userID string) (string, error) {
	query := `SELECT rol FROM usuarios WHERE auth_user_id = $1 LIMIT 1`

	var role *string
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, query, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", auth.ErrRoleNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query role: %w", err)
	}
	if role == nil {
		return "", nil
	}
	return *role, nil
}
