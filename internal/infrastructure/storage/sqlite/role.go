package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"logiref/internal/domain/auth"
)

var _ auth.RoleResolver = (*RoleRepo)(nil)

// RoleRepo reads usuarios.rol by auth_user_id.
type RoleRepo struct {
	store *Store
}

// NewRoleRepo creates a new role repository.
func NewRoleRepo(store *Store) *RoleRepo {
	return &RoleRepo{store: store}
}

// ResolveRole returns the role of userID or auth.ErrRoleNotFound.
func (r *RoleRepo) ResolveRole(ctx context.Context, userID string) (string, error) {
	var role sql.NullString
	err := r.store.querier(ctx).QueryRowContext(ctx,
		`SELECT rol FROM usuarios WHERE auth_user_id = ? LIMIT 1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrRoleNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query role: %w", err)
	}
	return role.String, nil
}

// UpsertRole creates or updates the profile of userID.
func (r *RoleRepo) UpsertRole(ctx context.Context, userID, email, role string) error {
	_, err := r.store.querier(ctx).ExecContext(ctx, `
		INSERT INTO usuarios (auth_user_id, email, rol) VALUES (?, ?, ?)
		ON CONFLICT (auth_user_id) DO UPDATE SET email = excluded.email, rol = excluded.rol`,
		userID, email, role)
	if err != nil {
		return fmt.Errorf("upsert role: %w", err)
	}
	return nil
}
