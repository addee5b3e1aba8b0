package auth

import (
	"context"
	"strings"

	"logiref/internal/core/apperror"
	appctx "logiref/internal/core/context"
	"logiref/pkg/logger"
)

// Gate decides whether an authenticated user may allocate references.
// Any role other than customer is allowed.
type Gate struct {
	resolver RoleResolver
}

// NewGate creates a gate. With a nil resolver the role claim of the token is trusted.
func NewGate(resolver RoleResolver) *Gate {
	return &Gate{resolver: resolver}
}

// Authorize returns user with its resolved role, or an AppError:
// 401 without a user, 403 when the role cannot be determined or is customer.
func (g *Gate) Authorize(ctx context.Context, user *appctx.UserContext) (*appctx.UserContext, error) {
	if user == nil || user.UserID == "" {
		return nil, apperror.NewUnauthorized("unauthorized")
	}

	role := user.Role
	if g.resolver != nil {
		resolved, err := g.resolver.ResolveRole(ctx, user.UserID)
		if err != nil {
			logger.Warn(ctx, "role lookup failed", "user_id", user.UserID, "error", err)
			return nil, apperror.NewForbidden("could not validate role").WithCause(err)
		}
		role = resolved
	}

	role = strings.TrimSpace(role)
	if role == "" {
		return nil, apperror.NewForbidden("could not validate role")
	}

	resolved := &appctx.UserContext{UserID: user.UserID, Email: user.Email, Role: role}
	if !resolved.IsStaff() {
		return nil, apperror.NewForbidden("access restricted").WithDetail("role", role)
	}
	return resolved, nil
}
