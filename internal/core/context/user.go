// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"strings"
)

// RoleCustomer is the lowest-privilege role. Customers may browse their own shipments
// but never allocate references.
const RoleCustomer = "cliente"

// UserContext contains authenticated user information.
type UserContext struct {
	UserID string
	Email  string
	// Role is the application role from the user table (or token claim as a fallback).
	Role string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role (case-insensitive).
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(u.Role), role)
}

// IsStaff reports whether the user holds any role above customer.
func (u *UserContext) IsStaff() bool {
	if u == nil {
		return false
	}
	role := strings.TrimSpace(u.Role)
	return role != "" && !strings.EqualFold(role, RoleCustomer)
}
