package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"logiref/internal/core/apperror"
	appctx "logiref/internal/core/context"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Authorizer resolves the effective role of an authenticated user and rejects
// users that may not allocate references.
type Authorizer interface {
	Authorize(ctx context.Context, user *appctx.UserContext) (*appctx.UserContext, error)
}

// Auth middleware validates JWT tokens and populates user context.
// Every failure is reported as 401 "unauthorized" without telling the client why.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		user, err := validator.ValidateToken(tokenString)
		if err != nil || user == nil {
			abortUnauthorized(c)
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), user)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", user.UserID)

		c.Next()
	}
}

// RequireStaff runs after Auth and lets through only users whose role is resolved
// and is not customer. The resolved role replaces the token claim in the context.
func RequireStaff(authz Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, err := authz.Authorize(ctx, appctx.GetUser(ctx))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithUser(ctx, user))
		c.Set("role", user.Role)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context) {
	_ = c.Error(apperror.NewUnauthorized("unauthorized"))
	c.Abort()
}
