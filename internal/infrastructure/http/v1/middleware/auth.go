package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Auth middleware validates JWT tokens and populates the acting user.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		tokenString := parts[1]

		// Validate token
		actor, err := validator.ValidateToken(tokenString)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token"))
			c.Abort()
			return
		}

		// Enforce tenant match: the key resolved by TenantContext must match
		// the token's tenant claim. A token for another tenant is rejected,
		// never silently rebound.
		resolvedKey := GetTenantKey(c)
		if resolvedKey != "" && actor.TenantKey != "" && resolvedKey != actor.TenantKey {
			_ = c.Error(
				apperror.NewForbidden("tenant mismatch").
					WithDetail("header_tenant_key", resolvedKey).
					WithDetail("token_tenant_key", actor.TenantKey),
			)
			c.Abort()
			return
		}
		if actor.TenantKey == "" {
			actor.TenantKey = resolvedKey
		}

		// Add actor to context
		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		// Store in gin context for easy access
		c.Set("actor_id", actor.ActorID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
