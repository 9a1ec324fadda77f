package middleware

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/tenant"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	// TenantHeader is the HTTP header for tenant identification.
	TenantHeader = "X-Tenant-Key"
)

// TenantContext middleware resolves the tenant from the request header and
// binds the shared pool and transaction manager into context.
// This middleware MUST run before any database operations.
//
// Flow:
// 1. Extract tenant key from X-Tenant-Key header
// 2. Reject keys that cannot derive an allow-listed namespace
// 3. Inject pool, TxManager and tenant key into context
//
// The namespace itself is NOT bound here: engines bind it after the
// provisioner has confirmed the schema exists and is migrated.
func TenantContext(pool *postgres.Pool, txManager *postgres.TxManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		// 1. Extract tenant key from header
		tenantKey := c.GetHeader(TenantHeader)
		if tenantKey == "" {
			_ = c.Error(
				apperror.NewValidation("tenant is required").
					WithDetail("header", TenantHeader),
			)
			c.Abort()
			return
		}

		// 2. Grammar check before the key goes anywhere near SQL
		if _, err := tenant.NamespaceFor(tenantKey); err != nil {
			_ = c.Error(
				apperror.NewValidation("invalid tenant key").
					WithDetail("header", TenantHeader).
					WithDetail("value", tenantKey),
			)
			c.Abort()
			return
		}

		// 3. Inject into context
		ctx = tenant.WithPool(ctx, pool.Pool)
		ctx = tenant.WithTxManager(ctx, txManager)
		ctx = appctx.WithActor(ctx, &appctx.Actor{TenantKey: tenantKey})

		c.Request = c.Request.WithContext(ctx)

		// Also set in Gin context for handlers that use c.Get()
		c.Set("tenant_key", tenantKey)
		c.Set("tx_manager", txManager)

		c.Next()
	}
}

// GetTenantKey retrieves the resolved tenant key from Gin context.
func GetTenantKey(c *gin.Context) string {
	return c.GetString("tenant_key")
}

// GetTxManagerFromContext retrieves TxManager from Gin context.
// Returns nil if not found. Use this in handlers.
func GetTxManagerFromContext(c *gin.Context) *postgres.TxManager {
	if v, exists := c.Get("tx_manager"); exists {
		if txm, ok := v.(*postgres.TxManager); ok {
			return txm
		}
	}
	return nil
}
