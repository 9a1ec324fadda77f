package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/tx"
)

// Context keys for tenant-related values.
type ctxKey int

const (
	poolKey ctxKey = iota
	txManagerKey
	namespaceKey
)

// Errors for context operations.
var (
	ErrNoPoolInContext = errors.New("database pool not found in context")
	ErrNoTxManager     = errors.New("transaction manager not found in context")
)

// --- Pool ---

// WithPool stores database pool in context.
func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolKey, pool)
}

// GetPool retrieves database pool from context.
func GetPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, ok := ctx.Value(poolKey).(*pgxpool.Pool)
	if !ok || pool == nil {
		return nil, ErrNoPoolInContext
	}
	return pool, nil
}

// --- TxManager ---

// WithTxManager stores TxManager in context.
func WithTxManager(ctx context.Context, txm tx.Manager) context.Context {
	return context.WithValue(ctx, txManagerKey, txm)
}

// GetTxManager retrieves TxManager from context.
func GetTxManager(ctx context.Context) (tx.Manager, error) {
	txm, ok := ctx.Value(txManagerKey).(tx.Manager)
	if !ok || txm == nil {
		return nil, ErrNoTxManager
	}
	return txm, nil
}

// MustGetTxManager retrieves TxManager or panics.
// Use in places where missing TxManager is a programming error.
func MustGetTxManager(ctx context.Context) tx.Manager {
	txm, err := GetTxManager(ctx)
	if err != nil {
		panic("TxManager not in context: " + err.Error())
	}
	return txm
}

// --- Namespace ---

// WithNamespace stores the resolved namespace name in context.
// The tx manager binds the session search path to it at transaction begin.
func WithNamespace(ctx context.Context, namespace string) context.Context {
	return context.WithValue(ctx, namespaceKey, namespace)
}

// GetNamespace retrieves the bound namespace from context, or empty string.
func GetNamespace(ctx context.Context) string {
	ns, _ := ctx.Value(namespaceKey).(string)
	return ns
}

// --- Tenant double-check ---

// CheckContext verifies that a tenant is bound to the current request and
// that it matches the tenant named by the command. Both checks fail closed
// with a configuration error; a missing or foreign tenant context indicates
// a caller bug, never something to default around.
func CheckContext(ctx context.Context, tenantKey string) error {
	bound := appctx.GetTenantKey(ctx)
	if bound == "" {
		return apperror.NewConfiguration("no tenant context bound to request")
	}
	if bound != tenantKey {
		return apperror.NewConfiguration("tenant context does not match requested tenant").
			WithDetail("bound", bound).
			WithDetail("requested", tenantKey)
	}
	return nil
}
