// Package migrations applies the per-namespace schema using embedded goose
// migrations. Each tenant namespace gets its own migration run and its own
// goose version table, so tenants upgrade independently.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"stockledger/internal/core/tenant"
	"stockledger/pkg/logger"
)

//go:embed sql/*.sql
var embedded embed.FS

// Runner applies embedded migrations inside one namespace.
// Implements the tenant provisioner's MigrationRunner port.
type Runner struct {
	pool *pgxpool.Pool
}

// NewRunner creates a migration runner over the shared pool's config.
func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool}
}

// Migrate brings one namespace to the latest schema version and returns
// the number of migrations applied (zero when already current).
//
// goose works against database/sql, so the run opens a short-lived
// connection with search_path pinned to the namespace. That pins both the
// tenant tables and goose's own version bookkeeping inside the namespace.
func (r *Runner) Migrate(ctx context.Context, namespace string) (int, error) {
	if err := tenant.ValidateNamespace(namespace); err != nil {
		return 0, err
	}

	connConfig := r.pool.Config().ConnConfig.Copy()
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = map[string]string{}
	}
	connConfig.RuntimeParams["search_path"] = namespace

	db := stdlib.OpenDB(*connConfig)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "close migration connection failed", "namespace", namespace, "error", err)
		}
	}()

	fsys, err := fs.Sub(embedded, "sql")
	if err != nil {
		return 0, fmt.Errorf("open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations to %s: %w", namespace, err)
	}

	return len(results), nil
}
