package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxSchemaAdmin implements SchemaAdmin against a shared pgx pool.
// Statements run on pool connections, outside any caller transaction.
type PgxSchemaAdmin struct {
	pool *pgxpool.Pool
}

// NewPgxSchemaAdmin creates a schema admin over the shared database pool.
func NewPgxSchemaAdmin(pool *pgxpool.Pool) *PgxSchemaAdmin {
	return &PgxSchemaAdmin{pool: pool}
}

func (a *PgxSchemaAdmin) SchemaExists(ctx context.Context, namespace string) (bool, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return false, err
	}

	var exists bool
	err := a.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.schemata WHERE schema_name = $1
		)
	`, namespace).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check schema %s: %w", namespace, err)
	}
	return exists, nil
}

func (a *PgxSchemaAdmin) CreateSchema(ctx context.Context, namespace string) error {
	// CREATE SCHEMA takes no bind parameters; the identifier is validated
	// against the allow-list and quoted before interpolation.
	if err := ValidateNamespace(namespace); err != nil {
		return err
	}

	quoted := pgx.Identifier{namespace}.Sanitize()
	if _, err := a.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoted); err != nil {
		return fmt.Errorf("create schema %s: %w", namespace, err)
	}
	return nil
}

// ListNamespaces returns all tenant namespaces present in the database.
// Used by the tenant CLI for listing and bulk migration.
func (a *PgxSchemaAdmin) ListNamespaces(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name = $1 OR schema_name LIKE 'tenant\_%\_schema'
		ORDER BY schema_name
	`, LegacyNamespace)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		// Skip anything that slipped past the LIKE but fails the grammar.
		if ValidateNamespace(ns) == nil {
			namespaces = append(namespaces, ns)
		}
	}
	return namespaces, rows.Err()
}

var _ SchemaAdmin = (*PgxSchemaAdmin)(nil)
