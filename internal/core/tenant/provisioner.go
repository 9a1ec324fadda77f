package tenant

import (
	"context"
	"fmt"
	"sync"

	"stockledger/internal/core/apperror"
	"stockledger/pkg/logger"
)

// SchemaAdmin executes namespace-level administrative statements.
// Implementations run on their own connection, never inside a caller's
// transaction, so a conflicting transaction state cannot leak a connection
// or abort provisioning.
type SchemaAdmin interface {
	// SchemaExists reports whether the namespace already exists.
	SchemaExists(ctx context.Context, namespace string) (bool, error)

	// CreateSchema creates the namespace. Must be idempotent.
	CreateSchema(ctx context.Context, namespace string) error
}

// MigrationRunner applies all outstanding schema migrations to a namespace
// and reports the count applied.
type MigrationRunner interface {
	Migrate(ctx context.Context, namespace string) (applied int, err error)
}

// Provisioner guarantees a tenant's namespace exists and is schema-current
// before any stock operation touches it. EnsureReady is idempotent and safe
// under concurrent first-use by the same tenant.
type Provisioner struct {
	admin    SchemaAdmin
	migrator MigrationRunner
	log      *logger.Logger

	mu    sync.Mutex
	ready map[string]struct{}
	locks map[string]*sync.Mutex
}

// NewProvisioner creates a namespace provisioner.
func NewProvisioner(admin SchemaAdmin, migrator MigrationRunner, log *logger.Logger) *Provisioner {
	return &Provisioner{
		admin:    admin,
		migrator: migrator,
		log:      log.WithComponent("tenant-provisioner"),
		ready:    make(map[string]struct{}),
		locks:    make(map[string]*sync.Mutex),
	}
}

// EnsureReady resolves the tenant's namespace and makes sure it exists and
// carries the current schema. Called on every stock operation; after the
// first success for a namespace it is a cheap in-process no-op.
func (p *Provisioner) EnsureReady(ctx context.Context, tenantKey string) (string, error) {
	namespace, err := NamespaceFor(tenantKey)
	if err != nil {
		return "", apperror.NewValidation("invalid tenant key").WithCause(err)
	}

	// Fast path: already provisioned in this process.
	p.mu.Lock()
	if _, ok := p.ready[namespace]; ok {
		p.mu.Unlock()
		return namespace, nil
	}
	lock := p.locks[namespace]
	if lock == nil {
		lock = &sync.Mutex{}
		p.locks[namespace] = lock
	}
	p.mu.Unlock()

	// Serialize concurrent first-use per namespace.
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	_, ok := p.ready[namespace]
	p.mu.Unlock()
	if ok {
		return namespace, nil
	}

	exists, err := p.admin.SchemaExists(ctx, namespace)
	if err != nil {
		return "", apperror.NewNamespaceProvisioning(namespace, fmt.Errorf("existence check: %w", err))
	}

	if !exists {
		if err := p.admin.CreateSchema(ctx, namespace); err != nil {
			return "", apperror.NewNamespaceProvisioning(namespace, fmt.Errorf("create schema: %w", err))
		}
	}

	// Run migrations on first in-process use even for pre-existing
	// namespaces: an upgraded binary may carry schema changes the tenant
	// has not seen yet. Subsequent calls hit the ready cache.
	applied, err := p.migrator.Migrate(ctx, namespace)
	if err != nil {
		return "", apperror.NewNamespaceProvisioning(namespace, fmt.Errorf("apply migrations: %w", err))
	}

	if !exists || applied > 0 {
		p.log.Infow("tenant namespace provisioned",
			"namespace", namespace,
			"created", !exists,
			"migrations_applied", applied,
		)
	}

	p.mu.Lock()
	p.ready[namespace] = struct{}{}
	p.mu.Unlock()

	return namespace, nil
}

// Migrate force-runs outstanding migrations for a tenant regardless of the
// ready cache. Used by the tenant CLI during upgrades.
func (p *Provisioner) Migrate(ctx context.Context, tenantKey string) (int, error) {
	namespace, err := NamespaceFor(tenantKey)
	if err != nil {
		return 0, err
	}

	exists, err := p.admin.SchemaExists(ctx, namespace)
	if err != nil {
		return 0, apperror.NewNamespaceProvisioning(namespace, fmt.Errorf("existence check: %w", err))
	}
	if !exists {
		if err := p.admin.CreateSchema(ctx, namespace); err != nil {
			return 0, apperror.NewNamespaceProvisioning(namespace, fmt.Errorf("create schema: %w", err))
		}
	}

	applied, err := p.migrator.Migrate(ctx, namespace)
	if err != nil {
		return 0, apperror.NewNamespaceProvisioning(namespace, fmt.Errorf("apply migrations: %w", err))
	}

	p.mu.Lock()
	p.ready[namespace] = struct{}{}
	p.mu.Unlock()

	return applied, nil
}
