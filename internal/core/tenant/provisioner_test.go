package tenant

import (
	"context"
	"sync"
	"testing"

	"stockledger/internal/core/apperror"
	"stockledger/pkg/logger"
)

type fakeSchemaAdmin struct {
	mu          sync.Mutex
	existing    map[string]bool
	existsCalls int
	createCalls int
}

func (a *fakeSchemaAdmin) SchemaExists(ctx context.Context, namespace string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.existsCalls++
	return a.existing[namespace], nil
}

func (a *fakeSchemaAdmin) CreateSchema(ctx context.Context, namespace string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.createCalls++
	if a.existing == nil {
		a.existing = make(map[string]bool)
	}
	a.existing[namespace] = true
	return nil
}

type fakeMigrationRunner struct {
	mu      sync.Mutex
	calls   int
	applied int
}

func (m *fakeMigrationRunner) Migrate(ctx context.Context, namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.applied, nil
}

func TestEnsureReady_CreatesAndMigrates(t *testing.T) {
	admin := &fakeSchemaAdmin{}
	migrator := &fakeMigrationRunner{applied: 5}
	p := NewProvisioner(admin, migrator, logger.Default())
	ctx := context.Background()

	namespace, err := p.EnsureReady(ctx, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if namespace != "tenant_acme_schema" {
		t.Errorf("namespace = %q, want tenant_acme_schema", namespace)
	}
	if admin.createCalls != 1 || migrator.calls != 1 {
		t.Errorf("creates=%d migrations=%d, want 1/1", admin.createCalls, migrator.calls)
	}
}

func TestEnsureReady_SecondCallIsCached(t *testing.T) {
	admin := &fakeSchemaAdmin{}
	migrator := &fakeMigrationRunner{}
	p := NewProvisioner(admin, migrator, logger.Default())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.EnsureReady(ctx, "acme"); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	if admin.existsCalls != 1 || admin.createCalls != 1 || migrator.calls != 1 {
		t.Errorf("repeat calls must hit the ready cache: exists=%d creates=%d migrations=%d",
			admin.existsCalls, admin.createCalls, migrator.calls)
	}
}

func TestEnsureReady_ExistingSchemaStillMigrates(t *testing.T) {
	admin := &fakeSchemaAdmin{existing: map[string]bool{"tenant_acme_schema": true}}
	migrator := &fakeMigrationRunner{}
	p := NewProvisioner(admin, migrator, logger.Default())

	if _, err := p.EnsureReady(context.Background(), "acme"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admin.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0 for a pre-existing namespace", admin.createCalls)
	}
	// An upgraded binary may carry migrations the tenant has not seen.
	if migrator.calls != 1 {
		t.Errorf("migration calls = %d, want 1", migrator.calls)
	}
}

func TestEnsureReady_InvalidTenantKey(t *testing.T) {
	admin := &fakeSchemaAdmin{}
	p := NewProvisioner(admin, &fakeMigrationRunner{}, logger.Default())

	_, err := p.EnsureReady(context.Background(), "acme; drop schema public")
	if err == nil {
		t.Fatal("expected error for invalid tenant key")
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	if admin.existsCalls != 0 {
		t.Errorf("invalid key must never reach the schema admin, existsCalls=%d", admin.existsCalls)
	}
}

func TestEnsureReady_ConcurrentFirstUse(t *testing.T) {
	admin := &fakeSchemaAdmin{}
	migrator := &fakeMigrationRunner{}
	p := NewProvisioner(admin, migrator, logger.Default())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.EnsureReady(ctx, "acme"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent EnsureReady failed: %v", err)
	}

	if admin.createCalls != 1 {
		t.Errorf("createCalls = %d, want exactly 1 under concurrency", admin.createCalls)
	}
	if migrator.calls != 1 {
		t.Errorf("migration calls = %d, want exactly 1 under concurrency", migrator.calls)
	}
}

func TestEnsureReady_DistinctTenantsAreIndependent(t *testing.T) {
	admin := &fakeSchemaAdmin{}
	migrator := &fakeMigrationRunner{}
	p := NewProvisioner(admin, migrator, logger.Default())
	ctx := context.Background()

	nsA, err := p.EnsureReady(ctx, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nsB, err := p.EnsureReady(ctx, "globex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nsA == nsB {
		t.Errorf("namespaces collide: %q", nsA)
	}
	if admin.createCalls != 2 {
		t.Errorf("createCalls = %d, want one per tenant", admin.createCalls)
	}
}
