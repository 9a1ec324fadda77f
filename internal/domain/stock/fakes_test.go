package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/info"
)

// tenantCtx binds an actor for the given tenant, as the HTTP middleware does.
func tenantCtx(key string) context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{
		ActorID:   "tester",
		TenantKey: key,
	})
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err, "expected error with code %s", code)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

type fakeTxManager struct {
	commits   int
	rollbacks int
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

func (m *fakeTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeProvisioner struct {
	calls int
}

func (p *fakeProvisioner) EnsureReady(ctx context.Context, tenantKey string) (string, error) {
	p.calls++
	return tenant.NamespaceFor(tenantKey)
}

// fakeItemRepo keeps lots in insertion order, matching the repository's
// creation-order enumeration contract. Like the real repository, expired
// unassigned lots are invisible to product+location scope.
type fakeItemRepo struct {
	items   []*StockItem
	creates int
	updates int
}

func (r *fakeItemRepo) add(item *StockItem) *StockItem {
	r.items = append(r.items, item)
	return item
}

func (r *fakeItemRepo) GetByID(ctx context.Context, itemID id.ID) (*StockItem, error) {
	for _, item := range r.items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return nil, apperror.NewNotFound("stock item", itemID)
}

func (r *fakeItemRepo) ListInScope(ctx context.Context, scope Scope) ([]*StockItem, error) {
	now := time.Now().UTC()
	var out []*StockItem
	for _, item := range r.items {
		if item.ProductID != scope.ProductID {
			continue
		}
		if scope.Kind == ScopeProductLocation {
			atLocation := item.LocationID != nil && *item.LocationID == *scope.LocationID
			unassigned := item.LocationID == nil && !item.IsExpired(now)
			if !atLocation && !unassigned {
				continue
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *fakeItemRepo) Create(ctx context.Context, item *StockItem) error {
	r.creates++
	r.items = append(r.items, item)
	return nil
}

func (r *fakeItemRepo) Update(ctx context.Context, item *StockItem) error {
	r.updates++
	return nil
}

type fakeAdjustmentRepo struct {
	entries []*StockAdjustment
}

func (r *fakeAdjustmentRepo) Create(ctx context.Context, adj *StockAdjustment) error {
	stored := *adj
	r.entries = append(r.entries, &stored)
	return nil
}

func (r *fakeAdjustmentRepo) GetByID(ctx context.Context, adjustmentID id.ID) (*StockAdjustment, error) {
	for _, adj := range r.entries {
		if adj.ID == adjustmentID {
			return adj, nil
		}
	}
	return nil, apperror.NewNotFound("stock adjustment", adjustmentID)
}

func (r *fakeAdjustmentRepo) ListByProduct(ctx context.Context, productID id.ID, filter AdjustmentFilter) ([]*StockAdjustment, error) {
	var out []*StockAdjustment
	for _, adj := range r.entries {
		if adj.ProductID != productID {
			continue
		}
		if filter.Type != nil && adj.Type != *filter.Type {
			continue
		}
		out = append(out, adj)
	}
	return out, nil
}

// fakeAllocationRepo stores copies so the status guard in Release sees the
// persisted state, not the caller's mutated struct.
type fakeAllocationRepo struct {
	allocs []*StockAllocation
}

func (r *fakeAllocationRepo) Create(ctx context.Context, alloc *StockAllocation) error {
	stored := *alloc
	r.allocs = append(r.allocs, &stored)
	return nil
}

func (r *fakeAllocationRepo) GetByID(ctx context.Context, allocationID id.ID) (*StockAllocation, error) {
	for _, alloc := range r.allocs {
		if alloc.ID == allocationID {
			copied := *alloc
			return &copied, nil
		}
	}
	return nil, apperror.NewNotFound("allocation", allocationID)
}

func (r *fakeAllocationRepo) Release(ctx context.Context, alloc *StockAllocation) (bool, error) {
	for _, stored := range r.allocs {
		if stored.ID != alloc.ID {
			continue
		}
		if stored.Status != StatusAllocated {
			return false, nil
		}
		stored.Status = StatusReleased
		stored.ReleasedAt = alloc.ReleasedAt
		return true, nil
	}
	return false, nil
}

func (r *fakeAllocationRepo) SumAllocated(ctx context.Context, stockItemID id.ID) (types.Quantity, error) {
	var sum types.Quantity
	for _, alloc := range r.allocs {
		if alloc.StockItemID == stockItemID && alloc.Status == StatusAllocated {
			sum += alloc.Quantity
		}
	}
	return sum, nil
}

func (r *fakeAllocationRepo) ListByItem(ctx context.Context, stockItemID id.ID, status *AllocationStatus) ([]*StockAllocation, error) {
	var out []*StockAllocation
	for _, alloc := range r.allocs {
		if alloc.StockItemID != stockItemID {
			continue
		}
		if status != nil && alloc.Status != *status {
			continue
		}
		copied := *alloc
		out = append(out, &copied)
	}
	return out, nil
}

type fakeNumberGen struct {
	next int
}

func (g *fakeNumberGen) Next(ctx context.Context, prefix string) (string, error) {
	g.next++
	return fmt.Sprintf("%s-2026-%05d", prefix, g.next), nil
}

type fakeAuditRecorder struct {
	entries []AuditEntry
}

func (r *fakeAuditRecorder) Record(ctx context.Context, entry AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

// EntityHistory replays recorded entries newest first, mirroring the
// storage layer's ordering.
func (r *fakeAuditRecorder) EntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditRecord, error) {
	var out []AuditRecord
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		entry := r.entries[i]
		if entry.EntityType != entityType || entry.EntityID != entityID {
			continue
		}
		changes, err := json.Marshal(entry.Changes)
		if err != nil {
			return nil, err
		}
		out = append(out, AuditRecord{
			ID:         id.New(),
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Action:     entry.Action,
			Actor:      entry.Actor,
			Changes:    changes,
			CreatedAt:  time.Now().UTC(),
		})
	}
	return out, nil
}

type fakePublisher struct {
	events []Event
}

func (p *fakePublisher) PublishBatch(ctx context.Context, events []Event) error {
	p.events = append(p.events, events...)
	return nil
}

type fakeLevelRepo struct {
	rows       []LevelRow
	thresholds []Threshold
}

func (r *fakeLevelRepo) Levels(ctx context.Context, query LevelQuery) ([]LevelRow, error) {
	return r.rows, nil
}

func (r *fakeLevelRepo) Thresholds(ctx context.Context, query LevelQuery) ([]Threshold, error) {
	return r.thresholds, nil
}

type fakeCatalog struct {
	products  map[id.ID]*info.Product
	locations map[id.ID]*info.Location
	err       error
}

func (c *fakeCatalog) Product(ctx context.Context, productID id.ID) (*info.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	if p, ok := c.products[productID]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("product", productID)
}

func (c *fakeCatalog) Location(ctx context.Context, locationID id.ID) (*info.Location, error) {
	if c.err != nil {
		return nil, c.err
	}
	if l, ok := c.locations[locationID]; ok {
		return l, nil
	}
	return nil, apperror.NewNotFound("location", locationID)
}
