package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

type allocateFixture struct {
	svc         *AllocationService
	items       *fakeItemRepo
	allocations *fakeAllocationRepo
	audit       *fakeAuditRecorder
	publisher   *fakePublisher
	txm         *fakeTxManager
}

func newAllocateFixture() *allocateFixture {
	f := &allocateFixture{
		items:       &fakeItemRepo{},
		allocations: &fakeAllocationRepo{},
		audit:       &fakeAuditRecorder{},
		publisher:   &fakePublisher{},
		txm:         &fakeTxManager{},
	}
	f.svc = NewAllocationService(f.items, f.allocations, &fakeProvisioner{}, f.audit, f.publisher, f.txm)
	return f
}

func TestAllocate_ExplicitLot(t *testing.T) {
	f := newAllocateFixture()
	productID := id.New()
	lot := f.items.add(NewStockItem(productID, nil, 10))
	lotID := lot.ID

	result, err := f.svc.Allocate(tenantCtx("acme"), AllocateCommand{
		TenantKey:   "acme",
		ProductID:   productID,
		StockItemID: &lotID,
		Quantity:    4,
		Type:        AllocationReservation,
		Actor:       "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, lotID, result.StockItemID)
	require.Len(t, f.allocations.allocs, 1)
	assert.Equal(t, StatusAllocated, f.allocations.allocs[0].Status)
	// Allocation reserves, it does not remove stock.
	assert.Equal(t, types.Quantity(10), lot.Quantity)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, EventAllocationCreated, f.publisher.events[0].Type)
}

func TestAllocate_BoundByUnallocatedRemainder(t *testing.T) {
	f := newAllocateFixture()
	productID := id.New()
	lot := f.items.add(NewStockItem(productID, nil, 10))
	lotID := lot.ID

	cmd := AllocateCommand{
		TenantKey:   "acme",
		ProductID:   productID,
		StockItemID: &lotID,
		Quantity:    6,
		Type:        AllocationReservation,
		Actor:       "tester",
	}
	_, err := f.svc.Allocate(tenantCtx("acme"), cmd)
	require.NoError(t, err)

	// 6 of 10 reserved: 5 more must not fit, 4 exactly must.
	cmd.Quantity = 5
	_, err = f.svc.Allocate(tenantCtx("acme"), cmd)
	assertCode(t, err, apperror.CodeInsufficientStock)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(4), appErr.Details["available"])

	cmd.Quantity = 4
	_, err = f.svc.Allocate(tenantCtx("acme"), cmd)
	require.NoError(t, err)
}

// staleReadItemRepo hands every reader the lot as it stood before either
// writer committed, and compare-and-swaps writes against the committed
// version, like the real repository under read-committed isolation.
type staleReadItemRepo struct {
	committed       *StockItem
	snapshotVersion int
}

func (r *staleReadItemRepo) GetByID(ctx context.Context, itemID id.ID) (*StockItem, error) {
	if itemID != r.committed.ID {
		return nil, apperror.NewNotFound("stock item", itemID)
	}
	snapshot := *r.committed
	snapshot.Version = r.snapshotVersion
	return &snapshot, nil
}

func (r *staleReadItemRepo) ListInScope(ctx context.Context, scope Scope) ([]*StockItem, error) {
	snapshot := *r.committed
	snapshot.Version = r.snapshotVersion
	return []*StockItem{&snapshot}, nil
}

func (r *staleReadItemRepo) Create(ctx context.Context, item *StockItem) error {
	return nil
}

func (r *staleReadItemRepo) Update(ctx context.Context, item *StockItem) error {
	if item.Version != r.committed.Version {
		return apperror.NewConcurrentModification("stock item", item.ID.String())
	}
	r.committed.Version++
	item.Version = r.committed.Version
	return nil
}

// staleSumAllocationRepo reports the reservation sum as of the same
// pre-commit snapshot: zero, even after the first allocator inserted.
type staleSumAllocationRepo struct {
	fakeAllocationRepo
}

func (r *staleSumAllocationRepo) SumAllocated(ctx context.Context, stockItemID id.ID) (types.Quantity, error) {
	return 0, nil
}

func TestAllocate_ConcurrentAllocatorsSerializeOnLot(t *testing.T) {
	productID := id.New()
	lot := NewStockItem(productID, nil, 5)
	items := &staleReadItemRepo{committed: lot, snapshotVersion: lot.Version}
	allocations := &staleSumAllocationRepo{}
	svc := NewAllocationService(items, allocations, &fakeProvisioner{}, nil, nil, &fakeTxManager{})

	lotID := lot.ID
	cmd := AllocateCommand{
		TenantKey:   "acme",
		ProductID:   productID,
		StockItemID: &lotID,
		Quantity:    5,
		Type:        AllocationReservation,
		Actor:       "tester",
	}

	// Both allocators read the same remainder before either committed. The
	// first wins the version swap on the lot row.
	_, err := svc.Allocate(tenantCtx("acme"), cmd)
	require.NoError(t, err)

	_, err = svc.Allocate(tenantCtx("acme"), cmd)
	assertCode(t, err, apperror.CodeConcurrentModification)

	require.Len(t, allocations.allocs, 1, "losing allocator must not insert")
	var reserved types.Quantity
	for _, alloc := range allocations.allocs {
		if alloc.Status == StatusAllocated {
			reserved += alloc.Quantity
		}
	}
	assert.LessOrEqual(t, reserved.Int64(), lot.Quantity.Int64(), "reservations never exceed the lot")
}

func TestAllocate_PicksFirstLotWithSufficientRemainder(t *testing.T) {
	f := newAllocateFixture()
	productID := id.New()
	f.items.add(NewStockItem(productID, nil, 5))
	large := f.items.add(NewStockItem(productID, nil, 20))

	result, err := f.svc.Allocate(tenantCtx("acme"), AllocateCommand{
		TenantKey: "acme",
		ProductID: productID,
		Quantity:  8,
		Type:      AllocationReservation,
		Actor:     "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, large.ID, result.StockItemID, "the lot that can hold the reservation")
}

func TestAllocate_ReportsBestAvailableOnShortage(t *testing.T) {
	f := newAllocateFixture()
	productID := id.New()
	f.items.add(NewStockItem(productID, nil, 3))
	f.items.add(NewStockItem(productID, nil, 7))

	_, err := f.svc.Allocate(tenantCtx("acme"), AllocateCommand{
		TenantKey: "acme",
		ProductID: productID,
		Quantity:  12,
		Type:      AllocationReservation,
		Actor:     "tester",
	})
	assertCode(t, err, apperror.CodeInsufficientStock)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(7), appErr.Details["available"], "best single-lot remainder")
}

func TestAllocate_PickingOrderNeedsReference(t *testing.T) {
	f := newAllocateFixture()

	_, err := f.svc.Allocate(tenantCtx("acme"), AllocateCommand{
		TenantKey: "acme",
		ProductID: id.New(),
		Quantity:  1,
		Type:      AllocationPickingOrder,
		Actor:     "tester",
	})
	assertCode(t, err, apperror.CodeValidation)
}

func TestRelease_RoundTrip(t *testing.T) {
	f := newAllocateFixture()
	productID := id.New()
	lot := f.items.add(NewStockItem(productID, nil, 10))
	lotID := lot.ID

	allocated, err := f.svc.Allocate(tenantCtx("acme"), AllocateCommand{
		TenantKey:   "acme",
		ProductID:   productID,
		StockItemID: &lotID,
		Quantity:    10,
		Type:        AllocationReservation,
		Actor:       "tester",
	})
	require.NoError(t, err)

	released, err := f.svc.Release(tenantCtx("acme"), "acme", allocated.AllocationID)
	require.NoError(t, err)
	assert.False(t, released.ReleasedAt.IsZero(), "released_at stamped")
	assert.Equal(t, StatusReleased, f.allocations.allocs[0].Status)

	// The full quantity is reservable again.
	_, err = f.svc.Allocate(tenantCtx("acme"), AllocateCommand{
		TenantKey:   "acme",
		ProductID:   productID,
		StockItemID: &lotID,
		Quantity:    10,
		Type:        AllocationReservation,
		Actor:       "tester",
	})
	require.NoError(t, err)
}

func TestRelease_TwiceIsAnError(t *testing.T) {
	f := newAllocateFixture()
	productID := id.New()
	lot := f.items.add(NewStockItem(productID, nil, 10))
	lotID := lot.ID

	allocated, err := f.svc.Allocate(tenantCtx("acme"), AllocateCommand{
		TenantKey:   "acme",
		ProductID:   productID,
		StockItemID: &lotID,
		Quantity:    2,
		Type:        AllocationOther,
		Actor:       "tester",
	})
	require.NoError(t, err)

	_, err = f.svc.Release(tenantCtx("acme"), "acme", allocated.AllocationID)
	require.NoError(t, err)

	_, err = f.svc.Release(tenantCtx("acme"), "acme", allocated.AllocationID)
	assertCode(t, err, apperror.CodeNotFound)
}

func TestRelease_UnknownAllocation(t *testing.T) {
	f := newAllocateFixture()

	_, err := f.svc.Release(tenantCtx("acme"), "acme", id.New())
	assertCode(t, err, apperror.CodeNotFound)
}
