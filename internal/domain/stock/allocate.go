package stock

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// AllocationService creates and releases reservations. Reservable quantity
// is bounded by physical stock: the sum of ALLOCATED reservations against a
// lot never exceeds that lot's quantity at allocation time.
type AllocationService struct {
	items       ItemRepository
	allocations AllocationRepository
	provisioner NamespaceProvisioner
	audit       AuditRecorder
	publisher   Publisher
	txManager   tx.Manager // Optional. If nil, obtained from context.
}

// NewAllocationService creates the allocation engine.
func NewAllocationService(
	items ItemRepository,
	allocations AllocationRepository,
	provisioner NamespaceProvisioner,
	audit AuditRecorder,
	publisher Publisher,
	txManager tx.Manager,
) *AllocationService {
	return &AllocationService{
		items:       items,
		allocations: allocations,
		provisioner: provisioner,
		audit:       audit,
		publisher:   publisher,
		txManager:   txManager,
	}
}

func (s *AllocationService) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Allocate reserves quantity against a lot. When no specific lot is named,
// the first lot in scope with a sufficient unallocated remainder is picked.
func (s *AllocationService) Allocate(ctx context.Context, cmd AllocateCommand) (*AllocationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ctx, err := bindTenant(ctx, s.provisioner, cmd.TenantKey)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var (
		result *AllocationResult
		buf    eventBuffer
	)
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := s.pickItem(ctx, cmd)
		if err != nil {
			return err
		}

		// Touch the lot row before inserting: the compare-and-swap on its
		// version makes two allocators racing for the same remainder
		// serialize on the database, so whoever commits second gets a
		// Conflict instead of overbooking the lot.
		if err := s.items.Update(ctx, item); err != nil {
			return err
		}

		alloc := &StockAllocation{
			ID:          id.New(),
			ProductID:   cmd.ProductID,
			LocationID:  cmd.LocationID,
			StockItemID: item.ID,
			Quantity:    cmd.Quantity,
			Type:        cmd.Type,
			ReferenceID: cmd.ReferenceID,
			Status:      StatusAllocated,
			Actor:       cmd.Actor,
			Notes:       cmd.Notes,
			AllocatedAt: time.Now().UTC(),
		}
		if err := s.allocations.Create(ctx, alloc); err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}

		if s.audit != nil {
			err := s.audit.Record(ctx, AuditEntry{
				EntityType: "StockAllocation",
				EntityID:   alloc.ID,
				Action:     "allocate",
				Actor:      cmd.Actor,
				Changes:    alloc,
			})
			if err != nil {
				return fmt.Errorf("record audit entry: %w", err)
			}
		}

		buf.record(cmd.TenantKey, EventAllocationCreated, alloc)
		result = &AllocationResult{
			AllocationID: alloc.ID,
			StockItemID:  alloc.StockItemID,
			Quantity:     alloc.Quantity,
			AllocatedAt:  alloc.AllocatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, buf.drain())

	logger.Info(ctx, "stock allocated",
		"allocation_id", result.AllocationID,
		"stock_item_id", result.StockItemID,
		"quantity", result.Quantity,
	)
	return result, nil
}

// pickItem resolves the target lot and checks its unallocated remainder.
func (s *AllocationService) pickItem(ctx context.Context, cmd AllocateCommand) (*StockItem, error) {
	if cmd.StockItemID != nil && !id.IsNil(*cmd.StockItemID) {
		item, err := s.items.GetByID(ctx, *cmd.StockItemID)
		if err != nil {
			return nil, err
		}
		remainder, err := s.remainder(ctx, item)
		if err != nil {
			return nil, err
		}
		if remainder < cmd.Quantity {
			return nil, apperror.NewInsufficientStock(cmd.ProductID.String(), cmd.Quantity.Int64(), remainder.Int64())
		}
		return item, nil
	}

	scope := ResolveScope(cmd.ProductID, cmd.LocationID, nil)
	lots, err := s.items.ListInScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	var best types.Quantity
	for _, lot := range lots {
		remainder, err := s.remainder(ctx, lot)
		if err != nil {
			return nil, err
		}
		if remainder >= cmd.Quantity {
			return lot, nil
		}
		if remainder > best {
			best = remainder
		}
	}
	return nil, apperror.NewInsufficientStock(cmd.ProductID.String(), cmd.Quantity.Int64(), best.Int64())
}

func (s *AllocationService) remainder(ctx context.Context, item *StockItem) (types.Quantity, error) {
	allocated, err := s.allocations.SumAllocated(ctx, item.ID)
	if err != nil {
		return 0, fmt.Errorf("sum allocations for %s: %w", item.ID, err)
	}
	remainder := item.Quantity - allocated
	if remainder.IsNegative() {
		remainder = 0
	}
	return remainder, nil
}

// Release transitions an allocation to RELEASED. Releasing an absent or
// already-released allocation is an explicit error, not a silent no-op.
// The underlying lot's on-hand quantity is untouched: allocation reserves
// stock, it does not remove it.
func (s *AllocationService) Release(ctx context.Context, tenantKey string, allocationID id.ID) (*ReleaseResult, error) {
	ctx, err := bindTenant(ctx, s.provisioner, tenantKey)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var (
		result *ReleaseResult
		buf    eventBuffer
	)
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		alloc, err := s.allocations.GetByID(ctx, allocationID)
		if err != nil {
			return err
		}
		if alloc.Status == StatusReleased {
			return apperror.NewNotFound("active allocation", allocationID).
				WithDetail("status", string(StatusReleased))
		}

		now := time.Now().UTC()
		alloc.Status = StatusReleased
		alloc.ReleasedAt = &now

		changed, err := s.allocations.Release(ctx, alloc)
		if err != nil {
			return fmt.Errorf("release allocation: %w", err)
		}
		if !changed {
			// Lost the race with another releaser.
			return apperror.NewNotFound("active allocation", allocationID)
		}

		if s.audit != nil {
			err := s.audit.Record(ctx, AuditEntry{
				EntityType: "StockAllocation",
				EntityID:   alloc.ID,
				Action:     "release",
				Actor:      alloc.Actor,
				Changes:    alloc,
			})
			if err != nil {
				return fmt.Errorf("record audit entry: %w", err)
			}
		}

		buf.record(tenantKey, EventAllocationReleased, alloc)
		result = &ReleaseResult{AllocationID: alloc.ID, ReleasedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, buf.drain())
	return result, nil
}

// GetAllocation loads one reservation.
func (s *AllocationService) GetAllocation(ctx context.Context, tenantKey string, allocationID id.ID) (*StockAllocation, error) {
	ctx, err := bindTenant(ctx, s.provisioner, tenantKey)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var alloc *StockAllocation
	err = runRead(ctx, txm, func(ctx context.Context) error {
		var err error
		alloc, err = s.allocations.GetByID(ctx, allocationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

// ListAllocations lists reservations against a lot, optionally by status.
func (s *AllocationService) ListAllocations(ctx context.Context, tenantKey string, stockItemID id.ID, status *AllocationStatus) ([]*StockAllocation, error) {
	ctx, err := bindTenant(ctx, s.provisioner, tenantKey)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var allocs []*StockAllocation
	err = runRead(ctx, txm, func(ctx context.Context) error {
		var err error
		allocs, err = s.allocations.ListByItem(ctx, stockItemID, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return allocs, nil
}
