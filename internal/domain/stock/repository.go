package stock

import (
	"context"
	"encoding/json"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// ItemRepository persists physical lots.
type ItemRepository interface {
	// GetByID loads one lot. NotFound when absent.
	GetByID(ctx context.Context, itemID id.ID) (*StockItem, error)

	// ListInScope enumerates candidate lots for a scope in stable retrieval
	// order (creation order, oldest first). For ScopeProductLocation the
	// result includes unassigned, non-expired lots of the product: they are
	// eligible because they have not yet been placed.
	ListInScope(ctx context.Context, scope Scope) ([]*StockItem, error)

	// Create inserts a new lot.
	Create(ctx context.Context, item *StockItem) error

	// Update writes quantity, location and version with an optimistic
	// compare-and-swap on the previous version. A concurrent writer that got
	// there first surfaces as a Conflict error.
	Update(ctx context.Context, item *StockItem) error
}

// AdjustmentRepository persists the append-mostly ledger.
type AdjustmentRepository interface {
	Create(ctx context.Context, adj *StockAdjustment) error
	GetByID(ctx context.Context, adjustmentID id.ID) (*StockAdjustment, error)
	ListByProduct(ctx context.Context, productID id.ID, filter AdjustmentFilter) ([]*StockAdjustment, error)
}

// AdjustmentFilter pages and narrows ledger history queries.
type AdjustmentFilter struct {
	Type   *AdjustmentType
	Limit  int
	Offset int
}

// AllocationRepository persists reservations.
type AllocationRepository interface {
	Create(ctx context.Context, alloc *StockAllocation) error
	GetByID(ctx context.Context, allocationID id.ID) (*StockAllocation, error)

	// Release flips status to RELEASED and stamps released_at, guarded on
	// the current status being ALLOCATED. Reports whether a row changed.
	Release(ctx context.Context, alloc *StockAllocation) (bool, error)

	// SumAllocated returns the total ALLOCATED quantity reserved against a lot.
	SumAllocated(ctx context.Context, stockItemID id.ID) (types.Quantity, error)

	ListByItem(ctx context.Context, stockItemID id.ID, status *AllocationStatus) ([]*StockAllocation, error)
}

// LevelRow is one aggregated group from the read path: totals per product
// and location (nil location = the unassigned group).
type LevelRow struct {
	ProductID  id.ID          `db:"product_id"`
	LocationID *id.ID         `db:"location_id"`
	Total      types.Quantity `db:"total"`
	Allocated  types.Quantity `db:"allocated"`
}

// LevelQuery scopes the aggregated read.
type LevelQuery struct {
	ProductID  *id.ID
	LocationID *id.ID
}

// Threshold is a configured min/max stock level for a product, optionally
// narrowed to one location.
type Threshold struct {
	ProductID   id.ID           `db:"product_id"`
	LocationID  *id.ID          `db:"location_id"`
	MinQuantity *types.Quantity `db:"min_quantity"`
	MaxQuantity *types.Quantity `db:"max_quantity"`
}

// LevelRepository serves the read-only aggregation path.
type LevelRepository interface {
	// Levels groups lots in scope and joins ALLOCATED reservation sums.
	// No stock is an empty result, never an error.
	Levels(ctx context.Context, query LevelQuery) ([]LevelRow, error)

	// Thresholds returns configured thresholds for the products in scope.
	Thresholds(ctx context.Context, query LevelQuery) ([]Threshold, error)
}

// AuditRecorder writes an audit entry within the current transactional unit.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditEntry describes one audited stock operation.
type AuditEntry struct {
	EntityType string
	EntityID   id.ID
	Action     string
	Actor      string
	Changes    any
}

// AuditRecord is one entry of an entity's persisted audit trail.
type AuditRecord struct {
	ID         id.ID           `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   id.ID           `json:"entityId"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// AuditReader serves an entity's audit trail, newest first.
type AuditReader interface {
	EntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditRecord, error)
}

// AuditLog combines recording and reading of the audit trail.
type AuditLog interface {
	AuditRecorder
	AuditReader
}

// NamespaceProvisioner guarantees the tenant's namespace before any
// read or write. Implemented by the core tenant provisioner.
type NamespaceProvisioner interface {
	EnsureReady(ctx context.Context, tenantKey string) (namespace string, err error)
}

// NumberGenerator issues sequential human-readable entry numbers within the
// current transactional unit. Optional: a nil generator leaves entries
// addressable by id only.
type NumberGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}
