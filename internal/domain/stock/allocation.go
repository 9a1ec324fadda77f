package stock

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// AllocationType categorizes what a reservation is for.
type AllocationType string

const (
	AllocationPickingOrder AllocationType = "PICKING_ORDER"
	AllocationReservation  AllocationType = "RESERVATION"
	AllocationOther        AllocationType = "OTHER"
)

// AllocationStatus is the two-state reservation lifecycle.
type AllocationStatus string

const (
	StatusAllocated AllocationStatus = "ALLOCATED"
	StatusReleased  AllocationStatus = "RELEASED"
)

// StockAllocation reserves quantity against a specific lot without removing
// it from on-hand totals. Created ALLOCATED; transitions once to RELEASED.
type StockAllocation struct {
	ID          id.ID            `db:"id" json:"id"`
	ProductID   id.ID            `db:"product_id" json:"productId"`
	LocationID  *id.ID           `db:"location_id" json:"locationId,omitempty"`
	StockItemID id.ID            `db:"stock_item_id" json:"stockItemId"`
	Quantity    types.Quantity   `db:"quantity" json:"quantity"`
	Type        AllocationType   `db:"allocation_type" json:"type"`
	ReferenceID string           `db:"reference_id" json:"referenceId,omitempty"`
	Status      AllocationStatus `db:"status" json:"status"`
	Actor       string           `db:"actor" json:"actor"`
	Notes       string           `db:"notes" json:"notes,omitempty"`
	AllocatedAt time.Time        `db:"allocated_at" json:"allocatedAt"`
	ReleasedAt  *time.Time       `db:"released_at" json:"releasedAt,omitempty"`
}

// AllocateCommand is the input to the allocation engine.
type AllocateCommand struct {
	TenantKey   string
	ProductID   id.ID
	LocationID  *id.ID
	StockItemID *id.ID
	Quantity    types.Quantity
	Type        AllocationType
	ReferenceID string
	Actor       string
	Notes       string
}

// Validate checks allocate command shape. A reference id is mandatory for
// picking orders so the reservation can be traced back to its pick list.
func (c *AllocateCommand) Validate() error {
	if strings.TrimSpace(c.TenantKey) == "" {
		return apperror.NewValidation("tenant is required").WithDetail("field", "tenantKey")
	}
	if id.IsNil(c.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if !c.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	switch c.Type {
	case AllocationPickingOrder, AllocationReservation, AllocationOther:
	default:
		return apperror.NewValidation("unknown allocation type").WithDetail("field", "type")
	}
	if c.Type == AllocationPickingOrder && strings.TrimSpace(c.ReferenceID) == "" {
		return apperror.NewValidation("reference id is required for picking orders").
			WithDetail("field", "referenceId")
	}
	if strings.TrimSpace(c.Actor) == "" {
		return apperror.NewValidation("actor is required").WithDetail("field", "actor")
	}
	return nil
}

// AllocationResult is returned after a committed allocation.
type AllocationResult struct {
	AllocationID id.ID          `json:"allocationId"`
	StockItemID  id.ID          `json:"stockItemId"`
	Quantity     types.Quantity `json:"quantity"`
	AllocatedAt  time.Time      `json:"allocatedAt"`
}

// ReleaseResult is returned after a committed release.
type ReleaseResult struct {
	AllocationID id.ID     `json:"allocationId"`
	ReleasedAt   time.Time `json:"releasedAt"`
}
