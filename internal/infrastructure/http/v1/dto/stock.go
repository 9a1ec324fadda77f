package dto

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
)

// --- Adjustment DTOs ---

// AdjustRequest records one stock adjustment.
type AdjustRequest struct {
	ProductID         string `json:"productId" binding:"required"`
	LocationID        string `json:"locationId"`
	StockItemID       string `json:"stockItemId"`
	Type              string `json:"type" binding:"required"`
	Quantity          int64  `json:"quantity" binding:"required"`
	Reason            string `json:"reason" binding:"required"`
	Notes             string `json:"notes"`
	AuthorizationCode string `json:"authorizationCode"`
}

// ToCommand converts the request to a domain command.
func (r *AdjustRequest) ToCommand(tenantKey, actor string) (stock.AdjustCommand, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return stock.AdjustCommand{}, apperror.NewValidation("invalid product id").WithDetail("field", "productId")
	}

	cmd := stock.AdjustCommand{
		TenantKey:         tenantKey,
		ProductID:         productID,
		Type:              stock.AdjustmentType(r.Type),
		Quantity:          types.Quantity(r.Quantity),
		Reason:            stock.AdjustmentReason(r.Reason),
		Notes:             r.Notes,
		Actor:             actor,
		AuthorizationCode: r.AuthorizationCode,
	}

	if r.LocationID != "" {
		locationID, err := id.Parse(r.LocationID)
		if err != nil {
			return stock.AdjustCommand{}, apperror.NewValidation("invalid location id").WithDetail("field", "locationId")
		}
		cmd.LocationID = &locationID
	}

	if r.StockItemID != "" {
		itemID, err := id.Parse(r.StockItemID)
		if err != nil {
			return stock.AdjustCommand{}, apperror.NewValidation("invalid stock item id").WithDetail("field", "stockItemId")
		}
		cmd.StockItemID = &itemID
	}

	return cmd, nil
}

// AdjustResponse reports a committed adjustment.
type AdjustResponse struct {
	AdjustmentID   string    `json:"adjustmentId"`
	Number         string    `json:"number,omitempty"`
	QuantityBefore int64     `json:"quantityBefore"`
	QuantityAfter  int64     `json:"quantityAfter"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromAdjustmentResult converts a domain result.
func FromAdjustmentResult(r *stock.AdjustmentResult) AdjustResponse {
	return AdjustResponse{
		AdjustmentID:   r.AdjustmentID.String(),
		Number:         r.Number,
		QuantityBefore: r.QuantityBefore.Int64(),
		QuantityAfter:  r.QuantityAfter.Int64(),
		CreatedAt:      r.CreatedAt,
	}
}

// --- Receipt DTOs ---

// ReceiveRequest receives a consignment as a new lot.
type ReceiveRequest struct {
	ProductID     string     `json:"productId" binding:"required"`
	LocationID    string     `json:"locationId"`
	Quantity      int64      `json:"quantity" binding:"required"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	ConsignmentID string     `json:"consignmentId" binding:"required"`
	Notes         string     `json:"notes"`
}

// ToCommand converts the request to a domain command.
func (r *ReceiveRequest) ToCommand(tenantKey, actor string) (stock.ReceiveCommand, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return stock.ReceiveCommand{}, apperror.NewValidation("invalid product id").WithDetail("field", "productId")
	}

	consignmentID, err := id.Parse(r.ConsignmentID)
	if err != nil {
		return stock.ReceiveCommand{}, apperror.NewValidation("invalid consignment id").WithDetail("field", "consignmentId")
	}

	cmd := stock.ReceiveCommand{
		TenantKey:     tenantKey,
		ProductID:     productID,
		Quantity:      types.Quantity(r.Quantity),
		ExpiresAt:     r.ExpiresAt,
		ConsignmentID: consignmentID,
		Actor:         actor,
		Notes:         r.Notes,
	}

	if r.LocationID != "" {
		locationID, err := id.Parse(r.LocationID)
		if err != nil {
			return stock.ReceiveCommand{}, apperror.NewValidation("invalid location id").WithDetail("field", "locationId")
		}
		cmd.LocationID = &locationID
	}

	return cmd, nil
}

// --- Allocation DTOs ---

// AllocateRequest reserves stock.
type AllocateRequest struct {
	ProductID   string `json:"productId" binding:"required"`
	LocationID  string `json:"locationId"`
	StockItemID string `json:"stockItemId"`
	Quantity    int64  `json:"quantity" binding:"required"`
	Type        string `json:"type" binding:"required"`
	ReferenceID string `json:"referenceId"`
	Notes       string `json:"notes"`
}

// ToCommand converts the request to a domain command.
func (r *AllocateRequest) ToCommand(tenantKey, actor string) (stock.AllocateCommand, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return stock.AllocateCommand{}, apperror.NewValidation("invalid product id").WithDetail("field", "productId")
	}

	cmd := stock.AllocateCommand{
		TenantKey:   tenantKey,
		ProductID:   productID,
		Quantity:    types.Quantity(r.Quantity),
		Type:        stock.AllocationType(r.Type),
		ReferenceID: r.ReferenceID,
		Actor:       actor,
		Notes:       r.Notes,
	}

	if r.LocationID != "" {
		locationID, err := id.Parse(r.LocationID)
		if err != nil {
			return stock.AllocateCommand{}, apperror.NewValidation("invalid location id").WithDetail("field", "locationId")
		}
		cmd.LocationID = &locationID
	}

	if r.StockItemID != "" {
		itemID, err := id.Parse(r.StockItemID)
		if err != nil {
			return stock.AllocateCommand{}, apperror.NewValidation("invalid stock item id").WithDetail("field", "stockItemId")
		}
		cmd.StockItemID = &itemID
	}

	return cmd, nil
}

// AllocateResponse reports a committed allocation.
type AllocateResponse struct {
	AllocationID string    `json:"allocationId"`
	StockItemID  string    `json:"stockItemId"`
	Quantity     int64     `json:"quantity"`
	AllocatedAt  time.Time `json:"allocatedAt"`
}

// FromAllocationResult converts a domain result.
func FromAllocationResult(r *stock.AllocationResult) AllocateResponse {
	return AllocateResponse{
		AllocationID: r.AllocationID.String(),
		StockItemID:  r.StockItemID.String(),
		Quantity:     r.Quantity.Int64(),
		AllocatedAt:  r.AllocatedAt,
	}
}

// ReleaseResponse reports a committed release.
type ReleaseResponse struct {
	AllocationID string    `json:"allocationId"`
	ReleasedAt   time.Time `json:"releasedAt"`
}

// FromReleaseResult converts a domain result.
func FromReleaseResult(r *stock.ReleaseResult) ReleaseResponse {
	return ReleaseResponse{
		AllocationID: r.AllocationID.String(),
		ReleasedAt:   r.ReleasedAt,
	}
}
