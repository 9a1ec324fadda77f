package stock

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// AdjustmentType is the direction of a quantity change.
type AdjustmentType string

const (
	AdjustmentIncrease AdjustmentType = "INCREASE"
	AdjustmentDecrease AdjustmentType = "DECREASE"
)

// AdjustmentReason is the enumerated business reason for a quantity change.
type AdjustmentReason string

const (
	ReasonReceipt    AdjustmentReason = "RECEIPT"
	ReasonDamaged    AdjustmentReason = "DAMAGED"
	ReasonExpired    AdjustmentReason = "EXPIRED"
	ReasonLost       AdjustmentReason = "LOST"
	ReasonFound      AdjustmentReason = "FOUND"
	ReasonStockCount AdjustmentReason = "STOCK_COUNT"
	ReasonReturn     AdjustmentReason = "RETURN"
	ReasonOther      AdjustmentReason = "OTHER"
)

// AuthorizationThreshold is the adjustment quantity at or above which a
// supervisory authorization code is mandatory.
const AuthorizationThreshold types.Quantity = 100

// StockAdjustment is one immutable ledger entry: a recorded, reasoned change
// to on-hand quantity with before/after snapshots. Never updated or deleted.
type StockAdjustment struct {
	ID id.ID `db:"id" json:"id"`

	// Number is the human-readable ledger entry number (e.g. ADJ-2026-00042),
	// sequential per prefix and year.
	Number string `db:"entry_number" json:"number,omitempty"`

	ProductID         id.ID            `db:"product_id" json:"productId"`
	LocationID        *id.ID           `db:"location_id" json:"locationId,omitempty"`
	StockItemID       *id.ID           `db:"stock_item_id" json:"stockItemId,omitempty"`
	Type              AdjustmentType   `db:"adjustment_type" json:"type"`
	Quantity          types.Quantity   `db:"quantity" json:"quantity"`
	Reason            AdjustmentReason `db:"reason" json:"reason"`
	Notes             string           `db:"notes" json:"notes,omitempty"`
	Actor             string           `db:"actor" json:"actor"`
	AuthorizationCode *string          `db:"authorization_code" json:"authorizationCode,omitempty"`
	QuantityBefore    types.Quantity   `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter     types.Quantity   `db:"quantity_after" json:"quantityAfter"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
}

// AdjustCommand is the input to the adjustment engine.
type AdjustCommand struct {
	TenantKey         string
	ProductID         id.ID
	LocationID        *id.ID
	StockItemID       *id.ID
	Type              AdjustmentType
	Quantity          types.Quantity
	Reason            AdjustmentReason
	Notes             string
	Actor             string
	AuthorizationCode string
}

// Validate checks command shape, including the large-adjustment
// authorization gate. Business-state checks (stock availability) happen
// later inside the transactional unit.
func (c *AdjustCommand) Validate() error {
	if strings.TrimSpace(c.TenantKey) == "" {
		return apperror.NewValidation("tenant is required").WithDetail("field", "tenantKey")
	}
	if id.IsNil(c.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if c.Type != AdjustmentIncrease && c.Type != AdjustmentDecrease {
		return apperror.NewValidation("adjustment type must be INCREASE or DECREASE").
			WithDetail("field", "type")
	}
	if !c.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if c.Reason == "" {
		return apperror.NewValidation("reason is required").WithDetail("field", "reason")
	}
	if strings.TrimSpace(c.Actor) == "" {
		return apperror.NewValidation("actor is required").WithDetail("field", "actor")
	}
	if c.Quantity >= AuthorizationThreshold && strings.TrimSpace(c.AuthorizationCode) == "" {
		return apperror.NewAuthorizationRequired(AuthorizationThreshold.Int64())
	}
	return nil
}

// authorizationCode returns the code as a nullable column value.
func (c *AdjustCommand) authorizationCode() *string {
	code := strings.TrimSpace(c.AuthorizationCode)
	if code == "" {
		return nil
	}
	return &code
}

// AdjustmentResult is returned to the caller after a committed adjustment.
type AdjustmentResult struct {
	AdjustmentID   id.ID          `json:"adjustmentId"`
	Number         string         `json:"number,omitempty"`
	QuantityBefore types.Quantity `json:"quantityBefore"`
	QuantityAfter  types.Quantity `json:"quantityAfter"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// ReceiveCommand creates a new lot from a received consignment.
type ReceiveCommand struct {
	TenantKey     string
	ProductID     id.ID
	LocationID    *id.ID
	Quantity      types.Quantity
	ExpiresAt     *time.Time
	ConsignmentID id.ID
	Actor         string
	Notes         string
}

// Validate checks receive command shape.
func (c *ReceiveCommand) Validate() error {
	if strings.TrimSpace(c.TenantKey) == "" {
		return apperror.NewValidation("tenant is required").WithDetail("field", "tenantKey")
	}
	if id.IsNil(c.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if !c.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if id.IsNil(c.ConsignmentID) {
		return apperror.NewValidation("consignment is required").WithDetail("field", "consignmentId")
	}
	if strings.TrimSpace(c.Actor) == "" {
		return apperror.NewValidation("actor is required").WithDetail("field", "actor")
	}
	return nil
}
