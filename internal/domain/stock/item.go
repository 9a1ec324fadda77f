// Package stock provides the tenant-isolated stock ledger: physical lots,
// the adjustment audit trail, and reservations against on-hand stock.
package stock

import (
	"fmt"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Classification buckets a lot by how close it is to expiring.
type Classification string

const (
	ClassificationExpired           Classification = "EXPIRED"
	ClassificationCritical          Classification = "CRITICAL"
	ClassificationNearExpiry        Classification = "NEAR_EXPIRY"
	ClassificationNormal            Classification = "NORMAL"
	ClassificationExtendedShelfLife Classification = "EXTENDED_SHELF_LIFE"
)

const (
	criticalWindow   = 7 * 24 * time.Hour
	nearExpiryWindow = 30 * 24 * time.Hour
	extendedWindow   = 365 * 24 * time.Hour
)

// StockItem is a physical lot: a distinct quantity of one product, optionally
// tied to a location and expiration date. Lots are never physically deleted;
// quantity may reach zero.
type StockItem struct {
	ID            id.ID          `db:"id" json:"id"`
	ProductID     id.ID          `db:"product_id" json:"productId"`
	LocationID    *id.ID         `db:"location_id" json:"locationId,omitempty"`
	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	ExpiresAt     *time.Time     `db:"expires_at" json:"expiresAt,omitempty"`
	ConsignmentID *id.ID         `db:"consignment_id" json:"consignmentId,omitempty"`

	// Version is the optimistic concurrency counter, compared-and-swapped on
	// every quantity write.
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewStockItem creates a lot with an initial quantity.
func NewStockItem(productID id.ID, locationID *id.ID, quantity types.Quantity) *StockItem {
	now := time.Now().UTC()
	return &StockItem{
		ID:         id.New(),
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   quantity,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Classify derives the expiration classification at the given instant.
// Non-perishable lots are always NORMAL.
func (i *StockItem) Classify(now time.Time) Classification {
	if i.ExpiresAt == nil {
		return ClassificationNormal
	}

	until := i.ExpiresAt.Sub(now)
	switch {
	case until <= 0:
		return ClassificationExpired
	case until <= criticalWindow:
		return ClassificationCritical
	case until <= nearExpiryWindow:
		return ClassificationNearExpiry
	case until > extendedWindow:
		return ClassificationExtendedShelfLife
	default:
		return ClassificationNormal
	}
}

// IsExpired reports whether the lot's expiration date has passed.
func (i *StockItem) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

// AdjustQuantity applies a signed delta. The non-negative invariant is
// enforced here as the last line of defense; engines must have validated
// feasibility beforehand.
func (i *StockItem) AdjustQuantity(delta types.Quantity) error {
	next := i.Quantity + delta
	if next.IsNegative() {
		return fmt.Errorf("quantity of lot %s would become negative (%d%+d)", i.ID, i.Quantity, delta)
	}
	i.Quantity = next
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// AssignLocation places an unassigned lot at a location. Assigning a
// location to a zero or negative quantity lot is a programming error.
func (i *StockItem) AssignLocation(locationID id.ID) error {
	if !i.Quantity.IsPositive() {
		return fmt.Errorf("cannot assign location to lot %s with quantity %d", i.ID, i.Quantity)
	}
	loc := locationID
	i.LocationID = &loc
	i.UpdatedAt = time.Now().UTC()
	return nil
}
