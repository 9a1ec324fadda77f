package stock

import (
	"stockledger/internal/core/id"
)

// ScopeKind tags the addressing mode of an adjustment or allocation.
type ScopeKind string

const (
	// ScopeItem targets one named lot.
	ScopeItem ScopeKind = "ITEM"
	// ScopeProductLocation targets lots of a product at one location, plus
	// unassigned non-expired lots of that product (not yet placed anywhere).
	ScopeProductLocation ScopeKind = "PRODUCT_LOCATION"
	// ScopeProductWide targets every lot of a product.
	ScopeProductWide ScopeKind = "PRODUCT_WIDE"
)

// Scope is the tagged-variant resolution of the three addressing modes.
// Resolved once into a concrete candidate lot list so the distribution
// algorithm has a single implementation regardless of scope.
type Scope struct {
	Kind        ScopeKind
	ProductID   id.ID
	LocationID  *id.ID
	StockItemID *id.ID
}

// ResolveScope picks the narrowest addressing mode the command names.
func ResolveScope(productID id.ID, locationID, stockItemID *id.ID) Scope {
	switch {
	case stockItemID != nil && !id.IsNil(*stockItemID):
		return Scope{Kind: ScopeItem, ProductID: productID, LocationID: locationID, StockItemID: stockItemID}
	case locationID != nil && !id.IsNil(*locationID):
		return Scope{Kind: ScopeProductLocation, ProductID: productID, LocationID: locationID}
	default:
		return Scope{Kind: ScopeProductWide, ProductID: productID}
	}
}
