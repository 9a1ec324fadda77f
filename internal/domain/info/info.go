// Package info defines the read-side port for product and location display
// attributes. Masters live in an upstream catalog service; the stock ledger
// only needs names and codes to decorate its read models.
package info

import (
	"context"

	"stockledger/internal/core/id"
)

// Product is the display projection of a catalog product.
type Product struct {
	ID   id.ID  `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// Location is the display projection of a warehouse location.
type Location struct {
	ID   id.ID  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Provider resolves display attributes from the upstream catalog.
// Implementations are expected to fail fast when the catalog is down;
// callers treat lookup failures as degradable, not fatal.
type Provider interface {
	Product(ctx context.Context, productID id.ID) (*Product, error)
	Location(ctx context.Context, locationID id.ID) (*Location, error)
}
