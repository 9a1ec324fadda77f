package stock

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/info"
	"stockledger/pkg/logger"
)

// StockLevel is one aggregated row of the level report: on-hand, allocated
// and available quantities per product/location group, with threshold flags.
type StockLevel struct {
	ProductID    id.ID           `json:"productId"`
	ProductSKU   string          `json:"productSku,omitempty"`
	ProductName  string          `json:"productName,omitempty"`
	LocationID   *id.ID          `json:"locationId,omitempty"`
	LocationCode string          `json:"locationCode,omitempty"`
	LocationName string          `json:"locationName,omitempty"`
	OnHand       types.Quantity  `json:"onHand"`
	Allocated    types.Quantity  `json:"allocated"`
	Available    types.Quantity  `json:"available"`
	MinQuantity  *types.Quantity `json:"minQuantity,omitempty"`
	MaxQuantity  *types.Quantity `json:"maxQuantity,omitempty"`
	BelowMin     bool            `json:"belowMin"`
	AboveMax     bool            `json:"aboveMax"`
}

// LevelService is the read-only aggregation engine. It never mutates stock
// and runs on the read replica path when one is configured.
type LevelService struct {
	levels      LevelRepository
	provisioner NamespaceProvisioner
	catalog     info.Provider // Optional. Nil disables display enrichment.
	txManager   tx.Manager    // Optional. If nil, obtained from context.
}

// NewLevelService creates the stock level aggregator.
func NewLevelService(levels LevelRepository, provisioner NamespaceProvisioner, catalog info.Provider, txManager tx.Manager) *LevelService {
	return &LevelService{
		levels:      levels,
		provisioner: provisioner,
		catalog:     catalog,
		txManager:   txManager,
	}
}

func (s *LevelService) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Levels aggregates current stock per product/location group. A tenant with
// no stock gets an empty slice, never an error.
func (s *LevelService) Levels(ctx context.Context, tenantKey string, query LevelQuery) ([]StockLevel, error) {
	ctx, err := bindTenant(ctx, s.provisioner, tenantKey)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var (
		rows       []LevelRow
		thresholds []Threshold
	)
	err = runRead(ctx, txm, func(ctx context.Context) error {
		var err error
		rows, err = s.levels.Levels(ctx, query)
		if err != nil {
			return err
		}
		thresholds, err = s.levels.Thresholds(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]StockLevel, 0, len(rows))
	for _, row := range rows {
		level := StockLevel{
			ProductID:  row.ProductID,
			LocationID: row.LocationID,
			OnHand:     row.Total,
			Allocated:  row.Allocated,
			Available:  available(row.Total, row.Allocated),
		}
		applyThreshold(&level, thresholds)
		s.enrich(ctx, &level)
		out = append(out, level)
	}
	return out, nil
}

// available clamps at zero: over-allocation from historic data must not
// surface as a negative availability.
func available(total, allocated types.Quantity) types.Quantity {
	avail := total - allocated
	if avail.IsNegative() {
		return 0
	}
	return avail
}

// applyThreshold joins the most specific matching threshold: an exact
// product+location row wins over a product-wide one.
func applyThreshold(level *StockLevel, thresholds []Threshold) {
	var match *Threshold
	for i := range thresholds {
		t := &thresholds[i]
		if t.ProductID != level.ProductID {
			continue
		}
		switch {
		case t.LocationID != nil && level.LocationID != nil && *t.LocationID == *level.LocationID:
			match = t
		case t.LocationID == nil && match == nil:
			match = t
		}
	}
	if match == nil {
		return
	}
	level.MinQuantity = match.MinQuantity
	level.MaxQuantity = match.MaxQuantity
	if match.MinQuantity != nil && level.Available < *match.MinQuantity {
		level.BelowMin = true
	}
	if match.MaxQuantity != nil && level.OnHand > *match.MaxQuantity {
		level.AboveMax = true
	}
}

// enrich decorates a row with catalog display attributes. Catalog failures
// degrade to bare ids; the report itself must not fail because the catalog
// is unreachable.
func (s *LevelService) enrich(ctx context.Context, level *StockLevel) {
	if s.catalog == nil {
		return
	}
	if product, err := s.catalog.Product(ctx, level.ProductID); err == nil {
		level.ProductSKU = product.SKU
		level.ProductName = product.Name
	} else {
		logger.Debug(ctx, "catalog product lookup degraded", "product_id", level.ProductID, "error", err)
	}
	if level.LocationID != nil {
		if location, err := s.catalog.Location(ctx, *level.LocationID); err == nil {
			level.LocationCode = location.Code
			level.LocationName = location.Name
		} else {
			logger.Debug(ctx, "catalog location lookup degraded", "location_id", level.LocationID, "error", err)
		}
	}
}
