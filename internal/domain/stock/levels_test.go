package stock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/info"
)

func qty(v int64) *types.Quantity {
	q := types.Quantity(v)
	return &q
}

func newLevelService(repo *fakeLevelRepo, catalog info.Provider) *LevelService {
	return NewLevelService(repo, &fakeProvisioner{}, catalog, &fakeTxManager{})
}

func TestLevels_Empty(t *testing.T) {
	svc := newLevelService(&fakeLevelRepo{}, nil)

	levels, err := svc.Levels(tenantCtx("acme"), "acme", LevelQuery{})
	require.NoError(t, err)
	assert.Empty(t, levels, "a tenant with no stock gets an empty result")
}

func TestLevels_AvailableClampedAtZero(t *testing.T) {
	productID := id.New()
	svc := newLevelService(&fakeLevelRepo{
		rows: []LevelRow{{ProductID: productID, Total: 10, Allocated: 12}},
	}, nil)

	levels, err := svc.Levels(tenantCtx("acme"), "acme", LevelQuery{})
	require.NoError(t, err)

	assert.Equal(t, types.Quantity(0), levels[0].Available, "available clamps at zero")
	// Raw figures survive the clamp.
	assert.Equal(t, types.Quantity(10), levels[0].OnHand)
	assert.Equal(t, types.Quantity(12), levels[0].Allocated)
}

func TestLevels_ThresholdSpecificity(t *testing.T) {
	productID := id.New()
	locationID := id.New()

	repo := &fakeLevelRepo{
		rows: []LevelRow{
			{ProductID: productID, LocationID: &locationID, Total: 10},
			{ProductID: productID, Total: 10},
		},
		thresholds: []Threshold{
			{ProductID: productID, MinQuantity: qty(5)},
			{ProductID: productID, LocationID: &locationID, MinQuantity: qty(20)},
		},
	}
	svc := newLevelService(repo, nil)

	levels, err := svc.Levels(tenantCtx("acme"), "acme", LevelQuery{})
	require.NoError(t, err)

	// The location row matches the location-specific threshold (min 20).
	atLocation := levels[0]
	require.NotNil(t, atLocation.MinQuantity)
	assert.Equal(t, types.Quantity(20), *atLocation.MinQuantity)
	assert.True(t, atLocation.BelowMin, "available 10 under min 20")

	// The unassigned row falls back to the product-wide threshold (min 5).
	unassigned := levels[1]
	require.NotNil(t, unassigned.MinQuantity)
	assert.Equal(t, types.Quantity(5), *unassigned.MinQuantity)
	assert.False(t, unassigned.BelowMin, "available 10 over min 5")
}

func TestLevels_AboveMaxUsesOnHand(t *testing.T) {
	productID := id.New()
	repo := &fakeLevelRepo{
		rows:       []LevelRow{{ProductID: productID, Total: 50, Allocated: 45}},
		thresholds: []Threshold{{ProductID: productID, MaxQuantity: qty(40)}},
	}
	svc := newLevelService(repo, nil)

	levels, err := svc.Levels(tenantCtx("acme"), "acme", LevelQuery{})
	require.NoError(t, err)

	// Overstock is a physical property: on-hand 50 > max 40 even though
	// only 5 are available.
	assert.True(t, levels[0].AboveMax)
	assert.False(t, levels[0].BelowMin, "no min threshold configured")
}

func TestLevels_CatalogEnrichment(t *testing.T) {
	productID := id.New()
	locationID := id.New()

	catalog := &fakeCatalog{
		products: map[id.ID]*info.Product{
			productID: {ID: productID, SKU: "SKU-1", Name: "Widget"},
		},
		locations: map[id.ID]*info.Location{
			locationID: {ID: locationID, Code: "A-01", Name: "Aisle 1"},
		},
	}
	repo := &fakeLevelRepo{
		rows: []LevelRow{{ProductID: productID, LocationID: &locationID, Total: 3}},
	}
	svc := newLevelService(repo, catalog)

	levels, err := svc.Levels(tenantCtx("acme"), "acme", LevelQuery{})
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", levels[0].ProductSKU)
	assert.Equal(t, "A-01", levels[0].LocationCode)
}

func TestLevels_CatalogFailureDegrades(t *testing.T) {
	productID := id.New()
	repo := &fakeLevelRepo{
		rows: []LevelRow{{ProductID: productID, Total: 3}},
	}
	svc := newLevelService(repo, &fakeCatalog{err: errors.New("catalog down")})

	levels, err := svc.Levels(tenantCtx("acme"), "acme", LevelQuery{})
	require.NoError(t, err, "catalog outage must not fail the report")

	// Degraded rows keep bare ids.
	assert.Empty(t, levels[0].ProductSKU)
	assert.Empty(t, levels[0].ProductName)
	assert.Equal(t, types.Quantity(3), levels[0].OnHand)
}
