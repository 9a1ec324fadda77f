package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

type adjustFixture struct {
	svc         *AdjustmentService
	items       *fakeItemRepo
	adjustments *fakeAdjustmentRepo
	audit       *fakeAuditRecorder
	publisher   *fakePublisher
	txm         *fakeTxManager
}

func newAdjustFixture() *adjustFixture {
	f := &adjustFixture{
		items:       &fakeItemRepo{},
		adjustments: &fakeAdjustmentRepo{},
		audit:       &fakeAuditRecorder{},
		publisher:   &fakePublisher{},
		txm:         &fakeTxManager{},
	}
	f.svc = NewAdjustmentService(f.items, f.adjustments, &fakeProvisioner{}, f.audit, f.publisher, &fakeNumberGen{}, f.txm)
	return f
}

func TestAdjust_SingleLotDecrease(t *testing.T) {
	f := newAdjustFixture()
	productID := id.New()
	lot := f.items.add(NewStockItem(productID, nil, 50))

	result, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
		TenantKey: "acme",
		ProductID: productID,
		Type:      AdjustmentDecrease,
		Quantity:  20,
		Reason:    ReasonDamaged,
		Actor:     "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, types.Quantity(50), result.QuantityBefore)
	assert.Equal(t, types.Quantity(30), result.QuantityAfter)
	assert.Equal(t, types.Quantity(30), lot.Quantity)

	require.Len(t, f.adjustments.entries, 1)
	entry := f.adjustments.entries[0]
	assert.Equal(t, AdjustmentDecrease, entry.Type)
	assert.Equal(t, types.Quantity(20), entry.Quantity)
	assert.Equal(t, ReasonDamaged, entry.Reason)
	assert.Equal(t, "ADJ-2026-00001", entry.Number)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "adjust", f.audit.entries[0].Action)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, EventAdjustmentRecorded, f.publisher.events[0].Type)
	assert.Equal(t, 1, f.txm.commits)
	assert.Equal(t, 0, f.txm.rollbacks)
}

func TestAdjust_DecreaseDistributesAcrossLots(t *testing.T) {
	f := newAdjustFixture()
	productID := id.New()
	first := f.items.add(NewStockItem(productID, nil, 10))
	second := f.items.add(NewStockItem(productID, nil, 15))

	result, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
		TenantKey: "acme",
		ProductID: productID,
		Type:      AdjustmentDecrease,
		Quantity:  18,
		Reason:    ReasonStockCount,
		Actor:     "tester",
	})
	require.NoError(t, err)

	// Oldest lot drains fully, the next covers the rest.
	assert.Equal(t, types.Quantity(0), first.Quantity)
	assert.Equal(t, types.Quantity(7), second.Quantity)
	assert.Equal(t, types.Quantity(25), result.QuantityBefore)
	assert.Equal(t, types.Quantity(7), result.QuantityAfter)
	assert.Len(t, f.adjustments.entries, 1, "exactly one ledger entry per command")
}

func TestAdjust_InsufficientStockRejectsWholeCommand(t *testing.T) {
	f := newAdjustFixture()
	productID := id.New()
	lot := f.items.add(NewStockItem(productID, nil, 5))

	_, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
		TenantKey: "acme",
		ProductID: productID,
		Type:      AdjustmentDecrease,
		Quantity:  10,
		Reason:    ReasonLost,
		Actor:     "tester",
	})
	assertCode(t, err, apperror.CodeInsufficientStock)

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(10), appErr.Details["requested"])
	assert.Equal(t, int64(5), appErr.Details["available"])

	// Nothing partial: no lot touched, no ledger entry, no event.
	assert.Equal(t, types.Quantity(5), lot.Quantity)
	assert.Equal(t, 0, f.items.updates)
	assert.Empty(t, f.adjustments.entries)
	assert.Empty(t, f.publisher.events)
	assert.Equal(t, 1, f.txm.rollbacks)
}

func TestAdjust_DecreaseWithZeroStock(t *testing.T) {
	f := newAdjustFixture()

	_, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
		TenantKey: "acme",
		ProductID: id.New(),
		Type:      AdjustmentDecrease,
		Quantity:  1,
		Reason:    ReasonLost,
		Actor:     "tester",
	})
	assertCode(t, err, apperror.CodeNoStockToAdjust)
}

func TestAdjust_ExpiredUnassignedLotExcluded(t *testing.T) {
	f := newAdjustFixture()
	productID := id.New()
	locationID := id.New()

	placed := NewStockItem(productID, &locationID, 5)
	f.items.add(placed)

	// Expired unassigned stock is not adjustable at a location.
	expired := NewStockItem(productID, nil, 50)
	past := time.Now().UTC().Add(-time.Hour)
	expired.ExpiresAt = &past
	f.items.add(expired)

	_, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
		TenantKey:  "acme",
		ProductID:  productID,
		LocationID: &locationID,
		Type:       AdjustmentDecrease,
		Quantity:   10,
		Reason:     ReasonStockCount,
		Actor:      "tester",
	})
	assertCode(t, err, apperror.CodeInsufficientStock)

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(5), appErr.Details["available"], "only the placed lot counts")
	assert.Equal(t, types.Quantity(50), expired.Quantity, "expired lot untouched")
}

func TestAdjust_AuthorizationThreshold(t *testing.T) {
	tests := []struct {
		name     string
		quantity types.Quantity
		code     string
		wantErr  bool
	}{
		{name: "just below threshold needs no code", quantity: 99},
		{name: "at threshold without code", quantity: 100, wantErr: true},
		{name: "at threshold with code", quantity: 100, code: "SUP-42"},
		{name: "above threshold with code", quantity: 500, code: "SUP-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdjustFixture()
			productID := id.New()

			_, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
				TenantKey:         "acme",
				ProductID:         productID,
				Type:              AdjustmentIncrease,
				Quantity:          tt.quantity,
				Reason:            ReasonFound,
				Actor:             "tester",
				AuthorizationCode: tt.code,
			})
			if tt.wantErr {
				assertCode(t, err, apperror.CodeAuthorizationRequired)
				return
			}
			require.NoError(t, err)

			entry := f.adjustments.entries[0]
			if tt.code == "" {
				assert.Nil(t, entry.AuthorizationCode)
			} else {
				require.NotNil(t, entry.AuthorizationCode)
				assert.Equal(t, tt.code, *entry.AuthorizationCode)
			}
		})
	}
}

func TestAdjust_IncreaseCreatesLotWhenScopeEmpty(t *testing.T) {
	f := newAdjustFixture()
	productID := id.New()

	result, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
		TenantKey: "acme",
		ProductID: productID,
		Type:      AdjustmentIncrease,
		Quantity:  30,
		Reason:    ReasonFound,
		Actor:     "tester",
	})
	require.NoError(t, err)

	require.Equal(t, 1, f.items.creates)
	require.Len(t, f.items.items, 1)
	assert.Equal(t, types.Quantity(30), f.items.items[0].Quantity)
	assert.Equal(t, types.Quantity(0), result.QuantityBefore)
	assert.Equal(t, types.Quantity(30), result.QuantityAfter)
}

func TestAdjust_ExplicitLotScope(t *testing.T) {
	f := newAdjustFixture()
	productID := id.New()
	sibling := f.items.add(NewStockItem(productID, nil, 100))
	target := f.items.add(NewStockItem(productID, nil, 40))
	targetID := target.ID

	_, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
		TenantKey:   "acme",
		ProductID:   productID,
		StockItemID: &targetID,
		Type:        AdjustmentDecrease,
		Quantity:    15,
		Reason:      ReasonExpired,
		Actor:       "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, types.Quantity(25), target.Quantity)
	assert.Equal(t, types.Quantity(100), sibling.Quantity, "sibling lot untouched")
}

func TestAdjust_TenantContextMismatch(t *testing.T) {
	f := newAdjustFixture()

	_, err := f.svc.Adjust(tenantCtx("acme"), AdjustCommand{
		TenantKey: "rival",
		ProductID: id.New(),
		Type:      AdjustmentIncrease,
		Quantity:  1,
		Reason:    ReasonFound,
		Actor:     "tester",
	})
	assertCode(t, err, apperror.CodeConfiguration)
	assert.Equal(t, 0, f.txm.commits)
}

func TestAdjust_Validation(t *testing.T) {
	f := newAdjustFixture()

	tests := []struct {
		name string
		cmd  AdjustCommand
	}{
		{"missing tenant", AdjustCommand{ProductID: id.New(), Type: AdjustmentIncrease, Quantity: 1, Reason: ReasonFound, Actor: "t"}},
		{"missing product", AdjustCommand{TenantKey: "acme", Type: AdjustmentIncrease, Quantity: 1, Reason: ReasonFound, Actor: "t"}},
		{"bad type", AdjustCommand{TenantKey: "acme", ProductID: id.New(), Type: "SIDEWAYS", Quantity: 1, Reason: ReasonFound, Actor: "t"}},
		{"zero quantity", AdjustCommand{TenantKey: "acme", ProductID: id.New(), Type: AdjustmentIncrease, Reason: ReasonFound, Actor: "t"}},
		{"negative quantity", AdjustCommand{TenantKey: "acme", ProductID: id.New(), Type: AdjustmentIncrease, Quantity: -5, Reason: ReasonFound, Actor: "t"}},
		{"missing reason", AdjustCommand{TenantKey: "acme", ProductID: id.New(), Type: AdjustmentIncrease, Quantity: 1, Actor: "t"}},
		{"missing actor", AdjustCommand{TenantKey: "acme", ProductID: id.New(), Type: AdjustmentIncrease, Quantity: 1, Reason: ReasonFound}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Adjust(tenantCtx("acme"), tt.cmd)
			assertCode(t, err, apperror.CodeValidation)
		})
	}
}

func TestReceive(t *testing.T) {
	f := newAdjustFixture()
	productID := id.New()
	locationID := id.New()
	consignmentID := id.New()
	expires := time.Now().UTC().Add(90 * 24 * time.Hour)

	result, err := f.svc.Receive(tenantCtx("acme"), ReceiveCommand{
		TenantKey:     "acme",
		ProductID:     productID,
		LocationID:    &locationID,
		Quantity:      60,
		ExpiresAt:     &expires,
		ConsignmentID: consignmentID,
		Actor:         "tester",
	})
	require.NoError(t, err)

	require.Len(t, f.items.items, 1)
	lot := f.items.items[0]
	require.NotNil(t, lot.ConsignmentID)
	assert.Equal(t, consignmentID, *lot.ConsignmentID)
	require.NotNil(t, lot.ExpiresAt)
	assert.True(t, lot.ExpiresAt.Equal(expires), "expiration carried onto the lot")

	require.Len(t, f.adjustments.entries, 1)
	entry := f.adjustments.entries[0]
	assert.Equal(t, AdjustmentIncrease, entry.Type)
	assert.Equal(t, ReasonReceipt, entry.Reason)
	assert.Equal(t, "RCP-2026-00001", entry.Number)
	assert.Equal(t, types.Quantity(0), entry.QuantityBefore)
	assert.Equal(t, types.Quantity(60), entry.QuantityAfter)
	assert.Equal(t, types.Quantity(60), result.QuantityAfter)
}

func TestReceive_RequiresConsignment(t *testing.T) {
	f := newAdjustFixture()

	_, err := f.svc.Receive(tenantCtx("acme"), ReceiveCommand{
		TenantKey: "acme",
		ProductID: id.New(),
		Quantity:  10,
		Actor:     "tester",
	})
	assertCode(t, err, apperror.CodeValidation)
	appErr, _ := apperror.AsAppError(err)
	assert.Contains(t, appErr.Details["field"], "consignment")
}

func TestItemHistory(t *testing.T) {
	f := newAdjustFixture()
	productID := id.New()
	consignmentID := id.New()

	result, err := f.svc.Receive(tenantCtx("acme"), ReceiveCommand{
		TenantKey:     "acme",
		ProductID:     productID,
		Quantity:      25,
		ConsignmentID: consignmentID,
		Actor:         "tester",
	})
	require.NoError(t, err)
	require.Len(t, f.items.items, 1)
	lotID := f.items.items[0].ID

	records, err := f.svc.ItemHistory(tenantCtx("acme"), "acme", lotID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "receive", records[0].Action)
	assert.Equal(t, lotID, records[0].EntityID)
	assert.NotEmpty(t, records[0].Changes)

	// The ledger entry itself is audited under its own id, not the lot's.
	other, err := f.svc.ItemHistory(tenantCtx("acme"), "acme", result.AdjustmentID, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}
