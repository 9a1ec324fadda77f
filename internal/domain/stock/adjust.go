package stock

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// AdjustmentService validates and applies adjustment commands: it computes
// the current quantity in scope, prevents negative stock, distributes
// decreases across lots, and emits the immutable ledger entry. Lot mutation
// and ledger write commit together in one transactional unit bound to the
// tenant's namespace.
type AdjustmentService struct {
	items       ItemRepository
	adjustments AdjustmentRepository
	provisioner NamespaceProvisioner
	audit       AuditLog
	publisher   Publisher
	numbers     NumberGenerator // Optional. Nil leaves entries without numbers.
	txManager   tx.Manager      // Optional. If nil, obtained from context.
}

// NewAdjustmentService creates the adjustment engine.
func NewAdjustmentService(
	items ItemRepository,
	adjustments AdjustmentRepository,
	provisioner NamespaceProvisioner,
	audit AuditLog,
	publisher Publisher,
	numbers NumberGenerator,
	txManager tx.Manager,
) *AdjustmentService {
	return &AdjustmentService{
		items:       items,
		adjustments: adjustments,
		provisioner: provisioner,
		audit:       audit,
		publisher:   publisher,
		numbers:     numbers,
		txManager:   txManager,
	}
}

// numberFor draws the next entry number inside the current unit. The
// underlying sequence row is transaction-bound, so a rollback returns the
// number to the pool.
func (s *AdjustmentService) numberFor(ctx context.Context, prefix string) (string, error) {
	if s.numbers == nil {
		return "", nil
	}
	number, err := s.numbers.Next(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("next entry number: %w", err)
	}
	return number, nil
}

func (s *AdjustmentService) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// bindTenant runs the per-operation tenant sequence: context double-check,
// namespace resolution, provisioning, and namespace binding for the unit.
func bindTenant(ctx context.Context, provisioner NamespaceProvisioner, tenantKey string) (context.Context, error) {
	if err := tenant.CheckContext(ctx, tenantKey); err != nil {
		return ctx, err
	}
	namespace, err := provisioner.EnsureReady(ctx, tenantKey)
	if err != nil {
		return ctx, err
	}
	return tenant.WithNamespace(ctx, namespace), nil
}

// publishAfterCommit drains buffered events to the publisher. Best-effort:
// the commit already happened, so failures are logged and swallowed.
func publishAfterCommit(ctx context.Context, publisher Publisher, events []Event) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.PublishBatch(ctx, events); err != nil {
		logger.Warn(ctx, "domain event publication failed",
			"count", len(events),
			"error", err,
		)
	}
}

// Adjust applies one adjustment command and returns the ledger entry data.
func (s *AdjustmentService) Adjust(ctx context.Context, cmd AdjustCommand) (*AdjustmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ctx, err := bindTenant(ctx, s.provisioner, cmd.TenantKey)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var (
		result *AdjustmentResult
		buf    eventBuffer
	)
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		adj, err := s.apply(ctx, cmd)
		if err != nil {
			return err
		}

		buf.record(cmd.TenantKey, EventAdjustmentRecorded, adj)
		result = &AdjustmentResult{
			AdjustmentID:   adj.ID,
			Number:         adj.Number,
			QuantityBefore: adj.QuantityBefore,
			QuantityAfter:  adj.QuantityAfter,
			CreatedAt:      adj.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, buf.drain())

	logger.Info(ctx, "stock adjusted",
		"adjustment_id", result.AdjustmentID,
		"type", cmd.Type,
		"quantity", cmd.Quantity,
		"before", result.QuantityBefore,
		"after", result.QuantityAfter,
	)
	return result, nil
}

// apply runs inside the transactional unit: scope resolution, feasibility
// validation, lot mutation and ledger write.
func (s *AdjustmentService) apply(ctx context.Context, cmd AdjustCommand) (*StockAdjustment, error) {
	scope := ResolveScope(cmd.ProductID, cmd.LocationID, cmd.StockItemID)

	lots, err := s.lotsInScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	var current types.Quantity
	for _, lot := range lots {
		current += lot.Quantity
	}

	if cmd.Type == AdjustmentDecrease {
		if current.IsZero() {
			return nil, apperror.NewNoStockToAdjust(cmd.ProductID.String())
		}
		if current < cmd.Quantity {
			return nil, apperror.NewInsufficientStock(cmd.ProductID.String(), cmd.Quantity.Int64(), current.Int64())
		}
	}

	number, err := s.numberFor(ctx, "ADJ")
	if err != nil {
		return nil, err
	}

	// The ledger snapshot is fixed here; lot mutation below must arrive at
	// exactly this after-quantity or the unit rolls back.
	adj := &StockAdjustment{
		ID:                id.New(),
		Number:            number,
		ProductID:         cmd.ProductID,
		LocationID:        cmd.LocationID,
		StockItemID:       cmd.StockItemID,
		Type:              cmd.Type,
		Quantity:          cmd.Quantity,
		Reason:            cmd.Reason,
		Notes:             cmd.Notes,
		Actor:             cmd.Actor,
		AuthorizationCode: cmd.authorizationCode(),
		QuantityBefore:    current,
		CreatedAt:         time.Now().UTC(),
	}
	if cmd.Type == AdjustmentIncrease {
		adj.QuantityAfter = current + cmd.Quantity
	} else {
		adj.QuantityAfter = current - cmd.Quantity
	}

	if err := s.mutateLots(ctx, cmd, scope, lots); err != nil {
		return nil, err
	}

	if err := s.adjustments.Create(ctx, adj); err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, AuditEntry{
			EntityType: "StockAdjustment",
			EntityID:   adj.ID,
			Action:     "adjust",
			Actor:      cmd.Actor,
			Changes:    adj,
		})
		if err != nil {
			return nil, fmt.Errorf("record audit entry: %w", err)
		}
	}

	return adj, nil
}

func (s *AdjustmentService) lotsInScope(ctx context.Context, scope Scope) ([]*StockItem, error) {
	if scope.Kind == ScopeItem {
		item, err := s.items.GetByID(ctx, *scope.StockItemID)
		if err != nil {
			return nil, err
		}
		return []*StockItem{item}, nil
	}
	return s.items.ListInScope(ctx, scope)
}

// mutateLots applies the quantity change to the physical lots. Feasibility
// was validated by the caller, so a shortfall mid-walk indicates a bug and
// fails the unit.
func (s *AdjustmentService) mutateLots(ctx context.Context, cmd AdjustCommand, scope Scope, lots []*StockItem) error {
	if cmd.Type == AdjustmentIncrease {
		if len(lots) == 0 {
			// Manual increase with no lot in scope creates a fresh one:
			// no expiration, no consignment link.
			lot := NewStockItem(cmd.ProductID, cmd.LocationID, cmd.Quantity)
			if err := s.items.Create(ctx, lot); err != nil {
				return fmt.Errorf("create lot: %w", err)
			}
			return nil
		}

		lot := lots[0]
		if err := lot.AdjustQuantity(cmd.Quantity); err != nil {
			return apperror.NewInternal(err)
		}
		if err := s.placeLot(lot, cmd.LocationID); err != nil {
			return err
		}
		if err := s.items.Update(ctx, lot); err != nil {
			return err
		}
		return nil
	}

	// Decrease: walk lots in enumeration order, consuming each up to its
	// available amount until the requested quantity is exhausted.
	remaining := cmd.Quantity
	for _, lot := range lots {
		if remaining.IsZero() {
			break
		}

		take := lot.Quantity.Min(remaining)
		if take.IsZero() {
			continue
		}

		if err := lot.AdjustQuantity(-take); err != nil {
			return apperror.NewInternal(err)
		}
		if err := s.placeLot(lot, cmd.LocationID); err != nil {
			return err
		}
		if err := s.items.Update(ctx, lot); err != nil {
			return err
		}
		remaining -= take
	}

	if !remaining.IsZero() {
		// Unreachable after the feasibility check; kept so a partial
		// distribution can never commit.
		return apperror.NewInsufficientStock(cmd.ProductID.String(), cmd.Quantity.Int64(), (cmd.Quantity - remaining).Int64())
	}
	return nil
}

// placeLot assigns the command's location to a still-unassigned lot as a
// side effect of the adjustment. Lots emptied by the adjustment stay
// unassigned: location assignment requires a positive quantity.
func (s *AdjustmentService) placeLot(lot *StockItem, locationID *id.ID) error {
	if locationID == nil || lot.LocationID != nil {
		return nil
	}
	if !lot.Quantity.IsPositive() {
		return nil
	}
	if err := lot.AssignLocation(*locationID); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

// Receive creates a lot from a received consignment and records the
// corresponding INCREASE ledger entry.
func (s *AdjustmentService) Receive(ctx context.Context, cmd ReceiveCommand) (*AdjustmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ctx, err := bindTenant(ctx, s.provisioner, cmd.TenantKey)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var (
		result *AdjustmentResult
		buf    eventBuffer
	)
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		lot := NewStockItem(cmd.ProductID, cmd.LocationID, cmd.Quantity)
		lot.ExpiresAt = cmd.ExpiresAt
		consignment := cmd.ConsignmentID
		lot.ConsignmentID = &consignment

		if err := s.items.Create(ctx, lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}

		number, err := s.numberFor(ctx, "RCP")
		if err != nil {
			return err
		}

		itemID := lot.ID
		adj := &StockAdjustment{
			ID:             id.New(),
			Number:         number,
			ProductID:      cmd.ProductID,
			LocationID:     cmd.LocationID,
			StockItemID:    &itemID,
			Type:           AdjustmentIncrease,
			Quantity:       cmd.Quantity,
			Reason:         ReasonReceipt,
			Notes:          cmd.Notes,
			Actor:          cmd.Actor,
			QuantityBefore: 0,
			QuantityAfter:  cmd.Quantity,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.adjustments.Create(ctx, adj); err != nil {
			return fmt.Errorf("create ledger entry: %w", err)
		}

		if s.audit != nil {
			err := s.audit.Record(ctx, AuditEntry{
				EntityType: "StockItem",
				EntityID:   lot.ID,
				Action:     "receive",
				Actor:      cmd.Actor,
				Changes:    lot,
			})
			if err != nil {
				return fmt.Errorf("record audit entry: %w", err)
			}
		}

		buf.record(cmd.TenantKey, EventAdjustmentRecorded, adj)
		result = &AdjustmentResult{
			AdjustmentID:   adj.ID,
			Number:         adj.Number,
			QuantityBefore: adj.QuantityBefore,
			QuantityAfter:  adj.QuantityAfter,
			CreatedAt:      adj.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishAfterCommit(ctx, s.publisher, buf.drain())
	return result, nil
}

// GetAdjustment loads one ledger entry.
func (s *AdjustmentService) GetAdjustment(ctx context.Context, tenantKey string, adjustmentID id.ID) (*StockAdjustment, error) {
	ctx, err := bindTenant(ctx, s.provisioner, tenantKey)
	if err != nil {
		return nil, err
	}
	return s.readOne(ctx, func(ctx context.Context) (*StockAdjustment, error) {
		return s.adjustments.GetByID(ctx, adjustmentID)
	})
}

// ListAdjustments pages ledger history for a product.
func (s *AdjustmentService) ListAdjustments(ctx context.Context, tenantKey string, productID id.ID, filter AdjustmentFilter) ([]*StockAdjustment, error) {
	ctx, err := bindTenant(ctx, s.provisioner, tenantKey)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var entries []*StockAdjustment
	err = runRead(ctx, txm, func(ctx context.Context) error {
		var err error
		entries, err = s.adjustments.ListByProduct(ctx, productID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ItemHistory returns the audit trail of one lot, newest first. A service
// running without an audit backend serves an empty history.
func (s *AdjustmentService) ItemHistory(ctx context.Context, tenantKey string, itemID id.ID, limit int) ([]AuditRecord, error) {
	ctx, err := bindTenant(ctx, s.provisioner, tenantKey)
	if err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}

	var records []AuditRecord
	err = runRead(ctx, txm, func(ctx context.Context) error {
		var err error
		records, err = s.audit.EntityHistory(ctx, "StockItem", itemID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetItem loads one lot.
func (s *AdjustmentService) GetItem(ctx context.Context, tenantKey string, itemID id.ID) (*StockItem, error) {
	ctx, err := bindTenant(ctx, s.provisioner, tenantKey)
	if err != nil {
		return nil, err
	}
	var item *StockItem
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}
	err = runRead(ctx, txm, func(ctx context.Context) error {
		var err error
		item, err = s.items.GetByID(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *AdjustmentService) readOne(ctx context.Context, load func(ctx context.Context) (*StockAdjustment, error)) (*StockAdjustment, error) {
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewConfiguration("transaction manager unavailable").WithCause(err)
	}
	var adj *StockAdjustment
	err = runRead(ctx, txm, func(ctx context.Context) error {
		var err error
		adj, err = load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// runRead prefers a read-only transaction when the manager supports it.
func runRead(ctx context.Context, txm tx.Manager, fn func(ctx context.Context) error) error {
	if rom, ok := txm.(tx.ReadOnlyManager); ok {
		return rom.ReadOnly(ctx, fn)
	}
	return txm.RunInTransaction(ctx, fn)
}
