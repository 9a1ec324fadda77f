// Package stock_repo provides PostgreSQL implementations for stock repositories.
// Repositories carry no pool of their own: every query goes through the
// TxManager in context, whose transaction is already bound to the tenant's
// namespace via search_path.
package stock_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/storage/postgres"
)

const stockItemsTable = "stock_items"

var itemColumns = postgres.ExtractDBColumns[stock.StockItem]()

// ItemRepo implements stock.ItemRepository.
type ItemRepo struct {
	builder squirrel.StatementBuilderType
}

// NewItemRepo creates a new stock item repository.
func NewItemRepo() *ItemRepo {
	return &ItemRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// getTxManager retrieves TxManager from context.
func (r *ItemRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// GetByID loads one lot.
func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*stock.StockItem, error) {
	q := r.builder.Select(itemColumns...).
		From(stockItemsTable).
		Where(squirrel.Eq{"id": itemID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item stock.StockItem
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock item", itemID)
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}

	return &item, nil
}

// ListInScope enumerates candidate lots in creation order, oldest first.
// For a product+location scope the result also carries unassigned,
// non-expired lots of the product: stock that has not been placed yet is
// still adjustable at any location.
func (r *ItemRepo) ListInScope(ctx context.Context, scope stock.Scope) ([]*stock.StockItem, error) {
	q := r.builder.Select(itemColumns...).
		From(stockItemsTable).
		Where(squirrel.Eq{"product_id": scope.ProductID})

	switch scope.Kind {
	case stock.ScopeItem:
		q = q.Where(squirrel.Eq{"id": scope.StockItemID})
	case stock.ScopeProductLocation:
		q = q.Where(squirrel.Or{
			squirrel.Eq{"location_id": *scope.LocationID},
			squirrel.And{
				squirrel.Eq{"location_id": nil},
				squirrel.Or{
					squirrel.Eq{"expires_at": nil},
					squirrel.Gt{"expires_at": time.Now().UTC()},
				},
			},
		})
	case stock.ScopeProductWide:
		// No narrowing beyond the product.
	}

	// Deterministic enumeration order; the id tiebreak keeps same-instant
	// rows stable.
	q = q.OrderBy("created_at", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*stock.StockItem
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock items: %w", err)
	}

	return items, nil
}

// Create inserts a new lot.
func (r *ItemRepo) Create(ctx context.Context, item *stock.StockItem) error {
	q := r.builder.Insert(stockItemsTable).
		SetMap(postgres.StructToMap(item))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert stock item: %w", err)
	}

	return nil
}

// Update writes quantity and placement with an optimistic compare-and-swap
// on the version the caller read. Zero rows affected means a concurrent
// writer got there first.
func (r *ItemRepo) Update(ctx context.Context, item *stock.StockItem) error {
	previousVersion := item.Version
	item.Version++
	item.UpdatedAt = time.Now().UTC()

	q := r.builder.Update(stockItemsTable).
		Set("quantity", item.Quantity).
		Set("location_id", item.LocationID).
		Set("version", item.Version).
		Set("updated_at", item.UpdatedAt).
		Where(squirrel.Eq{
			"id":      item.ID,
			"version": previousVersion,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update stock item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		item.Version = previousVersion
		return apperror.NewConcurrentModification("stock item", item.ID.String())
	}

	return nil
}

// Ensure interface compliance.
var _ stock.ItemRepository = (*ItemRepo)(nil)
