package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/storage/postgres"
)

const stockAllocationsTable = "stock_allocations"

var allocationColumns = postgres.ExtractDBColumns[stock.StockAllocation]()

// AllocationRepo implements stock.AllocationRepository.
type AllocationRepo struct {
	builder squirrel.StatementBuilderType
}

// NewAllocationRepo creates a new allocation repository.
func NewAllocationRepo() *AllocationRepo {
	return &AllocationRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *AllocationRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a new reservation.
func (r *AllocationRepo) Create(ctx context.Context, alloc *stock.StockAllocation) error {
	q := r.builder.Insert(stockAllocationsTable).
		SetMap(postgres.StructToMap(alloc))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert allocation: %w", err)
	}

	return nil
}

// GetByID loads one reservation.
func (r *AllocationRepo) GetByID(ctx context.Context, allocationID id.ID) (*stock.StockAllocation, error) {
	q := r.builder.Select(allocationColumns...).
		From(stockAllocationsTable).
		Where(squirrel.Eq{"id": allocationID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var alloc stock.StockAllocation
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &alloc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock allocation", allocationID)
		}
		return nil, fmt.Errorf("get allocation: %w", err)
	}

	return &alloc, nil
}

// Release flips ALLOCATED to RELEASED. The status guard in the WHERE clause
// makes the transition race-safe: a second releaser changes zero rows.
func (r *AllocationRepo) Release(ctx context.Context, alloc *stock.StockAllocation) (bool, error) {
	q := r.builder.Update(stockAllocationsTable).
		Set("status", stock.StatusReleased).
		Set("released_at", alloc.ReleasedAt).
		Where(squirrel.Eq{
			"id":     alloc.ID,
			"status": stock.StatusAllocated,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("release allocation: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// SumAllocated returns total ALLOCATED quantity reserved against a lot.
func (r *AllocationRepo) SumAllocated(ctx context.Context, stockItemID id.ID) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_allocations
		WHERE stock_item_id = $1 AND status = $2
	`

	var total int64
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, stockItemID, stock.StatusAllocated).Scan(&total)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("sum allocations: %w", err)
	}

	return types.Quantity(total), nil
}

// ListByItem returns reservations against a lot, newest first.
func (r *AllocationRepo) ListByItem(ctx context.Context, stockItemID id.ID, status *stock.AllocationStatus) ([]*stock.StockAllocation, error) {
	q := r.builder.Select(allocationColumns...).
		From(stockAllocationsTable).
		Where(squirrel.Eq{"stock_item_id": stockItemID})

	if status != nil {
		q = q.Where(squirrel.Eq{"status": *status})
	}

	q = q.OrderBy("allocated_at DESC", "id DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var allocations []*stock.StockAllocation
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &allocations, sql, args...); err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}

	return allocations, nil
}

// Ensure interface compliance.
var _ stock.AllocationRepository = (*AllocationRepo)(nil)
