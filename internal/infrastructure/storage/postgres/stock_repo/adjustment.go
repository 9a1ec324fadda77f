package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/storage/postgres"
)

const stockAdjustmentsTable = "stock_adjustments"

var adjustmentColumns = postgres.ExtractDBColumns[stock.StockAdjustment]()

// AdjustmentRepo implements stock.AdjustmentRepository. The ledger is
// append-only: there is deliberately no Update or Delete here.
type AdjustmentRepo struct {
	builder squirrel.StatementBuilderType
}

// NewAdjustmentRepo creates a new adjustment ledger repository.
func NewAdjustmentRepo() *AdjustmentRepo {
	return &AdjustmentRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *AdjustmentRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create appends one ledger entry.
func (r *AdjustmentRepo) Create(ctx context.Context, adj *stock.StockAdjustment) error {
	q := r.builder.Insert(stockAdjustmentsTable).
		SetMap(postgres.StructToMap(adj))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}

	return nil
}

// GetByID loads one ledger entry.
func (r *AdjustmentRepo) GetByID(ctx context.Context, adjustmentID id.ID) (*stock.StockAdjustment, error) {
	q := r.builder.Select(adjustmentColumns...).
		From(stockAdjustmentsTable).
		Where(squirrel.Eq{"id": adjustmentID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var adj stock.StockAdjustment
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &adj, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock adjustment", adjustmentID)
		}
		return nil, fmt.Errorf("get adjustment: %w", err)
	}

	return &adj, nil
}

// ListByProduct returns ledger history for a product, newest first.
func (r *AdjustmentRepo) ListByProduct(ctx context.Context, productID id.ID, filter stock.AdjustmentFilter) ([]*stock.StockAdjustment, error) {
	q := r.builder.Select(adjustmentColumns...).
		From(stockAdjustmentsTable).
		Where(squirrel.Eq{"product_id": productID})

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"adjustment_type": *filter.Type})
	}

	q = q.OrderBy("created_at DESC", "id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var adjustments []*stock.StockAdjustment
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &adjustments, sql, args...); err != nil {
		return nil, fmt.Errorf("select adjustments: %w", err)
	}

	return adjustments, nil
}

// Ensure interface compliance.
var _ stock.AdjustmentRepository = (*AdjustmentRepo)(nil)
