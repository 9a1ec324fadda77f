package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/storage/postgres"
)

const stockThresholdsTable = "stock_thresholds"

// LevelRepo implements stock.LevelRepository: the read-only aggregation
// over lots and open reservations.
type LevelRepo struct {
	builder squirrel.StatementBuilderType
}

// NewLevelRepo creates a new level repository.
func NewLevelRepo() *LevelRepo {
	return &LevelRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LevelRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Levels groups lots by product and location and joins the ALLOCATED sums.
// An empty tenant aggregates to an empty result, never an error.
func (r *LevelRepo) Levels(ctx context.Context, query stock.LevelQuery) ([]stock.LevelRow, error) {
	q := r.builder.Select(
		"i.product_id",
		"i.location_id",
		"COALESCE(SUM(i.quantity), 0) AS total",
		"COALESCE(SUM(a.allocated), 0) AS allocated",
	).From(stockItemsTable + " i").
		LeftJoin(`LATERAL (
			SELECT COALESCE(SUM(quantity), 0) AS allocated
			FROM stock_allocations
			WHERE stock_item_id = i.id AND status = 'ALLOCATED'
		) a ON true`).
		GroupBy("i.product_id", "i.location_id").
		OrderBy("i.product_id", "i.location_id NULLS FIRST")

	if query.ProductID != nil {
		q = q.Where(squirrel.Eq{"i.product_id": *query.ProductID})
	}
	if query.LocationID != nil {
		q = q.Where(squirrel.Eq{"i.location_id": *query.LocationID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []stock.LevelRow
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select levels: %w", err)
	}

	return rows, nil
}

// Thresholds returns configured min/max levels for the products in scope.
func (r *LevelRepo) Thresholds(ctx context.Context, query stock.LevelQuery) ([]stock.Threshold, error) {
	q := r.builder.Select(
		"product_id", "location_id", "min_quantity", "max_quantity",
	).From(stockThresholdsTable)

	if query.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *query.ProductID})
	}
	if query.LocationID != nil {
		// Product-wide thresholds still apply at any location.
		q = q.Where(squirrel.Or{
			squirrel.Eq{"location_id": *query.LocationID},
			squirrel.Eq{"location_id": nil},
		})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var thresholds []stock.Threshold
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &thresholds, sql, args...); err != nil {
		return nil, fmt.Errorf("select thresholds: %w", err)
	}

	return thresholds, nil
}

// Ensure interface compliance.
var _ stock.LevelRepository = (*LevelRepo)(nil)
