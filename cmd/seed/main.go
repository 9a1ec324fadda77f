// Package main provides a CLI tool for seeding a tenant namespace with
// demo stock so the API can be exercised locally.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/infrastructure/migrations"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	tenantKey := os.Getenv("SEED_TENANT_KEY")
	if tenantKey == "" {
		tenantKey = "demo"
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	admin := tenant.NewPgxSchemaAdmin(pool.Pool)
	migrator := migrations.NewRunner(pool.Pool)
	provisioner := tenant.NewProvisioner(admin, migrator, log)

	namespace, err := provisioner.EnsureReady(ctx, tenantKey)
	if err != nil {
		log.Fatalw("failed to provision tenant", "tenant_key", tenantKey, "error", err)
	}
	log.Infow("tenant ready", "namespace", namespace)

	txManager := postgres.NewTxManager(pool)
	ctx = tenant.WithTxManager(ctx, txManager)
	ctx = tenant.WithNamespace(ctx, namespace)
	ctx = appctx.WithActor(ctx, &appctx.Actor{ActorID: "seed", TenantKey: tenantKey})

	if err := seedStock(ctx, txManager); err != nil {
		log.Fatalw("failed to seed stock", "error", err)
	}

	log.Infow("seed complete", "tenant_key", tenantKey)
}

// seedStock bulk-loads demo lots with the COPY protocol and configures
// thresholds for both products in one batched round-trip.
func seedStock(ctx context.Context, txManager *postgres.TxManager) error {
	productA := id.New()
	productB := id.New()
	locationMain := id.New()

	now := time.Now().UTC()
	nearExpiry := now.Add(20 * 24 * time.Hour)

	columns := []string{
		"id", "product_id", "location_id", "quantity",
		"expires_at", "consignment_id", "version",
		"created_at", "updated_at",
	}

	rows := [][]any{
		{id.New(), productA, locationMain, int64(120), nil, nil, 0, now, now},
		{id.New(), productA, locationMain, int64(30), nearExpiry, nil, 0, now.Add(time.Second), now.Add(time.Second)},
		{id.New(), productA, nil, int64(50), nil, nil, 0, now.Add(2 * time.Second), now.Add(2 * time.Second)},
		{id.New(), productB, locationMain, int64(200), nil, nil, 0, now, now},
	}

	return txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inserter := postgres.NewBatchInserter(txManager)
		inserted, err := inserter.CopyFromSlice(ctx, "stock_items", columns, rows)
		if err != nil {
			return fmt.Errorf("copy stock items: %w", err)
		}
		if inserted != int64(len(rows)) {
			return fmt.Errorf("expected %d rows inserted, got %d", len(rows), inserted)
		}

		const thresholdSQL = `INSERT INTO stock_thresholds (product_id, location_id, min_quantity, max_quantity)
			 VALUES ($1, $2, $3, $4)`
		executor := postgres.NewBatchExecutor(txManager)
		err = executor.ExecuteBatch(ctx, []postgres.BatchQuery{
			{SQL: thresholdSQL, Args: []any{productA, locationMain, int64(40), int64(500)}},
			{SQL: thresholdSQL, Args: []any{productB, nil, int64(50), nil}},
		})
		if err != nil {
			return fmt.Errorf("insert thresholds: %w", err)
		}
		return nil
	})
}
