// Package main is the entry point for the stock ledger API server.
// Multi-tenant architecture: schema-per-tenant over one shared database.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/info"
	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/events"
	v1 "stockledger/internal/infrastructure/http/v1"
	infoclient "stockledger/internal/infrastructure/info"
	"stockledger/internal/infrastructure/migrations"
	"stockledger/internal/infrastructure/numerator"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/stock_repo"
	"stockledger/pkg/logger"
)

func main() {
	// Load .env in development; production relies on real env vars.
	_ = godotenv.Load()

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stockledger server")

	// --- Database connection ---
	dsn := mustEnv("DATABASE_URL")
	poolCfg := postgres.DefaultPoolConfig(dsn)
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Tenant provisioning ---
	schemaAdmin := tenant.NewPgxSchemaAdmin(pool.Pool)
	migrator := migrations.NewRunner(pool.Pool)
	provisioner := tenant.NewProvisioner(schemaAdmin, migrator, log)

	// --- JWT Service ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Event publisher ---
	var publisher stock.Publisher
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		kafkaPublisher := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: splitCSV(brokers),
			Topic:   getEnv("KAFKA_TOPIC", "stock-events"),
		})
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Infow("kafka publisher initialized", "topic", getEnv("KAFKA_TOPIC", "stock-events"))
	} else {
		publisher = events.NewLogPublisher()
		log.Info("no kafka brokers configured, events go to the log")
	}

	// --- Catalog info (optional enrichment for the level report) ---
	var catalog info.Provider
	if baseURL := getEnv("CATALOG_URL", ""); baseURL != "" {
		catalog = infoclient.NewClient(infoclient.ClientConfig{BaseURL: baseURL})
	}

	// --- Repositories ---
	itemRepo := stock_repo.NewItemRepo()
	adjustmentRepo := stock_repo.NewAdjustmentRepo()
	allocationRepo := stock_repo.NewAllocationRepo()
	levelRepo := stock_repo.NewLevelRepo()

	auditService, err := postgres.NewAuditService()
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Services ---
	entryNumbers := numerator.NewEntryNumbers()
	adjustments := stock.NewAdjustmentService(itemRepo, adjustmentRepo, provisioner, auditService, publisher, entryNumbers, txManager)
	allocations := stock.NewAllocationService(itemRepo, allocationRepo, provisioner, auditService, publisher, txManager)
	levels := stock.NewLevelService(levelRepo, provisioner, catalog, txManager)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		TxManager:    txManager,
		Logger:       log,
		JWTValidator: jwtService,
		Adjustments:  adjustments,
		Allocations:  allocations,
		Levels:       levels,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
