// Package main provides a CLI tool for tenant namespace administration.
//
// Usage:
//
//	tenant provision <tenant-key>           - create and migrate a tenant namespace
//	tenant migrate <tenant-key>             - force a migration run for a tenant
//	tenant list                             - list provisioned tenant namespaces
//	tenant token <tenant-key> <actor-id>    - issue a development access token
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/auth"
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

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Token issuance needs no database connection.
	if os.Args[1] == "token" {
		issueToken(log)
		return
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	admin := tenant.NewPgxSchemaAdmin(pool.Pool)
	migrator := migrations.NewRunner(pool.Pool)
	provisioner := tenant.NewProvisioner(admin, migrator, log)

	switch os.Args[1] {
	case "provision":
		tenantKey := requireArg(2, "tenant-key")
		namespace, err := provisioner.EnsureReady(ctx, tenantKey)
		if err != nil {
			log.Fatalw("provisioning failed", "tenant_key", tenantKey, "error", err)
		}
		fmt.Printf("tenant %s ready in namespace %s\n", tenantKey, namespace)

	case "migrate":
		tenantKey := requireArg(2, "tenant-key")
		applied, err := provisioner.Migrate(ctx, tenantKey)
		if err != nil {
			log.Fatalw("migration failed", "tenant_key", tenantKey, "error", err)
		}
		fmt.Printf("applied %d migration(s) for tenant %s\n", applied, tenantKey)

	case "list":
		namespaces, err := admin.ListNamespaces(ctx)
		if err != nil {
			log.Fatalw("listing namespaces failed", "error", err)
		}
		if len(namespaces) == 0 {
			fmt.Println("no tenant namespaces provisioned")
			return
		}
		for _, ns := range namespaces {
			fmt.Println(ns)
		}

	default:
		usage()
		os.Exit(2)
	}
}

// issueToken signs a short-lived access token for local API calls. The
// tenant claim must match the X-Tenant-Key header on requests.
func issueToken(log *logger.Logger) {
	tenantKey := requireArg(2, "tenant-key")
	actorID := requireArg(3, "actor-id")

	if _, err := tenant.NamespaceFor(tenantKey); err != nil {
		log.Fatalw("invalid tenant key", "tenant_key", tenantKey, "error", err)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(secret))
	token, expiresAt, err := jwtService.GenerateAccessToken(actorID, tenantKey, "")
	if err != nil {
		log.Fatalw("token generation failed", "error", err)
	}

	fmt.Println(token)
	fmt.Printf("expires %s\n", expiresAt.UTC().Format("2006-01-02T15:04:05Z"))
}

func requireArg(index int, name string) string {
	if len(os.Args) <= index {
		fmt.Printf("missing required argument: %s\n", name)
		usage()
		os.Exit(2)
	}
	return os.Args[index]
}

func usage() {
	fmt.Println("usage: tenant <provision|migrate|list|token> [tenant-key] [actor-id]")
}
