// Package tenant provides multi-tenant namespace management.
// Each tenant's data lives in an isolated PostgreSQL schema inside one
// database; every stock operation binds its transactional unit to exactly
// one namespace.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

// LegacyNamespace is the fixed pre-multitenancy schema name still accepted
// by the allow-list for installations migrated in place.
const LegacyNamespace = "stock_ledger"

var (
	// namespacePattern is the allow-listed grammar for namespace identifiers.
	// Anything else is rejected before it can reach a dynamically-constructed
	// administrative statement.
	namespacePattern = regexp.MustCompile(`^(stock_ledger|tenant_[a-z0-9_]+_schema)$`)

	// tenantKeyPattern restricts tenant keys to characters that survive the
	// namespace grammar unescaped.
	tenantKeyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// NamespaceFor derives the physical schema name for a tenant key.
// The key is lowercased first; a key that cannot produce an allow-listed
// namespace is rejected with ErrInvalidTenantKey.
func NamespaceFor(tenantKey string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(tenantKey))
	if key == "" {
		return "", ErrInvalidTenantKey
	}
	if !tenantKeyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenantKey, tenantKey)
	}

	ns := "tenant_" + key + "_schema"
	if err := ValidateNamespace(ns); err != nil {
		return "", err
	}
	return ns, nil
}

// ValidateNamespace checks a namespace identifier against the allow-listed
// grammar. Callers must validate before interpolating the name into any
// administrative SQL.
func ValidateNamespace(namespace string) error {
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}
	return nil
}
