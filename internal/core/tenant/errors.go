package tenant

import "errors"

var (
	// ErrInvalidTenantKey is returned for tenant keys outside the allowed alphabet.
	ErrInvalidTenantKey = errors.New("invalid tenant key")

	// ErrInvalidNamespace is returned for namespace names outside the allow-listed grammar.
	ErrInvalidNamespace = errors.New("namespace does not match allow-listed pattern")

	// ErrNoTenantInContext is returned when an operation runs without a bound tenant.
	ErrNoTenantInContext = errors.New("tenant not found in context")
)
