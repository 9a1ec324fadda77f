// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Actor identifies who performs the current operation and for which tenant.
// Populated by the HTTP tenant middleware from validated JWT claims.
type Actor struct {
	ActorID   string
	TenantKey string
	Email     string
	SessionID string
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns Actor from context, or nil when unauthenticated.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns acting user id from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ActorID
	}
	return ""
}

// GetTenantKey returns the bound tenant key from context or empty string.
func GetTenantKey(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.TenantKey
	}
	return ""
}
