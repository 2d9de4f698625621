// Package context carries request-scoped values: the acting user and trace ids.
package context

import (
	"context"
)

// SystemActor is recorded when an operation runs without an authenticated user.
const SystemActor = "SYSTEM"

// Role names understood by the API layer.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleCashier = "CASHIER"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID   string
	Username string
	BranchID string
	Roles    []string
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns the Actor from context or nil.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns the acting user id or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}

// ActorOrSystem returns the acting user id, or SystemActor when absent.
func ActorOrSystem(ctx context.Context) string {
	if uid := GetActorID(ctx); uid != "" {
		return uid
	}
	return SystemActor
}

// HasRole checks if the actor has any of the given roles.
func HasRole(ctx context.Context, roles ...string) bool {
	a := GetActor(ctx)
	if a == nil {
		return false
	}
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
