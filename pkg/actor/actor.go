// Package actor identifies who performs a stock movement. The ledger
// records the actor's display name as performedBy.
package actor

import (
	"context"
	"fmt"
	"strings"
)

// SystemName is recorded for movements without a human actor.
const SystemName = "System"

// Actor represents the entity performing an action in the system.
type Actor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
}

// DisplayName returns the name recorded on ledger entries
func (a *Actor) DisplayName() string {
	if a == nil {
		return SystemName
	}
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	if a.Email != "" {
		return a.Email
	}
	return SystemName
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.DisplayName(), a.ID)
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// PerformedBy resolves the performedBy value for a ledger entry: an explicit
// value wins, then the context actor, then the system name.
func PerformedBy(ctx context.Context, explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return FromContext(ctx).DisplayName()
}
