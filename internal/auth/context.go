package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the already-authenticated, tenant-scoped caller. The engine
// trusts it; authentication itself happens upstream.
type Identity struct {
	OrganizationID uuid.UUID
	Subject        string
}

// ContextWithIdentity returns a new context carrying the caller identity.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the caller identity from the context, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey).(Identity)
	if !ok || identity.OrganizationID == uuid.Nil {
		return Identity{}, false
	}
	return identity, true
}

// RequireIdentity returns the caller identity or an error when none is set.
func RequireIdentity(ctx context.Context) (Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, fmt.Errorf("caller identity is required")
	}
	return identity, nil
}
