package auth

import (
	"context"

	"github.com/isharee/backend/internal/models"
)

// Identity is the caller resolved from a verified token. It is attached to
// the request context by the auth gate and consumed by downstream handlers.
type Identity struct {
	UserID string
	Email  string
	Role   models.Role
}

type ctxKey string

const identityKey ctxKey = "identity"

// WithIdentity stores the resolved identity on the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil || identity.UserID == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached to the request, if any.
// The second return is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok && identity.UserID != ""
}
