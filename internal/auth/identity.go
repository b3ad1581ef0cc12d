package auth

import (
	"context"
	"time"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

type ctxKeyIdentity struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

// IdentityFrom extracts the request identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
