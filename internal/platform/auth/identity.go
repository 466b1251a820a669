package auth

import "context"

// Identity describes the caller as asserted by the API gateway. Token
// verification happens upstream; this service trusts the forwarded headers.
type Identity struct {
	UID   string
	Admin bool
}

type identityContextKey struct{}

// WithIdentity stores the caller identity on the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the caller identity when one was forwarded.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || identity.UID == "" {
		return Identity{}, false
	}
	return identity, true
}

// CanAccessUser reports whether the caller may read resources owned by the
// given user: the owner themselves or any admin.
func CanAccessUser(ctx context.Context, userID string) bool {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	return identity.Admin || identity.UID == userID
}
