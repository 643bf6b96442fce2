package httpx

import (
	"context"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
)

// identityKey is an unexported context key type to avoid collisions across packages.
type identityKey struct{}

// SetIdentityInContext returns a child context that carries the verified identity.
// If identity is nil, the original ctx is returned unchanged.
func SetIdentityInContext(ctx context.Context, identity *domainauth.Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity attached by RequireSession.
func IdentityFromContext(ctx context.Context) (*domainauth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*domainauth.Identity)
	return id, ok && id != nil
}
