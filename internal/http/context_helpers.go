package httpx

import (
	"context"

	domainauth "github.com/reportable/reportgen/internal/domain/auth"
)

// principalKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type principalKey struct{}

// SetPrincipalInContext returns a child context that carries the given principal.
// Invalid principals are not stored and the original ctx is returned unchanged.
func SetPrincipalInContext(ctx context.Context, p domainauth.Principal) context.Context {
	if !p.Valid() {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal from context and a
// boolean indicating presence.
func PrincipalFromContext(ctx context.Context) (domainauth.Principal, bool) {
	if p, ok := ctx.Value(principalKey{}).(domainauth.Principal); ok && p.Valid() {
		return p, true
	}
	return domainauth.Principal{}, false
}

// OwnerFromContext returns the authenticated owner id, or empty string when
// the request carries no principal.
func OwnerFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.OwnerID
}
