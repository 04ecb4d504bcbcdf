package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; the principal middleware in
// internal/http orchestrates them.

import (
	"context"

	domainauth "github.com/reportable/reportgen/internal/domain/auth"
)

// PrincipalResolver resolves a presented credential to a principal. The
// credential shape depends on the rule that extracted it: a raw bearer token,
// an API key, or a proxy-asserted owner. Any error means the credential is
// rejected; callers must not distinguish failure causes to the client.
type PrincipalResolver interface {
	Resolve(ctx context.Context, credential string) (domainauth.Principal, error)
}
