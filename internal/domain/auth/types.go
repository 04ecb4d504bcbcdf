package auth

// Package auth contains domain-level types for request authentication.
// It is pure and free of framework/adapter concerns.

import "time"

// PrincipalSource identifies which extraction rule resolved a principal.
// Keep string form for easy logging and metric tags.
type PrincipalSource string

const (
	SourceBearer PrincipalSource = "bearer"
	SourceAPIKey PrincipalSource = "api_key"
	SourceProxy  PrincipalSource = "proxy"
)

// Principal is the authenticated caller of an API request.
// Adapters map credential-specific claims into this shape.
type Principal struct {
	OwnerID   string          // owner key scoping every store operation
	Subject   string          // stable identity claim from the credential
	Email     string          // optional, informational only
	Source    PrincipalSource // extraction rule that resolved the principal
	ExpiresAt time.Time       // credential expiry; zero when unbounded
}

// Valid reports whether the principal can scope store operations.
func (p Principal) Valid() bool { return p.OwnerID != "" }
