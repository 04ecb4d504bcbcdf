package oidc

// Package oidc verifies bearer tokens against an OIDC identity provider.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/reportable/reportgen/internal/domain/auth"
	"github.com/reportable/reportgen/internal/ports"
	"golang.org/x/oauth2"
)

var _ ports.PrincipalResolver = (*Verifier)(nil)

// Verifier resolves Authorization bearer tokens into principals.
// Tokens are checked against the issuer's published signing keys, so a
// Verifier needs one discovery fetch at construction and none per request.
type Verifier struct {
	verifier   *gooidc.IDTokenVerifier
	ownerClaim string
}

// VerifierConfig holds configuration for the token verifier.
type VerifierConfig struct {
	IssuerURL  string
	ClientID   string
	OwnerClaim string       // claim carrying the owner identifier, default "sub"
	HTTPClient *http.Client // Optional, defaults to a 30s timeout client
}

// NewVerifier runs OIDC discovery against the issuer and builds a Verifier.
func NewVerifier(ctx context.Context, config VerifierConfig) (*Verifier, error) {
	if config.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	ownerClaim := config.OwnerClaim
	if ownerClaim == "" {
		ownerClaim = "sub"
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// Accept either the bare issuer URL or a full discovery URL.
	issuer := strings.TrimSuffix(config.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Verifier{
		verifier:   op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		ownerClaim: ownerClaim,
	}, nil
}

// Resolve verifies a raw bearer token and maps its claims to a principal.
func (v *Verifier) Resolve(ctx context.Context, credential string) (domainauth.Principal, error) {
	if credential == "" {
		return domainauth.Principal{}, errors.New("bearer token is required")
	}

	idTok, err := v.verifier.Verify(ctx, credential)
	if err != nil {
		return domainauth.Principal{}, fmt.Errorf("verify token: %w", err)
	}

	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.Principal{}, fmt.Errorf("parse token claims: %w", claimsErr)
	}

	return principalFromClaims(claims, idTok.Subject, idTok.Expiry, v.ownerClaim)
}

// principalFromClaims maps verified token claims into a principal.
// The owner claim must be present and non-empty; everything else is optional.
func principalFromClaims(
	claims map[string]any,
	subject string,
	expiry time.Time,
	ownerClaim string,
) (domainauth.Principal, error) {
	owner := claimString(claims, ownerClaim)
	if ownerClaim == "sub" {
		owner = firstNonEmpty(owner, subject)
	}
	if owner == "" {
		return domainauth.Principal{}, fmt.Errorf("token missing %q claim", ownerClaim)
	}

	return domainauth.Principal{
		OwnerID:   owner,
		Subject:   subject,
		Email:     firstNonEmpty(claimString(claims, "email"), claimString(claims, "mail")),
		Source:    domainauth.SourceBearer,
		ExpiresAt: expiry,
	}, nil
}

// claimString returns the named claim when it is a non-empty string.
func claimString(claims map[string]any, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
