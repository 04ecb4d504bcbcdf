package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/reportable/reportgen/internal/domain/auth"
	"github.com/reportable/reportgen/internal/ports"
)

// AuthRule pairs a credential extractor with the resolver that validates it.
// Rules are evaluated in declaration order; the first rule whose credential is
// present on the request handles it and no later rule runs. A matched rule
// that fails to resolve is a 401, never a fallthrough.
type AuthRule struct {
	Name     string
	Extract  func(r *http.Request) (credential string, ok bool)
	Resolver ports.PrincipalResolver
}

// BearerRule matches Authorization bearer tokens.
func BearerRule(resolver ports.PrincipalResolver) AuthRule {
	return AuthRule{
		Name: "bearer",
		Extract: func(r *http.Request) (string, bool) {
			header := r.Header.Get("Authorization")
			if header == "" {
				return "", false
			}
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				return "", false
			}
			token = strings.TrimSpace(token)
			return token, token != ""
		},
		Resolver: resolver,
	}
}

// APIKeyRule matches the X-API-Key header.
func APIKeyRule(resolver ports.PrincipalResolver) AuthRule {
	return AuthRule{
		Name: "api_key",
		Extract: func(r *http.Request) (string, bool) {
			key := strings.TrimSpace(r.Header.Get("X-API-Key"))
			return key, key != ""
		},
		Resolver: resolver,
	}
}

// ProxyRule trusts an upstream authenticating proxy to supply the owner id in
// the named header. Only wire this when the proxy strips the header from
// client traffic.
func ProxyRule(header string) AuthRule {
	return AuthRule{
		Name: "proxy",
		Extract: func(r *http.Request) (string, bool) {
			owner := strings.TrimSpace(r.Header.Get(header))
			return owner, owner != ""
		},
		Resolver: proxyResolver{},
	}
}

// proxyResolver treats the extracted credential as a pre-authenticated owner id.
type proxyResolver struct{}

func (proxyResolver) Resolve(_ context.Context, credential string) (domainauth.Principal, error) {
	return domainauth.Principal{
		OwnerID: credential,
		Subject: credential,
		Source:  domainauth.SourceProxy,
	}, nil
}

// RequirePrincipal returns a middleware that authenticates requests against
// the given rules. The resolution failure cause is logged but never written to
// the client; every rejection is the same 401.
func RequirePrincipal(rules []AuthRule, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, rule := range rules {
				credential, ok := rule.Extract(r)
				if !ok {
					continue
				}

				principal, err := rule.Resolver.Resolve(r.Context(), credential)
				if err != nil || !principal.Valid() {
					if err != nil && logger != nil {
						logger.DebugContext(r.Context(), "credential rejected",
							slog.String("rule", rule.Name),
							slog.Any("error", err),
						)
					}
					writeUnauthorized(w)
					return
				}

				ctx := SetPrincipalInContext(r.Context(), principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			writeUnauthorized(w)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_required",
		Err:     errors.New("authentication required"),
	})
}
