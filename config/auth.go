package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the API.
type AuthMode string

const (
	// AuthModeOIDC verifies Authorization bearer tokens against an OIDC issuer.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev accepts configured API keys (for development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, dev)", v)
	}
}

// OIDCConfig contains bearer-token verifier configuration.
type OIDCConfig struct {
	// IssuerURL is the OIDC issuer; discovery runs against it at startup.
	IssuerURL string `env:"ISSUER_URL"`

	// ClientID is the audience expected on presented tokens.
	ClientID string `env:"CLIENT_ID" envDefault:"reportgen"`

	// OwnerClaim names the token claim used as the owner key.
	OwnerClaim string `env:"OWNER_CLAIM" envDefault:"sub"`
}

// DevAuthConfig controls the development API-key resolver.
// Used when AUTH_MODE=dev; each key maps to one owner.
type DevAuthConfig struct {
	// Keys is a semicolon-separated list of key=owner pairs.
	Keys []string `env:"KEYS" envDefault:"dev-key=dev-user" envSeparator:";"`
}

// KeyOwners parses Keys into a key-to-owner map. Malformed pairs are
// reported rather than dropped so a typo never silently locks a key out.
func (d *DevAuthConfig) KeyOwners() (map[string]string, error) {
	owners := make(map[string]string, len(d.Keys))
	for _, pair := range d.Keys {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, owner, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" || strings.TrimSpace(owner) == "" {
			return nil, fmt.Errorf("invalid dev auth key pair %q (want key=owner)", pair)
		}
		owners[strings.TrimSpace(key)] = strings.TrimSpace(owner)
	}
	return owners, nil
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which principal resolver the API uses.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// TrustedProxyHeader names a header whose value is accepted as the owner
	// key without verification. Only for deployments behind an authenticating
	// proxy; empty disables it.
	TrustedProxyHeader string `env:"AUTH_TRUSTED_PROXY_HEADER"`
}
