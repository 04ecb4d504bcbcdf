package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reportable/reportgen/config"
	"github.com/reportable/reportgen/internal/adapters/devauth"
	"github.com/reportable/reportgen/internal/adapters/oidc"
	httpx "github.com/reportable/reportgen/internal/http"
)

// AuthConfig contains configuration for building API auth rules.
type AuthConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// BuildAuthRules creates the ordered auth rule chain for the configured auth
// mode. The API refuses to start on a broken auth configuration; every /api
// route would otherwise reject all callers.
func BuildAuthRules(ctx context.Context, cfg AuthConfig) ([]httpx.AuthRule, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var rules []httpx.AuthRule

	switch cfg.Auth.Mode {
	case config.AuthModeOIDC:
		rule, err := buildBearerRule(ctx, cfg.Auth.OIDC)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)

	case config.AuthModeDev:
		rule, err := buildDevKeyRule(cfg.Auth.DevAuth)
		if err != nil {
			return nil, err
		}
		logger.Warn("dev auth mode enabled; static API keys accepted")
		rules = append(rules, rule)

	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", cfg.Auth.Mode)
	}

	// Trusted proxy identities rank below explicit credentials.
	if header := cfg.Auth.TrustedProxyHeader; header != "" {
		logger.Info("trusted proxy header enabled", "header", header)
		rules = append(rules, httpx.ProxyRule(header))
	}

	return rules, nil
}

func buildBearerRule(ctx context.Context, cfg config.OIDCConfig) (httpx.AuthRule, error) {
	if cfg.IssuerURL == "" {
		return httpx.AuthRule{}, errors.New("OIDC issuer URL is required when AUTH_MODE=oidc")
	}

	verifier, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
		IssuerURL:  cfg.IssuerURL,
		ClientID:   cfg.ClientID,
		OwnerClaim: cfg.OwnerClaim,
	})
	if err != nil {
		return httpx.AuthRule{}, fmt.Errorf("create oidc verifier: %w", err)
	}

	return httpx.BearerRule(verifier), nil
}

func buildDevKeyRule(cfg config.DevAuthConfig) (httpx.AuthRule, error) {
	owners, err := cfg.KeyOwners()
	if err != nil {
		return httpx.AuthRule{}, fmt.Errorf("parse dev auth keys: %w", err)
	}

	resolver, err := devauth.NewResolver(devauth.Config{KeyOwners: owners})
	if err != nil {
		return httpx.AuthRule{}, fmt.Errorf("create dev auth resolver: %w", err)
	}

	return httpx.APIKeyRule(resolver), nil
}
