package devauth

// Package devauth resolves static API keys for local development.

import (
	"context"
	"errors"
	"fmt"

	domainauth "github.com/reportable/reportgen/internal/domain/auth"
	"github.com/reportable/reportgen/internal/ports"
)

var _ ports.PrincipalResolver = (*Resolver)(nil)

// ErrUnknownKey is returned when a presented API key is not configured.
var ErrUnknownKey = errors.New("dev auth: unknown API key")

// Config controls the dev key resolver behavior.
type Config struct {
	// KeyOwners maps each accepted API key to the owner it authenticates as.
	KeyOwners map[string]string
}

// Resolver implements ports.PrincipalResolver for X-API-Key credentials.
// It never consults an identity provider and is only wired in dev mode.
type Resolver struct {
	owners map[string]string
}

// NewResolver constructs a dev key resolver from Config.
func NewResolver(cfg Config) (*Resolver, error) {
	if len(cfg.KeyOwners) == 0 {
		return nil, errors.New("dev auth: at least one API key is required")
	}
	owners := make(map[string]string, len(cfg.KeyOwners))
	for key, owner := range cfg.KeyOwners {
		if key == "" {
			return nil, errors.New("dev auth: API key must be non-empty")
		}
		if owner == "" {
			return nil, fmt.Errorf("dev auth: API key %q has no owner", key)
		}
		owners[key] = owner
	}
	return &Resolver{owners: owners}, nil
}

// Resolve maps a configured API key to its owner principal.
func (r *Resolver) Resolve(_ context.Context, credential string) (domainauth.Principal, error) {
	owner, ok := r.owners[credential]
	if !ok {
		return domainauth.Principal{}, ErrUnknownKey
	}
	return domainauth.Principal{
		OwnerID: owner,
		Subject: owner,
		Source:  domainauth.SourceAPIKey,
	}, nil
}
