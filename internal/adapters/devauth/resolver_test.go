package devauth

import (
	"context"
	"errors"
	"testing"

	domainauth "github.com/reportable/reportgen/internal/domain/auth"
)

func TestResolver_Resolve(t *testing.T) {
	r, err := NewResolver(Config{KeyOwners: map[string]string{
		"alpha-key": "owner-a",
		"beta-key":  "owner-b",
	}})
	if err != nil {
		t.Fatalf("NewResolver error: %v", err)
	}

	p, err := r.Resolve(context.Background(), "alpha-key")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if p.OwnerID != "owner-a" || p.Subject != "owner-a" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if p.Source != domainauth.SourceAPIKey {
		t.Fatalf("unexpected source: %s", p.Source)
	}
	if !p.Valid() {
		t.Fatal("resolved principal should be valid")
	}
}

func TestResolver_Resolve_UnknownKey(t *testing.T) {
	r, err := NewResolver(Config{KeyOwners: map[string]string{"alpha-key": "owner-a"}})
	if err != nil {
		t.Fatalf("NewResolver error: %v", err)
	}

	if _, err := r.Resolve(context.Background(), "missing-key"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), ""); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey for empty credential, got %v", err)
	}
}

func TestNewResolver_Validation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "no keys", cfg: Config{}},
		{name: "empty key", cfg: Config{KeyOwners: map[string]string{"": "owner-a"}}},
		{name: "empty owner", cfg: Config{KeyOwners: map[string]string{"alpha-key": ""}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewResolver(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
