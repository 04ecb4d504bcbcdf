package auth

import (
	"testing"
	"time"
)

func TestPrincipal_Valid(t *testing.T) {
	p := Principal{OwnerID: "owner-1", Source: SourceBearer}
	if !p.Valid() {
		t.Fatalf("expected valid principal")
	}
	if (Principal{Subject: "sub-only"}).Valid() {
		t.Fatalf("did not expect principal without an owner to be valid")
	}
}

func TestPrincipal_SimpleFields(t *testing.T) {
	p := Principal{OwnerID: "o", Email: "e", ExpiresAt: time.Now().Add(time.Hour)}
	if p.OwnerID != "o" || p.Email != "e" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}
