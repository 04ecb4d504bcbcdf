package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"time"

	domainauth "github.com/reportable/reportgen/internal/domain/auth"
	"github.com/reportable/reportgen/internal/ports"
)

// Ensure compile-time conformance to ports.
var _ ports.PrincipalResolver = (*MockPrincipalResolver)(nil)

// MockPrincipalResolver resolves credentials from a fixed table for tests.
type MockPrincipalResolver struct {
	ResolveFunc func(ctx context.Context, credential string) (domainauth.Principal, error)

	// Principals maps accepted credentials to the principal each resolves to.
	Principals map[string]domainauth.Principal

	mu    sync.Mutex
	calls []string
}

// NewMockPrincipalResolver creates a resolver accepting one default credential.
func NewMockPrincipalResolver() *MockPrincipalResolver {
	return &MockPrincipalResolver{
		Principals: map[string]domainauth.Principal{
			"mock-token": {
				OwnerID:   "mock-user-1",
				Subject:   "mock-user-1",
				Email:     "mock.user@example.com",
				Source:    domainauth.SourceBearer,
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
	}
}

func (m *MockPrincipalResolver) Resolve(
	ctx context.Context,
	credential string,
) (domainauth.Principal, error) {
	m.mu.Lock()
	m.calls = append(m.calls, credential)
	m.mu.Unlock()

	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, credential)
	}

	p, ok := m.Principals[credential]
	if !ok {
		return domainauth.Principal{}, ErrRejected
	}
	return p, nil
}

// Calls returns a copy of the credentials presented so far.
func (m *MockPrincipalResolver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// ErrRejected is returned by mocks when a credential is not accepted.
type rejectedError struct{}

func (rejectedError) Error() string { return "credential rejected" }

var ErrRejected error = rejectedError{}
