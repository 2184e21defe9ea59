package core

import (
	"context"
	"sync"
	"time"

	"stockbrief/internal/types"
)

// --- MockAuthenticator ---

// MockAuthenticator implements the Authenticator interface for testing.
// It returns a predefined identity, or a fixed error to simulate
// authentication failures.
//
// Usage:
//
//	mock := &MockAuthenticator{
//	    Identity: &types.UserIdentity{ID: "user-123", Email: "a@example.com"},
//	}
//
// To simulate an expired token:
//
//	mock := &MockAuthenticator{
//	    Err: types.NewAppError(types.ErrCodeAuthTokenExpired, "expired", nil),
//	}
type MockAuthenticator struct {
	// Identity is returned on success. If nil and Err is nil, ResolveToken
	// returns (nil, nil).
	Identity *types.UserIdentity

	// Err is returned by ResolveToken. When set, Identity is ignored.
	Err error

	// ResolveTokenFunc overrides the default behavior when set.
	ResolveTokenFunc func(ctx context.Context, token string) (*types.UserIdentity, error)

	mu sync.Mutex

	// Calls records every token passed to ResolveToken.
	Calls []string
}

// ResolveToken implements Authenticator.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.UserIdentity, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Identity, nil
}

// --- MockAdminKeyChecker ---

// MockAdminKeyChecker implements AdminKeyChecker with a plaintext key.
// An empty Key means admin access is disabled.
type MockAdminKeyChecker struct {
	Key string
}

// Enabled implements AdminKeyChecker.
func (m *MockAdminKeyChecker) Enabled() bool { return m.Key != "" }

// Verify implements AdminKeyChecker.
func (m *MockAdminKeyChecker) Verify(key string) error {
	if key == "" || key != m.Key {
		return types.NewAppError(types.ErrCodeAuthAdminKey, "invalid admin key", nil)
	}
	return nil
}

// --- MockMetricsCollector ---

// MockMetricsCollector records RecordRequest calls.
type MockMetricsCollector struct {
	mu    sync.Mutex
	Calls []RequestMetric
}

// RequestMetric is one recorded RecordRequest call.
type RequestMetric struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

// RecordRequest implements MetricsCollector.
func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, RequestMetric{Method: method, Endpoint: endpoint, Status: status, Duration: duration})
}

// Snapshot returns a copy of the recorded calls.
func (m *MockMetricsCollector) Snapshot() []RequestMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RequestMetric, len(m.Calls))
	copy(out, m.Calls)
	return out
}

// --- MockHealthProbe ---

// MockHealthProbe is a HealthProbe with a fixed name and check function.
type MockHealthProbe struct {
	ProbeName string
	CheckFunc func(ctx context.Context) error
}

// Name implements HealthProbe.
func (m *MockHealthProbe) Name() string { return m.ProbeName }

// Check implements HealthProbe.
func (m *MockHealthProbe) Check(ctx context.Context) error {
	if m.CheckFunc == nil {
		return nil
	}
	return m.CheckFunc(ctx)
}

// Compile-time interface assertions.
var (
	_ Authenticator    = (*MockAuthenticator)(nil)
	_ AdminKeyChecker  = (*MockAdminKeyChecker)(nil)
	_ MetricsCollector = (*MockMetricsCollector)(nil)
	_ HealthProbe      = (*MockHealthProbe)(nil)
)
