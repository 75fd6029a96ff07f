package credentials

import (
	"context"
	"errors"
)

// errStoreUnhealthy indicates the store is not available
var errStoreUnhealthy = errors.New("store unhealthy")

// mockStore implements Store for testing and can be switched to a failing state
type mockStore struct {
	pending *PendingAuthorization
	saves   int
	healthy bool
}

func newMockStore() *mockStore {
	return &mockStore{healthy: true}
}

func (m *mockStore) SavePending(ctx context.Context, pending *PendingAuthorization) error {
	if !m.healthy {
		return errStoreUnhealthy
	}
	m.saves++
	if pending == nil {
		m.pending = nil
		return nil
	}
	p := *pending
	m.pending = &p
	return nil
}

func (m *mockStore) GetPending(ctx context.Context) (*PendingAuthorization, error) {
	if !m.healthy {
		return nil, errStoreUnhealthy
	}
	if m.pending == nil {
		return nil, nil
	}
	p := *m.pending
	return &p, nil
}

func (m *mockStore) CheckHealth(ctx context.Context) error {
	if !m.healthy {
		return errStoreUnhealthy
	}
	return nil
}

var testTokens = TokenPair{
	AccessToken:  "fake-access-token-12345",
	RefreshToken: "fake-refresh-token-67890",
}
