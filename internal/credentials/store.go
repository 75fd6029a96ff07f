package credentials

import (
	"context"
	"sync"
)

// Store defines the interface for credential state storage.
// A Store holds at most one pending authorization at a time.
type Store interface {
	// SavePending replaces any pending authorization with the given one
	SavePending(ctx context.Context, pending *PendingAuthorization) error

	// GetPending returns the pending authorization, or nil if none exists
	GetPending(ctx context.Context) (*PendingAuthorization, error)

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error
}

// MemoryStore keeps the pending authorization in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	pending *PendingAuthorization
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SavePending stores a copy of the pending authorization
func (s *MemoryStore) SavePending(ctx context.Context, pending *PendingAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pending == nil {
		s.pending = nil
		return nil
	}
	p := *pending
	s.pending = &p
	return nil
}

// GetPending returns a copy of the pending authorization
func (s *MemoryStore) GetPending(ctx context.Context) (*PendingAuthorization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pending == nil {
		return nil, nil
	}
	p := *s.pending
	return &p, nil
}

// CheckHealth always succeeds for the in-memory store
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
