package csrf

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps tokens in process memory. Expired tokens are pruned on write.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// SaveToken records token until now+expiresIn
func (s *MemoryStore) SaveToken(_ context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, exp := range s.tokens {
		if !now.Before(exp) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = now.Add(expiresIn)
	return nil
}

// ConsumeToken removes token if it is present and unexpired
func (s *MemoryStore) ConsumeToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.tokens[token]
	if !ok {
		return ErrInvalidToken
	}
	delete(s.tokens, token)

	if !s.now().Before(exp) {
		return ErrTokenExpired
	}
	return nil
}

// CheckHealth always succeeds for the memory store
func (s *MemoryStore) CheckHealth(context.Context) error {
	return nil
}
