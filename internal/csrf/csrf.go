// Package csrf issues and checks single-use tokens for the login form
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FieldName is the form field carrying the token
const FieldName = "csrf_token"

// DefaultExpiry is how long an issued token remains usable
const DefaultExpiry = 15 * time.Minute

var (
	// ErrInvalidToken indicates a missing, forged or already used token
	ErrInvalidToken = errors.New("invalid csrf token")

	// ErrTokenExpired indicates the token outlived its expiry
	ErrTokenExpired = errors.New("csrf token expired")
)

// Store records issued tokens until they are consumed or expire
type Store interface {
	// SaveToken records token for expiresIn
	SaveToken(ctx context.Context, token string, expiresIn time.Duration) error

	// ConsumeToken removes token, failing if it was never issued or has expired
	ConsumeToken(ctx context.Context, token string) error

	// CheckHealth verifies the store is operational
	CheckHealth(ctx context.Context) error
}

// Manager signs tokens with an HMAC secret and tracks them in a Store
type Manager struct {
	store     Store
	secret    []byte
	expiresIn time.Duration
}

// NewManager creates a token manager. A non-positive expiresIn uses DefaultExpiry.
func NewManager(store Store, secret []byte, expiresIn time.Duration) *Manager {
	if expiresIn <= 0 {
		expiresIn = DefaultExpiry
	}
	return &Manager{
		store:     store,
		secret:    secret,
		expiresIn: expiresIn,
	}
}

// Issue creates, signs and records a new token
func (m *Manager) Issue(ctx context.Context) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	nonce := base64.RawURLEncoding.EncodeToString(raw)
	token := nonce + "." + base64.RawURLEncoding.EncodeToString(m.sign(nonce))

	if err := m.store.SaveToken(ctx, token, m.expiresIn); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and consumes the token. A token verifies at most once.
func (m *Manager) Verify(ctx context.Context, token string) error {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" || sig == "" {
		return ErrInvalidToken
	}

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(m.sign(nonce), got) {
		return ErrInvalidToken
	}

	if err := m.store.ConsumeToken(ctx, token); err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	return nil
}

// CheckHealth verifies the token store is operational
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("csrf store health check failed: %w", err)
	}
	return nil
}

func (m *Manager) sign(nonce string) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(nonce))
	return h.Sum(nil)
}
