// Package credentials implements the authorization-code flow and its credential store
package credentials

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTokenExpiry is the access token lifetime advertised in token responses
	DefaultTokenExpiry = time.Hour

	// DefaultCodeBytes is the number of random bytes in an authorization code
	DefaultCodeBytes = 16

	// TokenTypeBearer is the only token type issued
	TokenTypeBearer = "Bearer"
)

// Flow manages the single-tenant authorization-code grant.
//
// Start, login completion and grant exchange are serialized by one mutex so
// that two interleaved logins cannot leave the store with one login's code
// bound to the other's redirect target.
type Flow struct {
	mu             sync.Mutex
	store          Store
	tokens         TokenPair
	verifier       GrantVerifier
	tokenExpiry    time.Duration
	codeBytes      int
	singleUseCodes bool
}

// NewFlow creates a new authorization flow over the given store and static token pair
func NewFlow(store Store, tokens TokenPair, opts ...Option) *Flow {
	f := &Flow{
		store:       store,
		tokens:      tokens,
		verifier:    ExactMatch{},
		tokenExpiry: DefaultTokenExpiry,
		codeBytes:   DefaultCodeBytes,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.codeBytes < DefaultCodeBytes {
		f.codeBytes = DefaultCodeBytes
	}

	return f
}

// StartAuthorization records the redirect target and caller state for a new login.
// Any previously issued code is discarded. The redirect target is not validated.
func (f *Flow) StartAuthorization(ctx context.Context, req AuthorizationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.store.SavePending(ctx, &PendingAuthorization{
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}); err != nil {
		return fmt.Errorf("starting authorization: %w", err)
	}
	return nil
}

// CompleteLogin issues a new authorization code and returns the URL the user
// agent must be redirected to: {redirect}?code={code}&state={state}
func (f *Flow) CompleteLogin(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending, err := f.store.GetPending(ctx)
	if err != nil {
		return "", fmt.Errorf("loading pending authorization: %w", err)
	}
	if pending == nil {
		return "", ErrNoPendingAuthorization
	}

	code, err := generateAuthorizationCode(f.codeBytes)
	if err != nil {
		return "", fmt.Errorf("generating authorization code: %w", err)
	}

	redirect := buildRedirectURL(pending.RedirectURI, code, pending.State)

	pending.Code = code
	if err := f.store.SavePending(ctx, pending); err != nil {
		return "", fmt.Errorf("saving authorization code: %w", err)
	}

	return redirect, nil
}

// ExchangeGrant exchanges an authorization code or refresh token for tokens
func (f *Flow) ExchangeGrant(ctx context.Context, grant TokenGrant) (*TokenResponse, error) {
	switch grant.Type {
	case GrantAuthorizationCode:
		return f.exchangeCode(ctx, grant.Code)
	case GrantRefreshToken:
		if !f.verifier.VerifyRefreshToken(grant.RefreshToken, f.tokens.RefreshToken) {
			return nil, ErrInvalidRefreshToken
		}
		return &TokenResponse{
			TokenType:   TokenTypeBearer,
			AccessToken: f.tokens.AccessToken,
			ExpiresIn:   f.expiresIn(),
		}, nil
	default:
		return nil, ErrUnsupportedGrant
	}
}

// CheckHealth verifies the flow's storage backend is healthy
func (f *Flow) CheckHealth(ctx context.Context) error {
	return f.store.CheckHealth(ctx)
}

func (f *Flow) exchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending, err := f.store.GetPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pending authorization: %w", err)
	}
	if pending == nil || !f.verifier.VerifyCode(code, pending.Code) {
		return nil, ErrInvalidCode
	}

	if f.singleUseCodes {
		pending.Code = ""
		if err := f.store.SavePending(ctx, pending); err != nil {
			return nil, fmt.Errorf("invalidating authorization code: %w", err)
		}
	}

	return &TokenResponse{
		TokenType:    TokenTypeBearer,
		AccessToken:  f.tokens.AccessToken,
		RefreshToken: f.tokens.RefreshToken,
		ExpiresIn:    f.expiresIn(),
	}, nil
}

func (f *Flow) expiresIn() int {
	return int(f.tokenExpiry.Seconds())
}

// buildRedirectURL appends code and state to the caller's redirect target.
// The target is used verbatim, including any query it already carries.
func buildRedirectURL(redirectURI, code, state string) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	return redirectURI + sep + "code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state)
}
