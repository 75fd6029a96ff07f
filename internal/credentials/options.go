package credentials

import (
	"time"
)

// Option configures the authorization flow
type Option func(*Flow)

// WithTokenExpiry sets the expires_in advertised for access tokens
func WithTokenExpiry(d time.Duration) Option {
	return func(f *Flow) {
		f.tokenExpiry = d
	}
}

// WithVerifier replaces the credential comparison used by ExchangeGrant
func WithVerifier(v GrantVerifier) Option {
	return func(f *Flow) {
		f.verifier = v
	}
}

// WithSingleUseCodes clears the pending code after a successful exchange,
// so replaying the same code fails with ErrInvalidCode
func WithSingleUseCodes() Option {
	return func(f *Flow) {
		f.singleUseCodes = true
	}
}

// WithCodeBytes sets the number of random bytes in each authorization code
func WithCodeBytes(n int) Option {
	return func(f *Flow) {
		f.codeBytes = n
	}
}
