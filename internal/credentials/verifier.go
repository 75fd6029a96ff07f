package credentials

import "crypto/subtle"

// GrantVerifier decides whether a presented credential matches the expected one
type GrantVerifier interface {
	// VerifyCode reports whether presented is the pending authorization code
	VerifyCode(presented, pending string) bool

	// VerifyRefreshToken reports whether presented is the configured refresh token
	VerifyRefreshToken(presented, expected string) bool
}

// ExactMatch accepts a credential iff it is byte-for-byte equal to the expected value.
// An empty expected value never matches.
type ExactMatch struct{}

// VerifyCode implements GrantVerifier
func (ExactMatch) VerifyCode(presented, pending string) bool {
	return equal(presented, pending)
}

// VerifyRefreshToken implements GrantVerifier
func (ExactMatch) VerifyRefreshToken(presented, expected string) bool {
	return equal(presented, expected)
}

func equal(presented, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
