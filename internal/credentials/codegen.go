package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// codePrefix marks issued authorization codes in logs and redirects
const codePrefix = "auth-code-"

// generateSecureCode generates a cryptographically secure random hex code from n random bytes
func generateSecureCode(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// generateAuthorizationCode returns a new opaque authorization code
func generateAuthorizationCode(n int) (string, error) {
	code, err := generateSecureCode(n)
	if err != nil {
		return "", err
	}
	return codePrefix + code, nil
}
