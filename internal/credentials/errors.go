package credentials

import (
	"errors"
	"fmt"
)

// Errors returned by the authorization flow
var (
	// ErrInvalidGrant indicates the presented code or refresh token did not match
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrInvalidCode indicates an authorization code that is not the pending code
	ErrInvalidCode = fmt.Errorf("%w: authorization code mismatch", ErrInvalidGrant)

	// ErrInvalidRefreshToken indicates a refresh token that is not the configured one
	ErrInvalidRefreshToken = fmt.Errorf("%w: refresh token mismatch", ErrInvalidGrant)

	// ErrUnsupportedGrant indicates a grant_type other than authorization_code or refresh_token
	ErrUnsupportedGrant = errors.New("unsupported grant type")

	// ErrNoPendingAuthorization indicates CompleteLogin was called before StartAuthorization
	ErrNoPendingAuthorization = errors.New("no authorization in progress")
)
