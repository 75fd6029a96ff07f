package credentials

// GrantType identifies the token endpoint grant being exchanged
type GrantType string

const (
	// GrantAuthorizationCode exchanges a login code for an access/refresh token pair
	GrantAuthorizationCode GrantType = "authorization_code"

	// GrantRefreshToken exchanges the refresh token for a renewed access token
	GrantRefreshToken GrantType = "refresh_token"
)

// AuthorizationRequest carries the caller-supplied redirect and opaque state
// from the authorization start request.
type AuthorizationRequest struct {
	ClientID    string // Accepted but never validated
	RedirectURI string
	State       string
}

// PendingAuthorization is the single in-flight authorization held by a Store
type PendingAuthorization struct {
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state"`
	Code        string `json:"code,omitempty"` // Empty until CompleteLogin issues one
}

// TokenGrant is one token endpoint request. Only the field matching Type is consulted.
type TokenGrant struct {
	Type         GrantType
	Code         string
	RefreshToken string
}

// TokenPair is the static credential pair handed out for the lifetime of the process
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenResponse represents the OAuth2 token endpoint response
type TokenResponse struct {
	TokenType    string `json:"token_type"`              // Always "Bearer"
	AccessToken  string `json:"access_token"`            // The static access token
	RefreshToken string `json:"refresh_token,omitempty"` // Only on authorization_code grants
	ExpiresIn    int    `json:"expires_in"`              // Token validity in seconds
}
