package driven

import "context"

// OAuthProvider performs the direct OAuth 2.0 + PKCE flow against a calendar
// provider, independent of the connection broker.
type OAuthProvider interface {
	// BuildAuthURL constructs the provider authorization URL.
	// codeChallenge may be empty when PKCE is not requested.
	BuildAuthURL(clientID, redirectURI, state, codeChallenge string, scopes []string) string

	// ExchangeCode exchanges an authorization code for tokens.
	// codeVerifier is appended only when the attempt used PKCE.
	ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI, codeVerifier string) (*OAuthToken, error)

	// RefreshToken refreshes an expired access token.
	RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*OAuthToken, error)

	// GetUserInfo fetches the authenticated account's identity.
	GetUserInfo(ctx context.Context, accessToken string) (*OAuthUserInfo, error)

	// DefaultScopes returns the scopes requested when none are configured.
	DefaultScopes() []string
}

// OAuthToken represents OAuth tokens returned by a provider.
type OAuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// OAuthUserInfo represents the authenticated identity at the provider.
type OAuthUserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
