package mocks

import (
	"context"
	"net/url"
	"strings"

	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure MockOAuthProvider implements OAuthProvider
var _ driven.OAuthProvider = (*MockOAuthProvider)(nil)

// MockOAuthProvider is a fake OAuthProvider for testing.
// Behavior is injected through the Fn hooks; unset hooks return canned values.
type MockOAuthProvider struct {
	ExchangeCodeFn func(ctx context.Context, clientID, clientSecret, code, redirectURI, codeVerifier string) (*driven.OAuthToken, error)
	RefreshTokenFn func(ctx context.Context, clientID, clientSecret, refreshToken string) (*driven.OAuthToken, error)
	GetUserInfoFn  func(ctx context.Context, accessToken string) (*driven.OAuthUserInfo, error)
	Scopes         []string
}

// NewMockOAuthProvider creates a new MockOAuthProvider
func NewMockOAuthProvider() *MockOAuthProvider {
	return &MockOAuthProvider{}
}

func (m *MockOAuthProvider) BuildAuthURL(clientID, redirectURI, state, codeChallenge string, scopes []string) string {
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	params.Set("state", state)
	params.Set("scope", strings.Join(scopes, " "))
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
		params.Set("code_challenge_method", "S256")
	}
	return "https://auth.example.com/authorize?" + params.Encode()
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI, codeVerifier string) (*driven.OAuthToken, error) {
	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(ctx, clientID, clientSecret, code, redirectURI, codeVerifier)
	}
	return &driven.OAuthToken{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}, nil
}

func (m *MockOAuthProvider) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*driven.OAuthToken, error) {
	if m.RefreshTokenFn != nil {
		return m.RefreshTokenFn(ctx, clientID, clientSecret, refreshToken)
	}
	return &driven.OAuthToken{
		AccessToken: "refreshed-access",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}, nil
}

func (m *MockOAuthProvider) GetUserInfo(ctx context.Context, accessToken string) (*driven.OAuthUserInfo, error) {
	if m.GetUserInfoFn != nil {
		return m.GetUserInfoFn(ctx, accessToken)
	}
	return &driven.OAuthUserInfo{
		ID:    "account-1",
		Email: "user@example.com",
	}, nil
}

func (m *MockOAuthProvider) DefaultScopes() []string {
	if len(m.Scopes) > 0 {
		return m.Scopes
	}
	return []string{"calendar.readonly"}
}
