// Package googlecalendar implements the direct OAuth flow and API access
// for Google Calendar.
package googlecalendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

const (
	authEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenEndpoint    = "https://oauth2.googleapis.com/token"
	userinfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Ensure OAuthProvider implements the interface.
var _ driven.OAuthProvider = (*OAuthProvider)(nil)

// OAuthProvider handles OAuth operations for Google Calendar.
type OAuthProvider struct {
	httpClient *http.Client
}

// NewOAuthProvider creates a new Google Calendar OAuth provider.
func NewOAuthProvider() *OAuthProvider {
	return &OAuthProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewOAuthProviderWithClient creates a provider with a custom HTTP client (for testing).
func NewOAuthProviderWithClient(client *http.Client) *OAuthProvider {
	return &OAuthProvider{httpClient: client}
}

// DefaultScopes returns the calendar scopes requested by default.
func (p *OAuthProvider) DefaultScopes() []string {
	return []string{
		"https://www.googleapis.com/auth/calendar.events",
		"https://www.googleapis.com/auth/calendar.readonly",
		"openid",
		"email",
	}
}

// BuildAuthURL constructs the Google OAuth authorization URL.
// access_type=offline and prompt=consent make Google return a refresh token.
func (p *OAuthProvider) BuildAuthURL(clientID, redirectURI, state, codeChallenge string, scopes []string) string {
	params := url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
		"state":         {state},
		"scope":         {strings.Join(scopes, " ")},
		"response_type": {"code"},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
		params.Set("code_challenge_method", "S256")
	}
	return authEndpoint + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *OAuthProvider) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI, codeVerifier string) (*driven.OAuthToken, error) {
	params := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
	}
	if codeVerifier != "" {
		params.Set("code_verifier", codeVerifier)
	}

	return p.requestToken(ctx, params)
}

// RefreshToken refreshes an expired access token.
// Google omits refresh_token from refresh responses; the caller carries the
// previous one forward.
func (p *OAuthProvider) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*driven.OAuthToken, error) {
	params := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	return p.requestToken(ctx, params)
}

func (p *OAuthProvider) requestToken(ctx context.Context, params url.Values) (*driven.OAuthToken, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", tokenEndpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Error        string `json:"error"`
		ErrorDesc    string `json:"error_description"`
	}

	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		if tokenResp.Error != "" {
			return nil, fmt.Errorf("oauth error: %s - %s", tokenResp.Error, tokenResp.ErrorDesc)
		}
		return nil, fmt.Errorf("token request failed: %s", string(body))
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &driven.OAuthToken{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Scope:        tokenResp.Scope,
		ExpiresIn:    tokenResp.ExpiresIn,
	}, nil
}

// GetUserInfo fetches the authenticated account's identity.
func (p *OAuthProvider) GetUserInfo(ctx context.Context, accessToken string) (*driven.OAuthUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", userinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get user info failed: %s", string(body))
	}

	var user struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	return &driven.OAuthUserInfo{
		ID:    user.Sub,
		Name:  user.Name,
		Email: user.Email,
	}, nil
}
