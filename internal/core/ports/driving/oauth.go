package driving

import (
	"context"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// OAuthService handles the direct OAuth flow against a calendar provider.
// It manages the authorization attempt, token exchange, refresh and sign-out
// of the stored provider tokens.
type OAuthService interface {
	// Authorize starts an OAuth authorization attempt for a user.
	// Any prior in-flight attempt for the user is replaced.
	// Returns an authorization URL to redirect the user to.
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)

	// Callback handles the OAuth redirect from the provider.
	// It validates state, exchanges the code for tokens and persists them.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error)

	// RefreshTokens refreshes the user's provider tokens.
	// Returns nil, nil when refresh failed; in that case all stored tokens
	// have been cleared and the user must restart the flow.
	RefreshTokens(ctx context.Context, userID string) (*domain.TokenSummary, error)

	// IsAuthenticated reports whether a live (unexpired) token exists.
	IsAuthenticated(ctx context.Context, userID string) bool

	// ClearTokens removes the user's stored provider tokens.
	ClearTokens(ctx context.Context, userID string) error
}

// AuthorizeRequest represents a request to start an OAuth flow.
// @Description Request to start OAuth authorization flow
type AuthorizeRequest struct {
	// UserID is the user starting the flow. Filled from the auth context.
	UserID string `json:"-"`

	// ProviderType is the calendar provider (googlecalendar, outlookcalendar).
	ProviderType domain.ProviderType `json:"provider_type" example:"googlecalendar"`

	// UsePKCE requests a PKCE-bound authorization code (S256).
	UsePKCE bool `json:"use_pkce" example:"true"`
}

// AuthorizeResponse contains the authorization URL and state.
// @Description Response containing the OAuth authorization URL
type AuthorizeResponse struct {
	// AuthorizationURL is the URL to redirect the user to for authorization.
	AuthorizationURL string `json:"authorization_url" example:"https://accounts.google.com/o/oauth2/v2/auth?client_id=..."`

	// State is the CSRF token that will be returned in the callback.
	State string `json:"state" example:"abc123xyz"`

	// ExpiresAt is when the authorization attempt expires (5 minutes).
	ExpiresAt string `json:"expires_at" example:"2024-01-15T10:05:00Z"`
}

// CallbackRequest represents the OAuth callback from the provider.
// @Description OAuth callback parameters from provider redirect
type CallbackRequest struct {
	// Code is the authorization code from the provider.
	Code string `json:"code" example:"abc123"`

	// State is the CSRF token returned by the provider.
	State string `json:"state" example:"abc123xyz"`

	// Error is set if the provider returned an error.
	Error string `json:"error,omitempty" example:"access_denied"`

	// ErrorDescription provides details about the error.
	ErrorDescription string `json:"error_description,omitempty" example:"The user denied access"`
}

// CallbackResponse contains the result of the OAuth callback.
// @Description Response after successful OAuth authorization
type CallbackResponse struct {
	// Token is a safe summary of the stored token record.
	Token *domain.TokenSummary `json:"token"`

	// Message provides a human-readable status message.
	Message string `json:"message" example:"Successfully connected Google Calendar as user@example.com"`
}

// OAuthError represents an OAuth-specific error.
// Every OAuthError is terminal for the current attempt: the user must
// restart authorization.
type OAuthError struct {
	Code        string `json:"error" example:"invalid_state"`
	Description string `json:"error_description" example:"The state parameter is invalid or expired"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Common OAuth errors
var (
	ErrOAuthInvalidState     = &OAuthError{Code: "invalid_state", Description: "The state parameter is invalid or expired"}
	ErrOAuthMissingCode      = &OAuthError{Code: "missing_code", Description: "The callback did not include an authorization code"}
	ErrOAuthProviderNotFound = &OAuthError{Code: "provider_not_found", Description: "The provider is not configured"}
	ErrOAuthProviderDisabled = &OAuthError{Code: "provider_disabled", Description: "The provider is not enabled"}
	ErrOAuthExchangeFailed   = &OAuthError{Code: "exchange_failed", Description: "Failed to exchange authorization code for tokens"}
	ErrOAuthUserInfoFailed   = &OAuthError{Code: "user_info_failed", Description: "Failed to fetch user information"}
)
