package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoTokens indicates no provider tokens are stored for the user
	ErrNoTokens = errors.New("no tokens stored")

	// ErrNoRefreshToken indicates the stored tokens cannot be refreshed
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrProviderNotFound indicates the calendar provider is not configured
	ErrProviderNotFound = errors.New("provider not found")

	// ErrBrokerUnavailable indicates the connection broker could not be
	// reached or returned malformed data
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrConnectionNotFound indicates no broker connection exists for the user
	ErrConnectionNotFound = errors.New("connection not found")
)

// AuthenticationError indicates an authenticated provider request could not
// be completed because no valid token exists and refresh failed. The user
// must restart the OAuth flow.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	if e.Reason != "" {
		return "authentication failed: " + e.Reason
	}
	return "authentication failed"
}

// TokenExchangeError indicates the provider rejected a code exchange or
// token refresh. Code and Description carry the provider's OAuth error
// fields when present.
type TokenExchangeError struct {
	Code        string
	Description string
}

func (e *TokenExchangeError) Error() string {
	if e.Description != "" {
		return "token exchange failed: " + e.Code + ": " + e.Description
	}
	return "token exchange failed: " + e.Code
}

// ValidationError indicates the broker returned a structurally unusable
// response, e.g. an initiated connection without an id or redirect URL.
// Fatal for the current attempt; not retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Reason
}
