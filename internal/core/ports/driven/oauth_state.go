package driven

import (
	"context"
	"time"
)

// OAuthState represents a pending OAuth authorization attempt.
// Used for CSRF protection and PKCE code verifier storage.
type OAuthState struct {
	// State is a cryptographically random string used for CSRF protection.
	State string

	// UserID is the user who started the attempt. Each user has at most one
	// attempt in flight; saving a new one replaces it.
	UserID string

	// ProviderType is the calendar provider (googlecalendar, outlookcalendar).
	ProviderType string

	// CodeVerifier is the PKCE code verifier (plain text, not hashed).
	// Empty when the attempt was started without PKCE.
	CodeVerifier string

	// RedirectURI is the callback URL where the provider will redirect.
	RedirectURI string

	// CreatedAt is when the attempt was created.
	CreatedAt time.Time

	// ExpiresAt is when the attempt expires (5 minutes after creation).
	// An expired attempt is rejected even if the state token matches.
	ExpiresAt time.Time
}

// OAuthStateStore manages pending authorization attempts.
// Attempts are single-use and expire after a short period.
type OAuthStateStore interface {
	// Save stores a new attempt, replacing any prior in-flight attempt
	// for the same user.
	Save(ctx context.Context, state *OAuthState) error

	// GetAndDelete atomically retrieves and deletes the attempt.
	// This ensures single-use semantics.
	// Returns nil, nil if the attempt doesn't exist or has expired.
	GetAndDelete(ctx context.Context, state string) (*OAuthState, error)

	// Cleanup removes expired attempts.
	// Called periodically to clean up attempts abandoned mid-flow.
	Cleanup(ctx context.Context) error
}
