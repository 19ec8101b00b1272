package driven

import (
	"context"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// TokenProvider yields a valid provider access token for one user.
// Calendar API clients use this instead of touching the token store directly.
type TokenProvider interface {
	// GetAccessToken returns a valid access token, refreshing an expired
	// one first.
	GetAccessToken(ctx context.Context) (string, error)

	// ForceRefresh discards the current access token and refreshes.
	// Used after a 401 from the provider; callers retry exactly once.
	ForceRefresh(ctx context.Context) (string, error)

	// IsValid checks if a token exists and is unexpired at call time.
	IsValid(ctx context.Context) bool
}

// TokenRefresher handles OAuth token refresh operations.
// Implemented by the token lifecycle service; a failed refresh clears the
// stored record entirely so no partial token state survives.
type TokenRefresher interface {
	// Refresh refreshes the user's tokens and persists the merged record.
	// Returns domain.ErrNoRefreshToken when refresh is impossible.
	Refresh(ctx context.Context, record *domain.TokenRecord) (*domain.TokenRecord, error)
}

// Ensure OAuthTokenProvider implements TokenProvider
var _ TokenProvider = (*OAuthTokenProvider)(nil)

// OAuthTokenProvider implements TokenProvider on top of the token store and
// a refresher. The store is consulted on every call so refreshes performed
// elsewhere are picked up.
type OAuthTokenProvider struct {
	userID    string
	store     TokenStore
	refresher TokenRefresher
}

// NewOAuthTokenProvider creates a token provider for one user's OAuth tokens.
func NewOAuthTokenProvider(userID string, store TokenStore, refresher TokenRefresher) *OAuthTokenProvider {
	return &OAuthTokenProvider{
		userID:    userID,
		store:     store,
		refresher: refresher,
	}
}

// GetAccessToken returns a valid access token, refreshing if needed.
func (p *OAuthTokenProvider) GetAccessToken(ctx context.Context) (string, error) {
	record, err := p.store.Get(ctx, p.userID)
	if err != nil {
		return "", err
	}

	if record.NeedsRefresh() {
		record, err = p.refresher.Refresh(ctx, record)
		if err != nil {
			return "", err
		}
	}

	return record.AccessToken, nil
}

// ForceRefresh refreshes regardless of the recorded expiry.
func (p *OAuthTokenProvider) ForceRefresh(ctx context.Context) (string, error) {
	record, err := p.store.Get(ctx, p.userID)
	if err != nil {
		return "", err
	}

	record, err = p.refresher.Refresh(ctx, record)
	if err != nil {
		return "", err
	}

	return record.AccessToken, nil
}

// IsValid checks if a token exists and has not expired.
// Expiry is evaluated at call time, never cached.
func (p *OAuthTokenProvider) IsValid(ctx context.Context) bool {
	record, err := p.store.Get(ctx, p.userID)
	if err != nil {
		return false
	}
	return record.AccessToken != "" && !record.IsExpired()
}
