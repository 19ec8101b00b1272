package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
	"github.com/skej-labs/skej-core/internal/core/ports/driving"
)

// Ensure oauthService implements OAuthService and TokenRefresher
var (
	_ driving.OAuthService  = (*oauthService)(nil)
	_ driven.TokenRefresher = (*oauthService)(nil)
)

// DefaultStateTTL is how long an authorization attempt stays valid.
// Expired attempts are rejected even when the state token matches.
const DefaultStateTTL = 5 * time.Minute

// OAuthServiceConfig holds configuration for the OAuth service.
type OAuthServiceConfig struct {
	// ProviderConfigStore retrieves OAuth app credentials.
	ProviderConfigStore driven.ProviderConfigStore

	// OAuthStateStore manages pending authorization attempts.
	OAuthStateStore driven.OAuthStateStore

	// TokenStore persists provider token records.
	TokenStore driven.TokenStore

	// Providers maps provider types to their OAuth implementations.
	Providers map[domain.ProviderType]driven.OAuthProvider

	// BaseURL is the application base URL for OAuth callbacks.
	// Example: "https://app.example.com" or "http://localhost:3000"
	BaseURL string

	// StateTTL overrides the authorization attempt lifetime.
	StateTTL time.Duration

	// Logger for refresh failures and token clearing.
	Logger *slog.Logger
}

// oauthService implements the direct provider OAuth flow: authorization URL
// construction, callback validation, code exchange, and token refresh.
type oauthService struct {
	providerConfigStore driven.ProviderConfigStore
	oauthStateStore     driven.OAuthStateStore
	tokenStore          driven.TokenStore
	providers           map[domain.ProviderType]driven.OAuthProvider
	baseURL             string
	stateTTL            time.Duration
	logger              *slog.Logger
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(cfg OAuthServiceConfig) driving.OAuthService {
	ttl := cfg.StateTTL
	if ttl == 0 {
		ttl = DefaultStateTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &oauthService{
		providerConfigStore: cfg.ProviderConfigStore,
		oauthStateStore:     cfg.OAuthStateStore,
		tokenStore:          cfg.TokenStore,
		providers:           cfg.Providers,
		baseURL:             cfg.BaseURL,
		stateTTL:            ttl,
		logger:              logger,
	}
}

// Authorize starts an OAuth authorization attempt.
// It generates state (and PKCE credentials when requested), stores the
// attempt, and returns the provider authorization URL. Any prior in-flight
// attempt for the user is replaced.
func (s *oauthService) Authorize(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if req.UserID == "" {
		return nil, domain.ErrInvalidInput
	}

	providerConfig, err := s.providerConfigStore.Get(ctx, req.ProviderType)
	if err != nil {
		return nil, fmt.Errorf("get provider config: %w", err)
	}
	if providerConfig == nil {
		return nil, driving.ErrOAuthProviderNotFound
	}
	if !providerConfig.Enabled {
		return nil, driving.ErrOAuthProviderDisabled
	}
	if !providerConfig.IsConfigured() {
		return nil, driving.ErrOAuthProviderNotFound
	}

	provider := s.providers[req.ProviderType]
	if provider == nil {
		return nil, driving.ErrOAuthProviderNotFound
	}

	// Generate state (CSRF protection)
	state, err := generateRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	// Generate PKCE code verifier and challenge when requested
	var codeVerifier, codeChallenge string
	if req.UsePKCE {
		codeVerifier, err = generateRandomString(64)
		if err != nil {
			return nil, fmt.Errorf("generate code verifier: %w", err)
		}
		codeChallenge = generateCodeChallenge(codeVerifier)
	}

	redirectURI := s.baseURL + "/api/v1/oauth/callback"

	// Store the attempt for validation during callback
	now := time.Now()
	expiresAt := now.Add(s.stateTTL)
	oauthState := &driven.OAuthState{
		State:        state,
		UserID:       req.UserID,
		ProviderType: string(req.ProviderType),
		CodeVerifier: codeVerifier,
		RedirectURI:  redirectURI,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}

	if err := s.oauthStateStore.Save(ctx, oauthState); err != nil {
		return nil, fmt.Errorf("save oauth state: %w", err)
	}

	authURL := provider.BuildAuthURL(
		providerConfig.Secrets.ClientID,
		redirectURI,
		state,
		codeChallenge,
		provider.DefaultScopes(),
	)

	return &driving.AuthorizeResponse{
		AuthorizationURL: authURL,
		State:            state,
		ExpiresAt:        expiresAt.Format(time.RFC3339),
	}, nil
}

// Callback handles the OAuth redirect from the provider.
// The stored attempt is consumed on the state lookup; whatever happens after
// that, the attempt is gone and the user has to restart on failure.
func (s *oauthService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	// Check for error from provider
	if req.Error != "" {
		return nil, &driving.OAuthError{
			Code:        req.Error,
			Description: req.ErrorDescription,
		}
	}
	if req.Code == "" {
		return nil, driving.ErrOAuthMissingCode
	}
	if req.State == "" {
		return nil, driving.ErrOAuthInvalidState
	}

	// Validate and consume the attempt (single-use)
	oauthState, err := s.oauthStateStore.GetAndDelete(ctx, req.State)
	if err != nil {
		return nil, fmt.Errorf("get oauth state: %w", err)
	}
	if oauthState == nil {
		return nil, driving.ErrOAuthInvalidState
	}
	// The store rejects expired attempts, but re-check against the attempt's
	// own timestamps so a lagging store cannot stretch the window.
	if time.Now().After(oauthState.ExpiresAt) {
		return nil, driving.ErrOAuthInvalidState
	}

	providerType := domain.ProviderType(oauthState.ProviderType)

	providerConfig, err := s.providerConfigStore.Get(ctx, providerType)
	if err != nil {
		return nil, fmt.Errorf("get provider config: %w", err)
	}
	if providerConfig == nil || !providerConfig.IsConfigured() {
		return nil, driving.ErrOAuthProviderNotFound
	}

	provider := s.providers[providerType]
	if provider == nil {
		return nil, driving.ErrOAuthProviderNotFound
	}

	// Exchange code for tokens, appending the PKCE verifier if one was stored
	token, err := provider.ExchangeCode(
		ctx,
		providerConfig.Secrets.ClientID,
		providerConfig.Secrets.ClientSecret,
		req.Code,
		oauthState.RedirectURI,
		oauthState.CodeVerifier,
	)
	if err != nil {
		return nil, &driving.OAuthError{
			Code:        "exchange_failed",
			Description: err.Error(),
		}
	}
	if token.AccessToken == "" {
		return nil, &driving.OAuthError{
			Code:        "exchange_failed",
			Description: "provider response did not include an access token",
		}
	}

	// Identify the account
	userInfo, err := provider.GetUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, &driving.OAuthError{
			Code:        "user_info_failed",
			Description: err.Error(),
		}
	}

	record, err := s.persistExchangedToken(ctx, oauthState.UserID, providerType, token, userInfo)
	if err != nil {
		return nil, err
	}

	accountDisplay := userInfo.ID
	if userInfo.Email != "" {
		accountDisplay = userInfo.Email
	}

	return &driving.CallbackResponse{
		Token:   record.ToSummary(),
		Message: fmt.Sprintf("Successfully connected %s as %s", providerType.DisplayName(), accountDisplay),
	}, nil
}

// persistExchangedToken saves the exchanged tokens, carrying forward a
// previously stored refresh token when the provider omitted one.
func (s *oauthService) persistExchangedToken(ctx context.Context, userID string, providerType domain.ProviderType, token *driven.OAuthToken, userInfo *driven.OAuthUserInfo) (*domain.TokenRecord, error) {
	now := time.Now()

	record, err := s.tokenStore.Get(ctx, userID)
	if err != nil {
		record = &domain.TokenRecord{
			UserID:       userID,
			ProviderType: providerType,
			CreatedAt:    now,
		}
	}

	record.ProviderType = providerType
	record.AccountID = userInfo.ID
	record.Merge(token.AccessToken, token.RefreshToken, token.TokenType, token.Scope, expiryFromSeconds(token.ExpiresIn))

	if err := s.tokenStore.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save token record: %w", err)
	}
	return record, nil
}

// RefreshTokens refreshes the user's provider tokens on demand.
// Returns nil, nil when refresh failed and the stored tokens were cleared.
func (s *oauthService) RefreshTokens(ctx context.Context, userID string) (*domain.TokenSummary, error) {
	record, err := s.tokenStore.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	refreshed, err := s.Refresh(ctx, record)
	if err != nil {
		// Tokens were cleared by Refresh; the caller sees a clean slate.
		return nil, nil
	}
	return refreshed.ToSummary(), nil
}

// Refresh implements driven.TokenRefresher.
// On any failure the stored record is deleted so no partial or ambiguous
// token state survives; the user goes through full re-authorization.
func (s *oauthService) Refresh(ctx context.Context, record *domain.TokenRecord) (*domain.TokenRecord, error) {
	if record.RefreshToken == "" {
		s.clearTokensAfterFailure(ctx, record.UserID, "no refresh token")
		return nil, domain.ErrNoRefreshToken
	}

	providerConfig, err := s.providerConfigStore.Get(ctx, record.ProviderType)
	if err != nil {
		return nil, fmt.Errorf("get provider config: %w", err)
	}
	if providerConfig == nil || !providerConfig.IsConfigured() {
		return nil, domain.ErrProviderNotFound
	}

	provider := s.providers[record.ProviderType]
	if provider == nil {
		return nil, domain.ErrProviderNotFound
	}

	token, err := provider.RefreshToken(
		ctx,
		providerConfig.Secrets.ClientID,
		providerConfig.Secrets.ClientSecret,
		record.RefreshToken,
	)
	if err != nil {
		s.clearTokensAfterFailure(ctx, record.UserID, err.Error())
		return nil, &domain.TokenExchangeError{Code: "refresh_failed", Description: err.Error()}
	}
	if token.AccessToken == "" {
		s.clearTokensAfterFailure(ctx, record.UserID, "refresh response missing access token")
		return nil, &domain.TokenExchangeError{Code: "refresh_failed", Description: "refresh response missing access token"}
	}

	record.Merge(token.AccessToken, token.RefreshToken, token.TokenType, token.Scope, expiryFromSeconds(token.ExpiresIn))

	if err := s.tokenStore.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save refreshed tokens: %w", err)
	}
	return record, nil
}

// IsAuthenticated reports whether a live token exists for the user.
// Expiry is evaluated at call time, not cached.
func (s *oauthService) IsAuthenticated(ctx context.Context, userID string) bool {
	record, err := s.tokenStore.Get(ctx, userID)
	if err != nil {
		return false
	}
	return record.AccessToken != "" && !record.IsExpired()
}

// ClearTokens removes the user's stored provider tokens.
func (s *oauthService) ClearTokens(ctx context.Context, userID string) error {
	return s.tokenStore.Delete(ctx, userID)
}

func (s *oauthService) clearTokensAfterFailure(ctx context.Context, userID, reason string) {
	if err := s.tokenStore.Delete(ctx, userID); err != nil {
		s.logger.Error("clear tokens after refresh failure", "user_id", userID, "error", err)
		return
	}
	s.logger.Warn("cleared provider tokens after refresh failure", "user_id", userID, "reason", reason)
}

// expiryFromSeconds converts an expires_in value to an absolute timestamp.
func expiryFromSeconds(expiresIn int) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := time.Now().Add(time.Duration(expiresIn) * time.Second)
	return &t
}

// generateRandomString generates a cryptographically secure random string.
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// generateCodeChallenge creates a PKCE code challenge from a verifier (S256 method).
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
