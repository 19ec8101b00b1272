package domain

import "time"

// TokenRecord holds the provider OAuth tokens for one user.
// Created on successful code exchange, mutated in place on refresh, deleted
// on sign-out or unrecoverable refresh failure.
type TokenRecord struct {
	UserID       string       `json:"user_id"`
	ProviderType ProviderType `json:"provider_type"`

	AccessToken  string     `json:"-"` // Never serialize
	RefreshToken string     `json:"-"` // Never serialize
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	Scope        string     `json:"scope,omitempty"`

	// AccountID is the provider account identifier (email, subject id)
	AccountID string `json:"account_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired returns true if the access token has expired.
// Tokens with no recorded expiry never expire.
func (t *TokenRecord) IsExpired() bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !time.Now().Before(*t.ExpiresAt)
}

// NeedsRefresh returns true if the token should be refreshed
// (within 1 minute of expiry).
func (t *TokenRecord) NeedsRefresh() bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(1 * time.Minute).After(*t.ExpiresAt)
}

// Merge applies a refresh response onto the existing record.
// A refresh response that omits the refresh token must never drop the stored
// one, so empty incoming fields carry the previous values forward.
func (t *TokenRecord) Merge(accessToken, refreshToken, tokenType, scope string, expiresAt *time.Time) {
	t.AccessToken = accessToken
	if refreshToken != "" {
		t.RefreshToken = refreshToken
	}
	if tokenType != "" {
		t.TokenType = tokenType
	}
	if scope != "" {
		t.Scope = scope
	}
	t.ExpiresAt = expiresAt
	t.UpdatedAt = time.Now()
}

// TokenSummary is a safe view without secret values.
type TokenSummary struct {
	UserID       string       `json:"user_id"`
	ProviderType ProviderType `json:"provider_type"`
	HasToken     bool         `json:"has_token"`
	HasRefresh   bool         `json:"has_refresh"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	AccountID    string       `json:"account_id,omitempty"`
}

// ToSummary converts a TokenRecord to a TokenSummary.
func (t *TokenRecord) ToSummary() *TokenSummary {
	return &TokenSummary{
		UserID:       t.UserID,
		ProviderType: t.ProviderType,
		HasToken:     t.AccessToken != "",
		HasRefresh:   t.RefreshToken != "",
		ExpiresAt:    t.ExpiresAt,
		AccountID:    t.AccountID,
	}
}
