package domain

import "time"

// ProviderType identifies a calendar provider
type ProviderType string

const (
	ProviderTypeGoogleCalendar  ProviderType = "googlecalendar"
	ProviderTypeOutlookCalendar ProviderType = "outlookcalendar"
)

// ValidProviderTypes lists all supported provider types
var ValidProviderTypes = []ProviderType{
	ProviderTypeGoogleCalendar,
	ProviderTypeOutlookCalendar,
}

// IsValid checks if the provider type is supported
func (p ProviderType) IsValid() bool {
	for _, v := range ValidProviderTypes {
		if p == v {
			return true
		}
	}
	return false
}

// DisplayName returns a human-readable name for the provider
func (p ProviderType) DisplayName() string {
	switch p {
	case ProviderTypeGoogleCalendar:
		return "Google Calendar"
	case ProviderTypeOutlookCalendar:
		return "Outlook Calendar"
	default:
		return string(p)
	}
}

// ProviderConfig holds the OAuth app credentials for a calendar provider.
// Secrets are encrypted at rest and only populated on a full fetch.
type ProviderConfig struct {
	ProviderType ProviderType `json:"provider_type"`
	Enabled      bool         `json:"enabled"`

	// Secrets contains decrypted secret values (never persisted as-is)
	Secrets *ProviderSecrets `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderSecrets contains the OAuth client credentials.
type ProviderSecrets struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// IsConfigured returns true if the provider has usable credentials.
func (c *ProviderConfig) IsConfigured() bool {
	return c.Secrets != nil && c.Secrets.ClientID != ""
}

// ProviderConfigSummary is a safe view without secrets.
type ProviderConfigSummary struct {
	ProviderType ProviderType `json:"provider_type"`
	Enabled      bool         `json:"enabled"`
	Configured   bool         `json:"configured"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ToSummary converts ProviderConfig to ProviderConfigSummary.
func (c *ProviderConfig) ToSummary() *ProviderConfigSummary {
	return &ProviderConfigSummary{
		ProviderType: c.ProviderType,
		Enabled:      c.Enabled,
		Configured:   c.IsConfigured(),
		UpdatedAt:    c.UpdatedAt,
	}
}
