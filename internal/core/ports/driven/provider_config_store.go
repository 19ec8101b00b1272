package driven

import (
	"context"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// ProviderConfigStore manages calendar provider OAuth app credentials.
type ProviderConfigStore interface {
	// Get retrieves a provider config with decrypted secrets.
	// Returns nil, nil if the provider is not configured.
	Get(ctx context.Context, providerType domain.ProviderType) (*domain.ProviderConfig, error)

	// Save creates or updates a provider config, encrypting secrets.
	Save(ctx context.Context, config *domain.ProviderConfig) error

	// List returns summaries for all configured providers (no secrets).
	List(ctx context.Context) ([]*domain.ProviderConfigSummary, error)

	// Delete removes a provider config.
	Delete(ctx context.Context, providerType domain.ProviderType) error
}
