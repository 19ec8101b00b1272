package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure MockProviderConfigStore implements ProviderConfigStore
var _ driven.ProviderConfigStore = (*MockProviderConfigStore)(nil)

// MockProviderConfigStore is an in-memory ProviderConfigStore for testing.
type MockProviderConfigStore struct {
	mu      sync.RWMutex
	configs map[domain.ProviderType]*domain.ProviderConfig

	GetFn func(ctx context.Context, providerType domain.ProviderType) (*domain.ProviderConfig, error)
}

// NewMockProviderConfigStore creates a new MockProviderConfigStore
func NewMockProviderConfigStore() *MockProviderConfigStore {
	return &MockProviderConfigStore{configs: make(map[domain.ProviderType]*domain.ProviderConfig)}
}

func (m *MockProviderConfigStore) Get(ctx context.Context, providerType domain.ProviderType) (*domain.ProviderConfig, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, providerType)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	config, ok := m.configs[providerType]
	if !ok {
		return nil, nil
	}
	copied := *config
	if config.Secrets != nil {
		secrets := *config.Secrets
		copied.Secrets = &secrets
	}
	return &copied, nil
}

func (m *MockProviderConfigStore) Save(ctx context.Context, config *domain.ProviderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *config
	if config.Secrets != nil {
		secrets := *config.Secrets
		copied.Secrets = &secrets
	}
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	copied.UpdatedAt = time.Now()
	m.configs[config.ProviderType] = &copied
	return nil
}

func (m *MockProviderConfigStore) List(ctx context.Context) ([]*domain.ProviderConfigSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summaries := make([]*domain.ProviderConfigSummary, 0, len(m.configs))
	for _, config := range m.configs {
		summaries = append(summaries, config.ToSummary())
	}
	return summaries, nil
}

func (m *MockProviderConfigStore) Delete(ctx context.Context, providerType domain.ProviderType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, providerType)
	return nil
}
