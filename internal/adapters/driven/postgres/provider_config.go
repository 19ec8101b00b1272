package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure ProviderConfigStore implements the interface.
var _ driven.ProviderConfigStore = (*ProviderConfigStore)(nil)

// ProviderConfigStore implements driven.ProviderConfigStore using PostgreSQL.
// Client credentials are encrypted at rest.
type ProviderConfigStore struct {
	db        *sql.DB
	encryptor *SecretEncryptor
}

// NewProviderConfigStore creates a new PostgreSQL-backed provider config store.
func NewProviderConfigStore(db *sql.DB, encryptor *SecretEncryptor) *ProviderConfigStore {
	return &ProviderConfigStore{
		db:        db,
		encryptor: encryptor,
	}
}

// Get retrieves a provider config with decrypted secrets.
// Returns nil, nil if the provider is not configured.
func (s *ProviderConfigStore) Get(ctx context.Context, providerType domain.ProviderType) (*domain.ProviderConfig, error) {
	query := `
		SELECT provider_type, secret_blob, enabled, created_at, updated_at
		FROM provider_configs
		WHERE provider_type = $1
	`

	var (
		config domain.ProviderConfig
		blob   []byte
	)
	err := s.db.QueryRowContext(ctx, query, providerType).Scan(
		&config.ProviderType,
		&blob,
		&config.Enabled,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider config: %w", err)
	}

	if len(blob) > 0 {
		var secrets domain.ProviderSecrets
		if err := s.encryptor.Decrypt(blob, &secrets); err != nil {
			return nil, fmt.Errorf("decrypt provider secrets for %s: %w", providerType, err)
		}
		config.Secrets = &secrets
	}

	return &config, nil
}

// Save creates or updates a provider config, encrypting secrets.
func (s *ProviderConfigStore) Save(ctx context.Context, config *domain.ProviderConfig) error {
	now := time.Now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}
	config.UpdatedAt = now

	var blob []byte
	if config.Secrets != nil {
		var err error
		blob, err = s.encryptor.Encrypt(config.Secrets)
		if err != nil {
			return fmt.Errorf("encrypt provider secrets: %w", err)
		}
	}

	query := `
		INSERT INTO provider_configs (provider_type, secret_blob, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_type) DO UPDATE SET
			secret_blob = EXCLUDED.secret_blob,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		config.ProviderType,
		blob,
		config.Enabled,
		config.CreatedAt,
		config.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save provider config: %w", err)
	}

	return nil
}

// List returns summaries for all configured providers (no secrets).
func (s *ProviderConfigStore) List(ctx context.Context) ([]*domain.ProviderConfigSummary, error) {
	query := `
		SELECT provider_type, secret_blob IS NOT NULL AND LENGTH(secret_blob) > 0, enabled, updated_at
		FROM provider_configs
		ORDER BY provider_type
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list provider configs: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.ProviderConfigSummary
	for rows.Next() {
		var summary domain.ProviderConfigSummary
		if err := rows.Scan(
			&summary.ProviderType,
			&summary.Configured,
			&summary.Enabled,
			&summary.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan provider config: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider configs: %w", err)
	}

	return summaries, nil
}

// Delete removes a provider config.
func (s *ProviderConfigStore) Delete(ctx context.Context, providerType domain.ProviderType) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM provider_configs WHERE provider_type = $1`, providerType)
	if err != nil {
		return fmt.Errorf("delete provider config: %w", err)
	}
	return nil
}
