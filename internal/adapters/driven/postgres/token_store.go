package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure TokenStore implements the interface.
var _ driven.TokenStore = (*TokenStore)(nil)

// tokenSecrets is the encrypted portion of a token record.
// Only the secret values go into the blob; the rest stays queryable.
type tokenSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenStore implements driven.TokenStore using PostgreSQL.
// Access and refresh tokens are encrypted at rest with AES-256-GCM.
type TokenStore struct {
	db        *sql.DB
	encryptor *SecretEncryptor
}

// NewTokenStore creates a new PostgreSQL-backed token store.
func NewTokenStore(db *sql.DB, encryptor *SecretEncryptor) *TokenStore {
	return &TokenStore{
		db:        db,
		encryptor: encryptor,
	}
}

// Save creates or replaces the token record for a user.
func (s *TokenStore) Save(ctx context.Context, record *domain.TokenRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	blob, err := s.encryptor.Encrypt(tokenSecrets{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encrypt tokens: %w", err)
	}

	query := `
		INSERT INTO token_records (user_id, provider_type, secret_blob, token_type, scope, account_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			provider_type = EXCLUDED.provider_type,
			secret_blob = EXCLUDED.secret_blob,
			token_type = EXCLUDED.token_type,
			scope = EXCLUDED.scope,
			account_id = EXCLUDED.account_id,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		record.UserID,
		record.ProviderType,
		blob,
		record.TokenType,
		record.Scope,
		record.AccountID,
		NullTime(record.ExpiresAt),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save token record: %w", err)
	}

	return nil
}

// Get retrieves the token record for a user.
// Returns domain.ErrNoTokens if none is stored.
func (s *TokenStore) Get(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	query := `
		SELECT user_id, provider_type, secret_blob, token_type, scope, account_id, expires_at, created_at, updated_at
		FROM token_records
		WHERE user_id = $1
	`

	var (
		record    domain.TokenRecord
		blob      []byte
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&record.UserID,
		&record.ProviderType,
		&blob,
		&record.TokenType,
		&record.Scope,
		&record.AccountID,
		&expiresAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoTokens
	}
	if err != nil {
		return nil, fmt.Errorf("get token record: %w", err)
	}

	var secrets tokenSecrets
	if err := s.encryptor.Decrypt(blob, &secrets); err != nil {
		return nil, fmt.Errorf("decrypt tokens for user %s: %w", userID, err)
	}
	record.AccessToken = secrets.AccessToken
	record.RefreshToken = secrets.RefreshToken
	record.ExpiresAt = TimePtr(expiresAt)

	return &record, nil
}

// Delete removes the token record for a user.
// Deleting a missing record is not an error.
func (s *TokenStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM token_records WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete token record: %w", err)
	}
	return nil
}
