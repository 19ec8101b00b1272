package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
type ConnectionStore struct {
	db *sql.DB
}

// NewConnectionStore creates a new PostgreSQL-backed connection store.
func NewConnectionStore(db *sql.DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

// Save creates or replaces the connection record for a user.
func (s *ConnectionStore) Save(ctx context.Context, conn *domain.UserConnection) error {
	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.LastUpdated = now

	query := `
		INSERT INTO user_connections (user_id, entity_id, connection_id, status, redirect_url, error, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			entity_id = EXCLUDED.entity_id,
			connection_id = EXCLUDED.connection_id,
			status = EXCLUDED.status,
			redirect_url = EXCLUDED.redirect_url,
			error = EXCLUDED.error,
			last_updated = EXCLUDED.last_updated
	`

	_, err := s.db.ExecContext(ctx, query,
		conn.UserID,
		conn.EntityID,
		conn.ConnectionID,
		conn.Status,
		conn.RedirectURL,
		conn.Error,
		conn.CreatedAt,
		conn.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}

	return nil
}

// Get retrieves the connection record for a user.
// Returns domain.ErrConnectionNotFound if none is stored.
func (s *ConnectionStore) Get(ctx context.Context, userID string) (*domain.UserConnection, error) {
	query := `
		SELECT user_id, entity_id, connection_id, status, redirect_url, error, created_at, last_updated
		FROM user_connections
		WHERE user_id = $1
	`

	var conn domain.UserConnection
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&conn.UserID,
		&conn.EntityID,
		&conn.ConnectionID,
		&conn.Status,
		&conn.RedirectURL,
		&conn.Error,
		&conn.CreatedAt,
		&conn.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	return &conn, nil
}

// Delete removes the connection record for a user.
// Deleting a missing record is not an error.
func (s *ConnectionStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_connections WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

// ListPending returns connections stuck in pending longer than the given age.
func (s *ConnectionStore) ListPending(ctx context.Context, olderThanSeconds int) ([]*domain.UserConnection, error) {
	query := `
		SELECT user_id, entity_id, connection_id, status, redirect_url, error, created_at, last_updated
		FROM user_connections
		WHERE status = $1 AND last_updated < $2
		ORDER BY last_updated ASC
	`

	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)
	rows, err := s.db.QueryContext(ctx, query, domain.ConnectionStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending connections: %w", err)
	}
	defer rows.Close()

	var conns []*domain.UserConnection
	for rows.Next() {
		var conn domain.UserConnection
		if err := rows.Scan(
			&conn.UserID,
			&conn.EntityID,
			&conn.ConnectionID,
			&conn.Status,
			&conn.RedirectURL,
			&conn.Error,
			&conn.CreatedAt,
			&conn.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan pending connection: %w", err)
		}
		conns = append(conns, &conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending connections: %w", err)
	}

	return conns, nil
}
