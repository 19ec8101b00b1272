package driven

import (
	"context"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// TokenStore persists provider token records, keyed by user id.
// Implementations must encrypt token values at rest.
type TokenStore interface {
	// Save creates or replaces the token record for a user.
	Save(ctx context.Context, record *domain.TokenRecord) error

	// Get retrieves the token record for a user.
	// Returns domain.ErrNoTokens if none is stored.
	Get(ctx context.Context, userID string) (*domain.TokenRecord, error)

	// Delete removes the token record for a user.
	// Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error
}
