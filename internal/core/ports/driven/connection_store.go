package driven

import (
	"context"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// ConnectionStore persists the per-user connection record.
// Records are never hard-deleted by the lifecycle itself, only re-classified;
// Delete exists for the explicit "connection forgotten" user action.
type ConnectionStore interface {
	// Save creates or replaces the connection record for a user.
	Save(ctx context.Context, conn *domain.UserConnection) error

	// Get retrieves the connection record for a user.
	// Returns domain.ErrConnectionNotFound if none is stored.
	Get(ctx context.Context, userID string) (*domain.UserConnection, error)

	// Delete removes the connection record for a user.
	// Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error

	// ListPending returns connections that have been pending longer than
	// the given number of seconds. Used by the scheduler to enqueue
	// re-probes.
	ListPending(ctx context.Context, olderThanSeconds int) ([]*domain.UserConnection, error)
}
