package driven

import (
	"context"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// BrokerClient talks to the third-party connection broker that manages
// OAuth-delegated tool connections on behalf of the assistant.
// Raw broker payloads never leave this port; everything is translated to
// domain types at the adapter boundary.
type BrokerClient interface {
	// EnsureEntity makes sure a broker-side entity exists for the given id.
	// An "already exists" response from the broker counts as success.
	EnsureEntity(ctx context.Context, entityID string) error

	// ListConnections returns the broker's raw connection candidates for an
	// entity and application, newest first is not guaranteed.
	ListConnections(ctx context.Context, entityID, appName string) ([]*domain.ConnectionCandidate, error)

	// GetConnection fetches a single connection's current state.
	// Returns domain.ErrConnectionNotFound if the broker no longer has it.
	GetConnection(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error)

	// InitiateConnection asks the broker to start a new delegated connection.
	// The returned candidate carries the connection id and the redirect URL
	// the user must visit to complete authorization.
	InitiateConnection(ctx context.Context, entityID, appName string) (*domain.ConnectionCandidate, error)

	// ListTools returns the tool handles the broker exposes for an active
	// connection. An empty list on a supposedly active connection means the
	// connection has regressed.
	ListTools(ctx context.Context, entityID, appName string) ([]*BrokerTool, error)
}

// ConnectionDeleter is one deletion mechanism the broker may expose.
// The broker API has grown several shapes over time; deleters are tried in
// order and the first success wins.
type ConnectionDeleter interface {
	// Name identifies the mechanism in logs.
	Name() string

	// Delete removes a connection. Returns domain.ErrConnectionNotFound if
	// this mechanism does not know the connection (the next one is tried).
	Delete(ctx context.Context, connectionID string) error
}

// BrokerTool is a single invokable calendar operation exposed by the broker
// once a connection is active.
type BrokerTool struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	AppName     string `json:"app_name,omitempty"`
}
