package driving

import (
	"context"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// ConnectionService is the user-facing entry point for broker-managed
// calendar connections. Callers only ever see the UserConnection shape and
// the closed status set; raw broker payloads never cross this boundary.
type ConnectionService interface {
	// EnsureConnection converges the user onto exactly one usable broker
	// connection: it ensures the broker entity exists, collapses duplicate
	// connections, reuses a good one or initiates a new one.
	// Concurrent calls for the same user are serialized.
	EnsureConnection(ctx context.Context, userID string) (*ConnectionStatusResponse, error)

	// CheckStatus re-probes the user's connection and returns the updated
	// classification. An active connection that fails its capability probe
	// regresses to disconnected.
	CheckStatus(ctx context.Context, userID string) (*ConnectionStatusResponse, error)

	// ConfirmActivation runs the strict confirmation poll for a pending
	// connection. Used by the background worker after setup returned pending.
	ConfirmActivation(ctx context.Context, userID, connectionID string) (*ConnectionStatusResponse, error)

	// ListTools returns the calendar operations available once the
	// connection is active.
	ListTools(ctx context.Context, userID string) ([]*ToolSummary, error)

	// SignOut forgets the user's connection and deletes the broker side
	// best-effort. The user's provider tokens are cleared as well.
	SignOut(ctx context.Context, userID string) error
}

// ConnectionStatusResponse is what the calling UI sees.
// @Description Connection status for the authenticated user
type ConnectionStatusResponse struct {
	// Status is one of not_found, pending, active, error, disconnected.
	Status domain.ConnectionStatus `json:"status" example:"pending"`

	// ConnectionID is the broker id of the authoritative connection.
	ConnectionID string `json:"connection_id,omitempty" example:"conn_8f14e45f"`

	// RedirectURL is set while pending; the UI must send the user's
	// browser there to finish authorization.
	RedirectURL string `json:"redirect_url,omitempty" example:"https://broker.example.com/authorize/conn_8f14e45f"`

	// Error carries a human-readable diagnostic for error status.
	Error string `json:"error,omitempty" example:"broker reported: connection_failed"`

	// ToolsAvailable is the number of calendar operations exposed, set
	// only when the status is active.
	ToolsAvailable int `json:"tools_available,omitempty" example:"12"`
}

// ToolSummary describes one invokable calendar operation.
// @Description Invokable calendar operation
type ToolSummary struct {
	Name        string `json:"name" example:"GOOGLECALENDAR_CREATE_EVENT"`
	DisplayName string `json:"display_name,omitempty" example:"Create Event"`
	Description string `json:"description,omitempty" example:"Create an event on the user's calendar"`
}
