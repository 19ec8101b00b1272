package domain

import (
	"strings"
	"time"
)

// ConnectionStatus is Skej's own classification of a broker connection.
// It is a closed set, distinct from the free-text status the broker reports.
type ConnectionStatus string

const (
	// ConnectionStatusNotFound means no connection exists for the user.
	ConnectionStatusNotFound ConnectionStatus = "not_found"
	// ConnectionStatusPending means a connection was initiated and the user
	// has not yet completed authorization (or the broker is still settling).
	ConnectionStatusPending ConnectionStatus = "pending"
	// ConnectionStatusActive means the connection is usable.
	ConnectionStatusActive ConnectionStatus = "active"
	// ConnectionStatusError means the connection failed.
	ConnectionStatusError ConnectionStatus = "error"
	// ConnectionStatusDisconnected means a previously active connection
	// failed a later capability probe.
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// IsTerminal reports whether polling should stop at this status.
func (s ConnectionStatus) IsTerminal() bool {
	return s == ConnectionStatusActive || s == ConnectionStatusError
}

// UserConnection is the single logical connection record per user, even
// though the broker may physically hold several. Never hard-deleted, only
// re-classified, so retries are idempotent.
type UserConnection struct {
	UserID       string           `json:"user_id"`
	EntityID     string           `json:"entity_id"`
	ConnectionID string           `json:"connection_id,omitempty"`
	Status       ConnectionStatus `json:"status"`

	// RedirectURL is present only while pending and OAuth completion
	// is outstanding.
	RedirectURL string `json:"redirect_url,omitempty"`

	// Error holds a human-readable diagnostic, including the raw broker
	// status string when classification landed on error.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// ConnectionCandidate is the broker's raw view of one connection.
// Used only during duplicate resolution and polling; not persisted.
type ConnectionCandidate struct {
	ID        string    `json:"id"`
	AppName   string    `json:"app_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	// RedirectURL is set when the broker initiated this connection and the
	// user still has to complete authorization.
	RedirectURL string `json:"redirect_url,omitempty"`
}

// EntityIDFromUserID derives the broker entity id for a user.
// The derivation is deterministic so repeated setup calls for the same user
// converge on the same broker entity: lowercase, and every character outside
// [a-z0-9._-] replaced with '_'.
func EntityIDFromUserID(userID string) string {
	lower := strings.ToLower(strings.TrimSpace(userID))
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
