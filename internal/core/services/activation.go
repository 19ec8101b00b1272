package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// ActivationConfig holds configuration for the activation watcher.
type ActivationConfig struct {
	// Broker is the connection broker client.
	Broker driven.BrokerClient

	// UnknownStatusIsActive controls the classification fallback for an
	// empty or unrecognized broker status. True (the default wiring)
	// treats an unknown-but-present connection as usable.
	UnknownStatusIsActive bool

	// Logger for per-attempt diagnostics.
	Logger *slog.Logger
}

// Activation watches a broker connection until it reaches a terminal state.
// It owns the status classification strictness: polling always classifies
// strictly, so an "initiated" connection keeps the poll waiting instead of
// being declared usable prematurely.
type Activation struct {
	broker          driven.BrokerClient
	unknownIsActive bool
	logger          *slog.Logger
}

// NewActivation creates a new activation watcher.
func NewActivation(cfg ActivationConfig) *Activation {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Activation{
		broker:          cfg.Broker,
		unknownIsActive: cfg.UnknownStatusIsActive,
		logger:          logger,
	}
}

// Classify maps a broker status onto the closed status set using the
// configured unknown-status polarity.
func (a *Activation) Classify(rawStatus string, strictness domain.Strictness) domain.ConnectionStatus {
	return domain.ClassifyBrokerStatus(rawStatus, strictness, a.unknownIsActive)
}

// PollUntilActive fetches the connection's status up to maxAttempts times,
// waiting interval between attempts, until a terminal classification.
// Returns the candidate immediately on active or error; returns nil, nil
// after exhausting the budget without a terminal state - still pending is
// not a failure, the user may complete authorization out of band.
// The poll is cancellable through ctx.
func (a *Activation) PollUntilActive(ctx context.Context, connectionID string, maxAttempts int, interval time.Duration) (*domain.ConnectionCandidate, error) {
	if connectionID == "" {
		return nil, fmt.Errorf("poll until active: %w", domain.ErrInvalidInput)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate, err := a.broker.GetConnection(ctx, connectionID)
		if err != nil {
			return nil, fmt.Errorf("get connection %s: %w", connectionID, err)
		}

		status := a.Classify(candidate.Status, domain.StrictnessStrict)
		a.logger.Debug("activation poll",
			"connection_id", connectionID,
			"attempt", attempt,
			"broker_status", candidate.Status,
			"classified", status)

		if status.IsTerminal() {
			return candidate, nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil, nil
}
