package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Resolution is the outcome of duplicate connection resolution: exactly one
// candidate to keep (nil when there were none) and the rest to delete.
type Resolution struct {
	Keep     *domain.ConnectionCandidate
	ToDelete []*domain.ConnectionCandidate
}

// Resolver collapses the broker's physical connections for one user and
// application down to a single authoritative one. Broker-side connection
// creation is not idempotent; retries and double-clicks leave duplicates
// behind, and this is where they get reconciled.
type Resolver struct {
	deleters []driven.ConnectionDeleter
	logger   *slog.Logger
}

// NewResolver creates a resolver with an ordered list of deletion mechanisms.
// Deleters are tried in order per candidate; the first success wins.
func NewResolver(deleters []driven.ConnectionDeleter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		deleters: deleters,
		logger:   logger,
	}
}

// Resolve selects the candidate to keep. Priority order:
//  1. candidates whose status exactly equals an active-vocabulary term,
//  2. candidates whose status contains a valid-but-not-yet-active term,
//  3. everything else.
//
// Within the first non-empty bucket the most recently created candidate
// wins. Resolve is idempotent: feeding it the survivors of a previous run
// yields the same keep choice.
func (r *Resolver) Resolve(candidates []*domain.ConnectionCandidate) Resolution {
	if len(candidates) == 0 {
		return Resolution{}
	}
	if len(candidates) == 1 {
		return Resolution{Keep: candidates[0]}
	}

	sorted := make([]*domain.ConnectionCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	keep := pickFirst(sorted, func(c *domain.ConnectionCandidate) bool {
		return domain.HasExactActiveStatus(c.Status)
	})
	if keep == nil {
		keep = pickFirst(sorted, func(c *domain.ConnectionCandidate) bool {
			return domain.HasValidStatus(c.Status)
		})
	}
	if keep == nil {
		keep = sorted[0]
	}

	toDelete := make([]*domain.ConnectionCandidate, 0, len(sorted)-1)
	for _, c := range sorted {
		if c.ID != keep.ID {
			toDelete = append(toDelete, c)
		}
	}

	return Resolution{Keep: keep, ToDelete: toDelete}
}

// pickFirst returns the first candidate matching the predicate.
// The slice is already newest-first, so this is "most recently created
// within the bucket".
func pickFirst(sorted []*domain.ConnectionCandidate, match func(*domain.ConnectionCandidate) bool) *domain.ConnectionCandidate {
	for _, c := range sorted {
		if match(c) {
			return c
		}
	}
	return nil
}

// DeleteDuplicates removes the non-kept candidates best-effort.
// Each candidate is run through the deletion mechanisms in order until one
// succeeds. Failures are logged and never abort resolution; a connection
// that cannot be deleted is left behind and ignored.
func (r *Resolver) DeleteDuplicates(ctx context.Context, toDelete []*domain.ConnectionCandidate) {
	for _, candidate := range toDelete {
		if r.deleteOne(ctx, candidate.ID) {
			r.logger.Info("deleted duplicate connection", "connection_id", candidate.ID, "status", candidate.Status)
		} else {
			r.logger.Warn("could not delete duplicate connection", "connection_id", candidate.ID, "status", candidate.Status)
		}
	}
}

// DeleteConnection removes a single broker connection best-effort, trying
// each deletion mechanism in order. Returns true when one succeeded or the
// connection was already gone.
func (r *Resolver) DeleteConnection(ctx context.Context, connectionID string) bool {
	return r.deleteOne(ctx, connectionID)
}

func (r *Resolver) deleteOne(ctx context.Context, connectionID string) bool {
	for _, deleter := range r.deleters {
		err := deleter.Delete(ctx, connectionID)
		if err == nil {
			return true
		}
		// Already gone counts as deleted.
		if errors.Is(err, domain.ErrConnectionNotFound) {
			return true
		}
		r.logger.Debug("deletion mechanism failed",
			"mechanism", deleter.Name(),
			"connection_id", connectionID,
			"error", err)
	}
	return false
}
