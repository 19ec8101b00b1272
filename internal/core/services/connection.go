package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
	"github.com/skej-labs/skej-core/internal/core/ports/driving"
)

// Ensure connectionService implements ConnectionService
var _ driving.ConnectionService = (*connectionService)(nil)

// ConnectionServiceConfig holds configuration for the connection service.
type ConnectionServiceConfig struct {
	// Broker is the connection broker client.
	Broker driven.BrokerClient

	// ConnectionStore persists per-user connection records.
	ConnectionStore driven.ConnectionStore

	// TokenStore is cleared on sign-out.
	TokenStore driven.TokenStore

	// Resolver collapses duplicate broker connections.
	Resolver *Resolver

	// Activation classifies and polls broker connections.
	Activation *Activation

	// Lock serializes setup per user across instances.
	Lock driven.DistributedLock

	// TaskQueue receives confirmation poll tasks for pending connections.
	// Optional; without it pending connections are only re-probed on demand.
	TaskQueue driven.TaskQueue

	// AppName is the broker-side application name, e.g. "googlecalendar".
	AppName string

	// EagerPollAttempts/EagerPollInterval bound the short opportunistic
	// poll inside EnsureConnection. Defaults: 5 attempts, 2s apart.
	EagerPollAttempts int
	EagerPollInterval time.Duration

	// ConfirmPollAttempts/ConfirmPollInterval bound the background
	// confirmation poll. Defaults: 20 attempts, 3s apart.
	ConfirmPollAttempts int
	ConfirmPollInterval time.Duration

	// LockTTL is the distributed lock lifetime (default 30s).
	LockTTL time.Duration

	// LockRetryInterval is the wait between lock acquisition attempts
	// (default 500ms).
	LockRetryInterval time.Duration

	// Logger for orchestration diagnostics.
	Logger *slog.Logger
}

// connectionService orchestrates broker connection setup: entity creation,
// duplicate resolution, reuse-or-initiate, and status bookkeeping.
type connectionService struct {
	broker     driven.BrokerClient
	store      driven.ConnectionStore
	tokenStore driven.TokenStore
	resolver   *Resolver
	activation *Activation
	lock       driven.DistributedLock
	taskQueue  driven.TaskQueue
	appName    string
	logger     *slog.Logger

	eagerAttempts   int
	eagerInterval   time.Duration
	confirmAttempts int
	confirmInterval time.Duration
	lockTTL         time.Duration
	lockRetry       time.Duration

	// group collapses concurrent EnsureConnection calls for the same user
	// within this process; the distributed lock covers other instances.
	group singleflight.Group
}

// NewConnectionService creates a new connection service.
func NewConnectionService(cfg ConnectionServiceConfig) driving.ConnectionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eagerAttempts := cfg.EagerPollAttempts
	if eagerAttempts <= 0 {
		eagerAttempts = 5
	}
	eagerInterval := cfg.EagerPollInterval
	if eagerInterval <= 0 {
		eagerInterval = 2 * time.Second
	}
	confirmAttempts := cfg.ConfirmPollAttempts
	if confirmAttempts <= 0 {
		confirmAttempts = 20
	}
	confirmInterval := cfg.ConfirmPollInterval
	if confirmInterval <= 0 {
		confirmInterval = 3 * time.Second
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	lockRetry := cfg.LockRetryInterval
	if lockRetry <= 0 {
		lockRetry = 500 * time.Millisecond
	}

	return &connectionService{
		broker:          cfg.Broker,
		store:           cfg.ConnectionStore,
		tokenStore:      cfg.TokenStore,
		resolver:        cfg.Resolver,
		activation:      cfg.Activation,
		lock:            cfg.Lock,
		taskQueue:       cfg.TaskQueue,
		appName:         cfg.AppName,
		logger:          logger,
		eagerAttempts:   eagerAttempts,
		eagerInterval:   eagerInterval,
		confirmAttempts: confirmAttempts,
		confirmInterval: confirmInterval,
		lockTTL:         lockTTL,
		lockRetry:       lockRetry,
	}
}

// EnsureConnection converges the user onto exactly one usable broker
// connection. Calls for the same user are serialized: singleflight collapses
// them in-process, the distributed lock fences other instances. Racing
// unserialized is exactly what creates duplicate broker connections.
func (s *connectionService) EnsureConnection(ctx context.Context, userID string) (*driving.ConnectionStatusResponse, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}

	result, err, _ := s.group.Do(userID, func() (interface{}, error) {
		return s.ensureLocked(ctx, userID)
	})
	if result == nil {
		return nil, err
	}
	return result.(*driving.ConnectionStatusResponse), err
}

func (s *connectionService) ensureLocked(ctx context.Context, userID string) (*driving.ConnectionStatusResponse, error) {
	lockName := "connection:" + userID

	acquired, err := s.acquireWithRetry(ctx, lockName)
	if err != nil {
		return nil, fmt.Errorf("acquire setup lock: %w", err)
	}
	if !acquired {
		// Another instance is mid-setup for this user; report what we have
		// instead of racing it.
		s.logger.Warn("setup lock busy, returning stored state", "user_id", userID)
		return s.storedResponse(ctx, userID), nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			s.logger.Warn("release setup lock", "user_id", userID, "error", err)
		}
	}()

	resp, err := s.ensureConnection(ctx, userID)
	if err != nil {
		// Persist the failure so subsequent calls see a stable diagnostic
		// instead of silently repeating it.
		s.persistError(ctx, userID, err.Error())
		return nil, err
	}
	return resp, nil
}

func (s *connectionService) acquireWithRetry(ctx context.Context, name string) (bool, error) {
	for attempt := 0; attempt < 10; attempt++ {
		acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(s.lockRetry):
		}
	}
	return false, nil
}

func (s *connectionService) ensureConnection(ctx context.Context, userID string) (*driving.ConnectionStatusResponse, error) {
	entityID := domain.EntityIDFromUserID(userID)

	if err := s.broker.EnsureEntity(ctx, entityID); err != nil {
		return nil, fmt.Errorf("ensure broker entity: %w", err)
	}

	candidates, err := s.broker.ListConnections(ctx, entityID, s.appName)
	if err != nil {
		return nil, fmt.Errorf("list broker connections: %w", err)
	}

	resolution := s.resolver.Resolve(candidates)
	if len(resolution.ToDelete) > 0 {
		s.logger.Info("resolving duplicate connections",
			"user_id", userID,
			"kept", resolution.Keep.ID,
			"duplicates", len(resolution.ToDelete))
		s.resolver.DeleteDuplicates(ctx, resolution.ToDelete)
	}

	if keep := resolution.Keep; keep != nil {
		// Initial setup reads the broker status leniently: an "initiated"
		// connection is worth reusing, not replacing.
		switch s.activation.Classify(keep.Status, domain.StrictnessLenient) {
		case domain.ConnectionStatusActive:
			return s.persistStatus(ctx, userID, entityID, keep.ID, domain.ConnectionStatusActive, keep.RedirectURL, "")
		case domain.ConnectionStatusPending:
			return s.eagerPoll(ctx, userID, entityID, keep)
		default:
			// Failed candidate; fall through and initiate a fresh one.
			s.logger.Info("kept candidate unusable, initiating new connection",
				"user_id", userID, "broker_status", keep.Status)
		}
	}

	return s.initiate(ctx, userID, entityID)
}

// eagerPoll runs the short, bounded opportunistic poll. A timeout is not a
// failure: the connection stays pending and the user finishes authorization
// out of band.
func (s *connectionService) eagerPoll(ctx context.Context, userID, entityID string, keep *domain.ConnectionCandidate) (*driving.ConnectionStatusResponse, error) {
	candidate, err := s.activation.PollUntilActive(ctx, keep.ID, s.eagerAttempts, s.eagerInterval)
	if err != nil {
		return nil, fmt.Errorf("poll connection %s: %w", keep.ID, err)
	}

	if candidate == nil {
		resp, perr := s.persistStatus(ctx, userID, entityID, keep.ID, domain.ConnectionStatusPending, keep.RedirectURL, "")
		if perr != nil {
			return nil, perr
		}
		s.enqueueConfirmation(ctx, userID, keep.ID)
		return resp, nil
	}

	if s.activation.Classify(candidate.Status, domain.StrictnessStrict) == domain.ConnectionStatusActive {
		return s.persistStatus(ctx, userID, entityID, candidate.ID, domain.ConnectionStatusActive, "", "")
	}
	return s.persistStatus(ctx, userID, entityID, candidate.ID, domain.ConnectionStatusError, "",
		"broker reported: "+candidate.Status)
}

func (s *connectionService) initiate(ctx context.Context, userID, entityID string) (*driving.ConnectionStatusResponse, error) {
	candidate, err := s.broker.InitiateConnection(ctx, entityID, s.appName)
	if err != nil {
		return nil, fmt.Errorf("initiate broker connection: %w", err)
	}
	if candidate.ID == "" {
		return nil, &domain.ValidationError{Field: "connection_id", Reason: "broker initiated a connection without an id"}
	}
	if candidate.RedirectURL == "" {
		// Without a redirect URL the user can never complete authorization.
		return nil, &domain.ValidationError{Field: "redirect_url", Reason: "broker initiated a connection without a redirect URL"}
	}

	resp, err := s.persistStatus(ctx, userID, entityID, candidate.ID, domain.ConnectionStatusPending, candidate.RedirectURL, "")
	if err != nil {
		return nil, err
	}
	s.enqueueConfirmation(ctx, userID, candidate.ID)
	return resp, nil
}

// CheckStatus re-probes the user's connection.
func (s *connectionService) CheckStatus(ctx context.Context, userID string) (*driving.ConnectionStatusResponse, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}

	conn, err := s.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrConnectionNotFound) {
		return &driving.ConnectionStatusResponse{Status: domain.ConnectionStatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	switch conn.Status {
	case domain.ConnectionStatusPending:
		return s.probePending(ctx, conn)
	case domain.ConnectionStatusActive, domain.ConnectionStatusDisconnected:
		return s.probeCapability(ctx, conn)
	default:
		return responseFrom(conn), nil
	}
}

// probePending classifies the broker's current status strictly and updates
// the stored record.
func (s *connectionService) probePending(ctx context.Context, conn *domain.UserConnection) (*driving.ConnectionStatusResponse, error) {
	candidate, err := s.broker.GetConnection(ctx, conn.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", conn.ConnectionID, err)
	}

	switch s.activation.Classify(candidate.Status, domain.StrictnessStrict) {
	case domain.ConnectionStatusActive:
		return s.persistStatus(ctx, conn.UserID, conn.EntityID, candidate.ID, domain.ConnectionStatusActive, "", "")
	case domain.ConnectionStatusError:
		return s.persistStatus(ctx, conn.UserID, conn.EntityID, candidate.ID, domain.ConnectionStatusError, "",
			"broker reported: "+candidate.Status)
	default:
		return s.persistStatus(ctx, conn.UserID, conn.EntityID, candidate.ID, domain.ConnectionStatusPending, conn.RedirectURL, "")
	}
}

// probeCapability verifies the broker still exposes tools for the
// connection. Zero tools or a broker error regresses active to disconnected;
// a recovered probe brings disconnected back to active. Status transitions
// are deliberately not monotonic.
func (s *connectionService) probeCapability(ctx context.Context, conn *domain.UserConnection) (*driving.ConnectionStatusResponse, error) {
	tools, err := s.broker.ListTools(ctx, conn.EntityID, s.appName)
	if err != nil || len(tools) == 0 {
		if err != nil {
			s.logger.Warn("capability probe failed", "user_id", conn.UserID, "error", err)
		}
		return s.persistStatus(ctx, conn.UserID, conn.EntityID, conn.ConnectionID, domain.ConnectionStatusDisconnected, "", "")
	}

	resp, perr := s.persistStatus(ctx, conn.UserID, conn.EntityID, conn.ConnectionID, domain.ConnectionStatusActive, "", "")
	if perr != nil {
		return nil, perr
	}
	resp.ToolsAvailable = len(tools)
	return resp, nil
}

// ConfirmActivation runs the long strict confirmation poll for a pending
// connection. Exhausting the budget leaves the connection pending; that is
// reported to the caller as "retry later", not as a failure.
func (s *connectionService) ConfirmActivation(ctx context.Context, userID, connectionID string) (*driving.ConnectionStatusResponse, error) {
	if userID == "" || connectionID == "" {
		return nil, domain.ErrInvalidInput
	}

	conn, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn.ConnectionID != connectionID {
		// The record moved on (re-setup, sign-out) while the task was queued.
		return responseFrom(conn), nil
	}
	if conn.Status != domain.ConnectionStatusPending {
		return responseFrom(conn), nil
	}

	candidate, err := s.activation.PollUntilActive(ctx, connectionID, s.confirmAttempts, s.confirmInterval)
	if err != nil {
		return nil, fmt.Errorf("confirmation poll: %w", err)
	}
	if candidate == nil {
		return responseFrom(conn), nil
	}

	if s.activation.Classify(candidate.Status, domain.StrictnessStrict) == domain.ConnectionStatusActive {
		return s.persistStatus(ctx, userID, conn.EntityID, candidate.ID, domain.ConnectionStatusActive, "", "")
	}
	return s.persistStatus(ctx, userID, conn.EntityID, candidate.ID, domain.ConnectionStatusError, "",
		"broker reported: "+candidate.Status)
}

// ListTools returns the calendar operations available for an active connection.
func (s *connectionService) ListTools(ctx context.Context, userID string) ([]*driving.ToolSummary, error) {
	conn, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn.Status != domain.ConnectionStatusActive {
		return nil, domain.ErrConnectionNotFound
	}

	tools, err := s.broker.ListTools(ctx, conn.EntityID, s.appName)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	summaries := make([]*driving.ToolSummary, 0, len(tools))
	for _, t := range tools {
		summaries = append(summaries, &driving.ToolSummary{
			Name:        t.Name,
			DisplayName: t.DisplayName,
			Description: t.Description,
		})
	}
	return summaries, nil
}

// SignOut forgets the user's connection. The broker-side deletion is
// best-effort; the record is re-classified to not_found rather than deleted
// so retries stay idempotent. Provider tokens are cleared as well.
func (s *connectionService) SignOut(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}

	conn, err := s.store.Get(ctx, userID)
	if err == nil && conn.ConnectionID != "" {
		if !s.resolver.DeleteConnection(ctx, conn.ConnectionID) {
			s.logger.Warn("broker connection not deleted on sign-out",
				"user_id", userID, "connection_id", conn.ConnectionID)
		}
	}

	if _, err := s.persistStatus(ctx, userID, domain.EntityIDFromUserID(userID), "", domain.ConnectionStatusNotFound, "", ""); err != nil {
		return err
	}

	if err := s.tokenStore.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear provider tokens: %w", err)
	}
	return nil
}

// persistStatus writes the record after a completed step. Writes happen only
// at step boundaries, never mid-flow, except the deliberate error write in
// ensureLocked.
func (s *connectionService) persistStatus(ctx context.Context, userID, entityID, connectionID string, status domain.ConnectionStatus, redirectURL, errMsg string) (*driving.ConnectionStatusResponse, error) {
	now := time.Now()

	conn, err := s.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrConnectionNotFound) {
		conn = &domain.UserConnection{
			UserID:    userID,
			CreatedAt: now,
		}
	} else if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	conn.EntityID = entityID
	conn.ConnectionID = connectionID
	conn.Status = status
	conn.RedirectURL = ""
	if status == domain.ConnectionStatusPending {
		conn.RedirectURL = redirectURL
	}
	conn.Error = errMsg
	conn.LastUpdated = now

	if err := s.store.Save(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}
	return responseFrom(conn), nil
}

func (s *connectionService) persistError(ctx context.Context, userID, message string) {
	conn, err := s.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrConnectionNotFound) {
		conn = &domain.UserConnection{
			UserID:    userID,
			EntityID:  domain.EntityIDFromUserID(userID),
			CreatedAt: time.Now(),
		}
	} else if err != nil {
		// Best-effort diagnostic write; do not overwrite a record we could
		// not read.
		s.logger.Error("load connection for error state", "user_id", userID, "error", err)
		return
	}
	conn.Status = domain.ConnectionStatusError
	conn.Error = message
	conn.RedirectURL = ""
	conn.LastUpdated = time.Now()

	if err := s.store.Save(ctx, conn); err != nil {
		s.logger.Error("persist connection error state", "user_id", userID, "error", err)
	}
}

func (s *connectionService) storedResponse(ctx context.Context, userID string) *driving.ConnectionStatusResponse {
	conn, err := s.store.Get(ctx, userID)
	if err != nil {
		return &driving.ConnectionStatusResponse{Status: domain.ConnectionStatusPending}
	}
	return responseFrom(conn)
}

func (s *connectionService) enqueueConfirmation(ctx context.Context, userID, connectionID string) {
	if s.taskQueue == nil {
		return
	}
	task := domain.NewConnectionPollTask(userID, connectionID)
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		s.logger.Warn("enqueue confirmation poll", "user_id", userID, "error", err)
	}
}

func responseFrom(conn *domain.UserConnection) *driving.ConnectionStatusResponse {
	return &driving.ConnectionStatusResponse{
		Status:       conn.Status,
		ConnectionID: conn.ConnectionID,
		RedirectURL:  conn.RedirectURL,
		Error:        conn.Error,
	}
}
