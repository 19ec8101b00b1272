package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
	"github.com/skej-labs/skej-core/internal/core/ports/driven/mocks"
)

type connectionFixture struct {
	broker  *mocks.MockBrokerClient
	store   *mocks.MockConnectionStore
	tokens  *mocks.MockTokenStore
	lock    *mocks.MockDistributedLock
	queue   *mocks.MockTaskQueue
	deleter *mocks.MockConnectionDeleter
	svc     *connectionService
}

func newConnectionFixture() *connectionFixture {
	broker := mocks.NewMockBrokerClient()
	store := mocks.NewMockConnectionStore()
	tokens := mocks.NewMockTokenStore()
	lock := mocks.NewMockDistributedLock()
	queue := mocks.NewMockTaskQueue()
	deleter := mocks.NewMockConnectionDeleter("test")

	resolver := NewResolver([]driven.ConnectionDeleter{deleter}, nil)
	activation := NewActivation(ActivationConfig{
		Broker:                broker,
		UnknownStatusIsActive: true,
	})

	svc := NewConnectionService(ConnectionServiceConfig{
		Broker:            broker,
		ConnectionStore:   store,
		TokenStore:        tokens,
		Resolver:          resolver,
		Activation:        activation,
		Lock:              lock,
		TaskQueue:         queue,
		AppName:           "googlecalendar",
		EagerPollAttempts: 2,
		EagerPollInterval: time.Millisecond,
		LockRetryInterval: time.Millisecond,
	}).(*connectionService)

	return &connectionFixture{
		broker:  broker,
		store:   store,
		tokens:  tokens,
		lock:    lock,
		queue:   queue,
		deleter: deleter,
		svc:     svc,
	}
}

func TestEnsureConnection_EmptyUser(t *testing.T) {
	f := newConnectionFixture()

	_, err := f.svc.EnsureConnection(context.Background(), "")
	if err != domain.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEnsureConnection_InitiatesWhenNoCandidates(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	f.broker.InitiateConnectionFn = func(ctx context.Context, entityID, appName string) (*domain.ConnectionCandidate, error) {
		if entityID != "user-1" {
			t.Errorf("expected derived entity id user-1, got %s", entityID)
		}
		return &domain.ConnectionCandidate{
			ID:          "conn-new",
			Status:      "initiated",
			RedirectURL: "https://broker.example.com/authorize/conn-new",
		}, nil
	}

	resp, err := f.svc.EnsureConnection(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != domain.ConnectionStatusPending {
		t.Errorf("expected pending, got %s", resp.Status)
	}
	if resp.RedirectURL == "" {
		t.Error("expected redirect URL for the user to finish authorization")
	}
	if f.broker.Calls("EnsureEntity") != 1 {
		t.Error("expected broker entity to be ensured first")
	}

	// A confirmation poll task must be queued for the pending connection.
	polls := f.queue.TasksByType(domain.TaskTypeConnectionPoll)
	if len(polls) != 1 {
		t.Fatalf("expected 1 confirmation poll task, got %d", len(polls))
	}
	if polls[0].ConnectionID() != "conn-new" {
		t.Errorf("expected poll task for conn-new, got %s", polls[0].ConnectionID())
	}

	// The persisted record matches the response.
	conn, err := f.store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected persisted connection: %v", err)
	}
	if conn.Status != domain.ConnectionStatusPending || conn.ConnectionID != "conn-new" {
		t.Errorf("persisted record mismatch: %+v", conn)
	}
}

func TestEnsureConnection_ReusesActiveCandidate(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	f.broker.ListConnectionsFn = func(ctx context.Context, entityID, appName string) ([]*domain.ConnectionCandidate, error) {
		return []*domain.ConnectionCandidate{
			{ID: "conn-live", Status: "active", CreatedAt: time.Now()},
		}, nil
	}

	resp, err := f.svc.EnsureConnection(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != domain.ConnectionStatusActive {
		t.Errorf("expected active, got %s", resp.Status)
	}
	if resp.ConnectionID != "conn-live" {
		t.Errorf("expected conn-live reused, got %s", resp.ConnectionID)
	}
	if f.broker.Calls("InitiateConnection") != 0 {
		t.Error("an active candidate must be reused, not replaced")
	}
}

func TestEnsureConnection_ReusesInitiatedCandidateLeniently(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	// "initiated" is lenient-active for reuse; the eager poll then watches it
	// strictly and it turns active on the second fetch.
	fetches := 0
	f.broker.ListConnectionsFn = func(ctx context.Context, entityID, appName string) ([]*domain.ConnectionCandidate, error) {
		return []*domain.ConnectionCandidate{
			{ID: "conn-init", Status: "initiated", RedirectURL: "https://broker/auth", CreatedAt: time.Now()},
		}, nil
	}
	f.broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		fetches++
		status := "initiated"
		if fetches >= 2 {
			status = "active"
		}
		return &domain.ConnectionCandidate{ID: connectionID, Status: status}, nil
	}

	resp, err := f.svc.EnsureConnection(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Lenient classification says reuse; since it reads as active the record
	// is persisted active without further polling.
	if resp.Status != domain.ConnectionStatusActive {
		t.Errorf("expected active, got %s", resp.Status)
	}
	if resp.ConnectionID != "conn-init" {
		t.Errorf("expected conn-init reused, got %s", resp.ConnectionID)
	}
}

func TestEnsureConnection_ResolvesDuplicates(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	f.broker.ListConnectionsFn = func(ctx context.Context, entityID, appName string) ([]*domain.ConnectionCandidate, error) {
		return []*domain.ConnectionCandidate{
			{ID: "conn-dup-1", Status: "initiated", CreatedAt: time.Now().Add(-time.Hour)},
			{ID: "conn-live", Status: "active", CreatedAt: time.Now().Add(-time.Minute)},
			{ID: "conn-dup-2", Status: "failed", CreatedAt: time.Now()},
		}, nil
	}

	resp, err := f.svc.EnsureConnection(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.ConnectionID != "conn-live" {
		t.Errorf("expected the active candidate kept, got %s", resp.ConnectionID)
	}
	if len(f.deleter.Deleted) != 2 {
		t.Errorf("expected 2 duplicates deleted, got %d: %v", len(f.deleter.Deleted), f.deleter.Deleted)
	}
	for _, id := range f.deleter.Deleted {
		if id == "conn-live" {
			t.Error("the kept connection must never be deleted")
		}
	}
}

func TestEnsureConnection_EagerPollTimesOutToPending(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	f.broker.ListConnectionsFn = func(ctx context.Context, entityID, appName string) ([]*domain.ConnectionCandidate, error) {
		return []*domain.ConnectionCandidate{
			{ID: "conn-slow", Status: "pending_authorization", RedirectURL: "https://broker/auth", CreatedAt: time.Now()},
		}, nil
	}
	f.broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		return &domain.ConnectionCandidate{ID: connectionID, Status: "pending_authorization"}, nil
	}

	resp, err := f.svc.EnsureConnection(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != domain.ConnectionStatusPending {
		t.Errorf("expected pending after eager poll timeout, got %s", resp.Status)
	}
	if resp.RedirectURL != "https://broker/auth" {
		t.Errorf("expected redirect URL kept while pending, got %q", resp.RedirectURL)
	}
	if len(f.queue.TasksByType(domain.TaskTypeConnectionPoll)) != 1 {
		t.Error("expected confirmation poll task enqueued")
	}
}

func TestEnsureConnection_InitiateWithoutRedirectFails(t *testing.T) {
	f := newConnectionFixture()

	f.broker.InitiateConnectionFn = func(ctx context.Context, entityID, appName string) (*domain.ConnectionCandidate, error) {
		return &domain.ConnectionCandidate{ID: "conn-broken", Status: "initiated"}, nil
	}

	_, err := f.svc.EnsureConnection(context.Background(), "user-1")

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "redirect_url" {
		t.Errorf("expected redirect_url validation failure, got %s", validationErr.Field)
	}

	// The failure is persisted for later status calls.
	conn, gerr := f.store.Get(context.Background(), "user-1")
	if gerr != nil {
		t.Fatalf("expected persisted error record: %v", gerr)
	}
	if conn.Status != domain.ConnectionStatusError {
		t.Errorf("expected persisted error status, got %s", conn.Status)
	}
}

func TestEnsureConnection_LockBusyReturnsStoredState(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-old",
		Status:       domain.ConnectionStatusPending,
		RedirectURL:  "https://broker/auth",
	})

	// Simulate another instance holding the per-user lock without ever
	// releasing it within the retry budget.
	f.lock.AcquireFn = func(ctx context.Context, name string, ttl time.Duration) (bool, error) {
		return false, nil
	}

	resp, err := f.svc.EnsureConnection(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ConnectionID != "conn-old" {
		t.Errorf("expected stored state returned while lock is busy, got %+v", resp)
	}
	if f.broker.Calls("InitiateConnection") != 0 {
		t.Error("must not touch the broker while another instance holds the lock")
	}
}

func TestCheckStatus_NotFound(t *testing.T) {
	f := newConnectionFixture()

	resp, err := f.svc.CheckStatus(context.Background(), "user-unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.ConnectionStatusNotFound {
		t.Errorf("expected not_found, got %s", resp.Status)
	}
}

func TestCheckStatus_StoreFailurePropagates(t *testing.T) {
	f := newConnectionFixture()

	readErr := errors.New("connection refused")
	f.store.GetFn = func(ctx context.Context, userID string) (*domain.UserConnection, error) {
		return nil, readErr
	}

	// A transient store failure is not the same as an absent record.
	_, err := f.svc.CheckStatus(context.Background(), "user-1")
	if !errors.Is(err, readErr) {
		t.Fatalf("expected the store error propagated, got %v", err)
	}
}

func TestPersistStatus_StoreReadFailureDoesNotResetRecord(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	created := time.Now().Add(-time.Hour)
	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-1",
		Status:       domain.ConnectionStatusActive,
		CreatedAt:    created,
	})

	readErr := errors.New("connection refused")
	f.store.GetFn = func(ctx context.Context, userID string) (*domain.UserConnection, error) {
		return nil, readErr
	}

	_, err := f.svc.persistStatus(ctx, "user-1", "user-1", "conn-1", domain.ConnectionStatusDisconnected, "", "")
	if !errors.Is(err, readErr) {
		t.Fatalf("expected the store error propagated, got %v", err)
	}

	f.store.GetFn = nil
	conn, err := f.store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if conn.Status != domain.ConnectionStatusActive {
		t.Errorf("record must be untouched after a read failure, got %s", conn.Status)
	}
	if !conn.CreatedAt.Equal(created) {
		t.Error("created_at must survive a transient read failure")
	}
}

func TestCheckStatus_PendingBecomesActive(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-1",
		Status:       domain.ConnectionStatusPending,
	})

	f.broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		return &domain.ConnectionCandidate{ID: connectionID, Status: "active"}, nil
	}

	resp, err := f.svc.CheckStatus(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.ConnectionStatusActive {
		t.Errorf("expected active, got %s", resp.Status)
	}
	if resp.RedirectURL != "" {
		t.Error("redirect URL must be cleared once active")
	}
}

func TestCheckStatus_CapabilityProbeRegressesActive(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-1",
		Status:       domain.ConnectionStatusActive,
	})

	// Broker exposes zero tools: the connection is not usable anymore.
	f.broker.ListToolsFn = func(ctx context.Context, entityID, appName string) ([]*driven.BrokerTool, error) {
		return nil, nil
	}

	resp, err := f.svc.CheckStatus(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.ConnectionStatusDisconnected {
		t.Errorf("expected disconnected, got %s", resp.Status)
	}
}

func TestCheckStatus_CapabilityProbeRecoversDisconnected(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-1",
		Status:       domain.ConnectionStatusDisconnected,
	})

	f.broker.ListToolsFn = func(ctx context.Context, entityID, appName string) ([]*driven.BrokerTool, error) {
		return []*driven.BrokerTool{
			{Name: "GOOGLECALENDAR_CREATE_EVENT"},
			{Name: "GOOGLECALENDAR_LIST_EVENTS"},
		}, nil
	}

	resp, err := f.svc.CheckStatus(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.ConnectionStatusActive {
		t.Errorf("expected disconnected to recover to active, got %s", resp.Status)
	}
	if resp.ToolsAvailable != 2 {
		t.Errorf("expected 2 tools reported, got %d", resp.ToolsAvailable)
	}
}

func TestConfirmActivation_StaleConnectionID(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-current",
		Status:       domain.ConnectionStatusPending,
	})

	// Task was queued for an older connection; the record moved on.
	resp, err := f.svc.ConfirmActivation(ctx, "user-1", "conn-stale")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ConnectionID != "conn-current" {
		t.Errorf("expected current record returned untouched, got %+v", resp)
	}
	if f.broker.Calls("GetConnection") != 0 {
		t.Error("a stale task must not poll the broker")
	}
}

func TestConfirmActivation_PendingBecomesActive(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-1",
		Status:       domain.ConnectionStatusPending,
	})

	f.broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		return &domain.ConnectionCandidate{ID: connectionID, Status: "active"}, nil
	}

	resp, err := f.svc.ConfirmActivation(ctx, "user-1", "conn-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.ConnectionStatusActive {
		t.Errorf("expected active, got %s", resp.Status)
	}
}

func TestListTools_RequiresActive(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-1",
		Status:       domain.ConnectionStatusPending,
	})

	_, err := f.svc.ListTools(ctx, "user-1")
	if err != domain.ErrConnectionNotFound {
		t.Errorf("expected ErrConnectionNotFound for non-active connection, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-1",
		Status:       domain.ConnectionStatusActive,
	})
	_ = f.tokens.Save(ctx, &domain.TokenRecord{
		UserID:      "user-1",
		AccessToken: "secret",
	})

	if err := f.svc.SignOut(ctx, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Broker side deleted best-effort
	if len(f.deleter.Deleted) != 1 || f.deleter.Deleted[0] != "conn-1" {
		t.Errorf("expected broker connection deleted, got %v", f.deleter.Deleted)
	}

	// Record re-classified, not removed
	conn, err := f.store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected record to survive sign-out: %v", err)
	}
	if conn.Status != domain.ConnectionStatusNotFound {
		t.Errorf("expected not_found after sign-out, got %s", conn.Status)
	}

	// Provider tokens cleared
	if _, err := f.tokens.Get(ctx, "user-1"); err != domain.ErrNoTokens {
		t.Error("expected provider tokens cleared on sign-out")
	}

	// Sign-out again is idempotent
	if err := f.svc.SignOut(ctx, "user-1"); err != nil {
		t.Errorf("expected repeated sign-out to succeed, got %v", err)
	}
}

func TestSignOut_BrokerDeletionFailureIsNotFatal(t *testing.T) {
	f := newConnectionFixture()
	ctx := context.Background()

	_ = f.store.Save(ctx, &domain.UserConnection{
		UserID:       "user-1",
		EntityID:     "user-1",
		ConnectionID: "conn-1",
		Status:       domain.ConnectionStatusActive,
	})

	f.deleter.DeleteFn = func(ctx context.Context, connectionID string) error {
		return errors.New("broker down")
	}

	if err := f.svc.SignOut(ctx, "user-1"); err != nil {
		t.Fatalf("sign-out must succeed even when the broker deletion fails: %v", err)
	}

	conn, _ := f.store.Get(ctx, "user-1")
	if conn.Status != domain.ConnectionStatusNotFound {
		t.Errorf("expected not_found, got %s", conn.Status)
	}
}
