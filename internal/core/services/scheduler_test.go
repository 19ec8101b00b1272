package services

import (
	"context"
	"testing"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
	"github.com/skej-labs/skej-core/internal/core/ports/driven/mocks"
)

type schedulerFixture struct {
	states *mocks.MockOAuthStateStore
	conns  *mocks.MockConnectionStore
	queue  *mocks.MockTaskQueue
	lock   *mocks.MockDistributedLock
	sched  *Scheduler
}

func newSchedulerFixture() *schedulerFixture {
	states := mocks.NewMockOAuthStateStore()
	conns := mocks.NewMockConnectionStore()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()

	sched := NewScheduler(SchedulerConfig{
		OAuthStateStore: states,
		ConnectionStore: conns,
		TaskQueue:       queue,
		Lock:            lock,
		Interval:        time.Hour, // ticks are driven manually in tests
		PendingAge:      60,
	})

	return &schedulerFixture{
		states: states,
		conns:  conns,
		queue:  queue,
		lock:   lock,
		sched:  sched,
	}
}

func TestSchedulerTick_CleansExpiredStates(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()

	_ = f.states.Save(ctx, &driven.OAuthState{
		State:     "expired",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	_ = f.states.Save(ctx, &driven.OAuthState{
		State:     "live",
		UserID:    "user-2",
		ExpiresAt: time.Now().Add(time.Minute),
	})

	f.sched.tick(ctx)

	if f.states.Count() != 1 {
		t.Errorf("expected only the live attempt to survive, have %d", f.states.Count())
	}
}

func TestSchedulerTick_ReenqueuesStalePending(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()

	stale := time.Now().Add(-5 * time.Minute)

	_ = f.conns.Save(ctx, &domain.UserConnection{
		UserID:       "user-stale",
		EntityID:     "user-stale",
		ConnectionID: "conn-stale",
		Status:       domain.ConnectionStatusPending,
		LastUpdated:  stale,
	})
	// Fresh pending connection is left to its original confirmation poll.
	_ = f.conns.Save(ctx, &domain.UserConnection{
		UserID:       "user-fresh",
		EntityID:     "user-fresh",
		ConnectionID: "conn-fresh",
		Status:       domain.ConnectionStatusPending,
		LastUpdated:  time.Now(),
	})
	// Pending record without a broker connection cannot be probed.
	_ = f.conns.Save(ctx, &domain.UserConnection{
		UserID:      "user-empty",
		EntityID:    "user-empty",
		Status:      domain.ConnectionStatusPending,
		LastUpdated: stale,
	})
	// Active connections are never re-probed by the scheduler.
	_ = f.conns.Save(ctx, &domain.UserConnection{
		UserID:       "user-active",
		EntityID:     "user-active",
		ConnectionID: "conn-active",
		Status:       domain.ConnectionStatusActive,
		LastUpdated:  stale,
	})

	f.sched.tick(ctx)

	polls := f.queue.TasksByType(domain.TaskTypeConnectionPoll)
	if len(polls) != 1 {
		t.Fatalf("expected exactly 1 probe enqueued, got %d", len(polls))
	}
	if polls[0].UserID() != "user-stale" || polls[0].ConnectionID() != "conn-stale" {
		t.Errorf("probe enqueued for the wrong record: %+v", polls[0].Payload)
	}
}

func TestSchedulerTick_PurgesOldTasks(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()

	old := domain.NewConnectionPollTask("user-1", "conn-1")
	old.MarkCompleted()
	old.UpdatedAt = time.Now().Add(-48 * time.Hour)
	_ = f.queue.Enqueue(ctx, old)

	recent := domain.NewConnectionPollTask("user-2", "conn-2")
	_ = f.queue.Enqueue(ctx, recent)

	f.sched.tick(ctx)

	if f.queue.Len() != 1 {
		t.Errorf("expected old finished task purged, queue has %d tasks", f.queue.Len())
	}
	if task, _ := f.queue.GetTask(ctx, recent.ID); task == nil {
		t.Error("recent task must survive the purge")
	}
}

func TestSchedulerTick_SkipsWhenLockHeld(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()

	_ = f.conns.Save(ctx, &domain.UserConnection{
		UserID:       "user-stale",
		EntityID:     "user-stale",
		ConnectionID: "conn-stale",
		Status:       domain.ConnectionStatusPending,
		LastUpdated:  time.Now().Add(-5 * time.Minute),
	})

	f.lock.SetLockHeld("scheduler", time.Minute)

	f.sched.tick(ctx)

	if f.queue.Len() != 0 {
		t.Error("another instance holds the lock, this one must not enqueue")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()

	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Second start is a no-op.
	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("double start: %v", err)
	}

	f.sched.Stop()
	// Second stop is a no-op.
	f.sched.Stop()
}
