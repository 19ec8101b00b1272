package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Scheduler runs the periodic housekeeping of the connection lifecycle:
// expired OAuth attempts are purged, stale pending connections get a
// confirmation poll re-enqueued, and old finished tasks are swept.
//
// For multi-worker deployments, configure a DistributedLock to prevent
// duplicate enqueuing across instances.
type Scheduler struct {
	oauthStateStore driven.OAuthStateStore
	connectionStore driven.ConnectionStore
	taskQueue       driven.TaskQueue
	lock            driven.DistributedLock
	logger          *slog.Logger

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	interval      time.Duration
	pendingAge    int // seconds a connection must have been pending before re-probing
	taskRetention int // seconds finished tasks are kept
	lockTTL       time.Duration
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	OAuthStateStore driven.OAuthStateStore
	ConnectionStore driven.ConnectionStore
	TaskQueue       driven.TaskQueue
	Lock            driven.DistributedLock // Optional: lock for multi-instance coordination
	Logger          *slog.Logger
	Interval        time.Duration // How often housekeeping runs (default: 60s)
	PendingAge      int           // Seconds pending before a re-probe is enqueued (default: 120)
	TaskRetention   int           // Seconds finished tasks are kept (default: 24h)
	LockTTL         time.Duration // TTL for the distributed lock (default: 2x interval)
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 60 * time.Second
	}

	pendingAge := cfg.PendingAge
	if pendingAge == 0 {
		pendingAge = 120
	}

	taskRetention := cfg.TaskRetention
	if taskRetention == 0 {
		taskRetention = int((24 * time.Hour).Seconds())
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	return &Scheduler{
		oauthStateStore: cfg.OAuthStateStore,
		connectionStore: cfg.ConnectionStore,
		taskQueue:       cfg.TaskQueue,
		lock:            cfg.Lock,
		logger:          logger,
		interval:        interval,
		pendingAge:      pendingAge,
		taskRetention:   taskRetention,
		lockTTL:         lockTTL,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "interval", s.interval)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one housekeeping pass, under the distributed lock when one is
// configured.
func (s *Scheduler) tick(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, "scheduler", s.lockTTL)
		if err != nil {
			s.logger.Warn("scheduler lock error", "error", err)
			return
		}
		if !acquired {
			// Another instance is running this pass.
			return
		}
		defer func() {
			_ = s.lock.Release(ctx, "scheduler")
		}()
	}

	if err := s.oauthStateStore.Cleanup(ctx); err != nil {
		s.logger.Warn("oauth state cleanup failed", "error", err)
	}

	s.enqueuePendingProbes(ctx)

	if purged, err := s.taskQueue.PurgeTasks(ctx, s.taskRetention); err != nil {
		s.logger.Warn("task purge failed", "error", err)
	} else if purged > 0 {
		s.logger.Info("purged finished tasks", "count", purged)
	}
}

// enqueuePendingProbes re-enqueues confirmation polls for connections that
// have been pending longer than the configured age. The poll itself stays
// idempotent, so an extra task for a connection that already settled is
// harmless.
func (s *Scheduler) enqueuePendingProbes(ctx context.Context) {
	pending, err := s.connectionStore.ListPending(ctx, s.pendingAge)
	if err != nil {
		s.logger.Warn("list pending connections failed", "error", err)
		return
	}

	for _, conn := range pending {
		if conn.ConnectionID == "" {
			continue
		}
		task := domain.NewConnectionPollTask(conn.UserID, conn.ConnectionID)
		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			s.logger.Warn("enqueue pending probe failed", "user_id", conn.UserID, "error", err)
		}
	}

	if len(pending) > 0 {
		s.logger.Info("enqueued pending connection probes", "count", len(pending))
	}
}
