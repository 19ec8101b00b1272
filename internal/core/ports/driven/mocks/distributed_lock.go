package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure MockDistributedLock implements DistributedLock
var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is an in-memory DistributedLock for testing.
// Locks expire based on TTL like the real implementations.
type MockDistributedLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	// Optional behavior hooks
	AcquireFn func(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseFn func(ctx context.Context, name string) error
	ExtendFn  func(ctx context.Context, name string, ttl time.Duration) error
	PingFn    func(ctx context.Context) error
}

type lockEntry struct {
	expiresAt time.Time
}

// NewMockDistributedLock creates a new MockDistributedLock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{locks: make(map[string]*lockEntry)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(ctx, name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.locks[name]; ok && time.Now().Before(entry.expiresAt) {
		return false, nil
	}

	m.locks[name] = &lockEntry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(ctx, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	if m.ExtendFn != nil {
		return m.ExtendFn(ctx, name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.locks[name]; ok && time.Now().Before(entry.expiresAt) {
		entry.expiresAt = time.Now().Add(ttl)
	}
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// IsHeld reports whether the named lock is currently held (test helper).
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[name]
	return ok && time.Now().Before(entry.expiresAt)
}

// SetLockHeld forces a lock into the held state (test helper).
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[name] = &lockEntry{expiresAt: time.Now().Add(ttl)}
}

// Reset clears all held locks.
func (m *MockDistributedLock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = make(map[string]*lockEntry)
}
