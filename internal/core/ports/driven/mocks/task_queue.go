package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure MockTaskQueue implements TaskQueue
var _ driven.TaskQueue = (*MockTaskQueue)(nil)

// MockTaskQueue is an in-memory TaskQueue for testing.
// Dequeue is non-blocking; DequeueWithTimeout does not wait.
type MockTaskQueue struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task

	// Optional behavior hooks
	EnqueueFn func(ctx context.Context, task *domain.Task) error
	DequeueFn func(ctx context.Context) (*domain.Task, error)
}

// NewMockTaskQueue creates a new MockTaskQueue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{tasks: make(map[string]*domain.Task)}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *MockTaskQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	if m.DequeueFn != nil {
		return m.DequeueFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var ready []*domain.Task
	for _, task := range m.tasks {
		if task.IsReady() {
			ready = append(ready, task)
		}
	}
	if len(ready) == 0 {
		return nil, nil
	}

	// Highest priority first, then oldest scheduled
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].ScheduledFor.Before(ready[j].ScheduledFor)
	})

	task := ready[0]
	task.MarkProcessing()
	copied := *task
	return &copied, nil
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	return m.Dequeue(ctx)
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, nil
	}
	copied := *task
	return &copied, nil
}

func (m *MockTaskQueue) PurgeTasks(ctx context.Context, olderThan int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(olderThan) * time.Second)
	purged := 0
	for id, task := range m.tasks {
		if (task.Status == domain.TaskStatusCompleted || task.Status == domain.TaskStatusFailed) &&
			task.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error { return nil }

func (m *MockTaskQueue) Close() error { return nil }

// TasksByType returns all tasks of a type (test helper).
func (m *MockTaskQueue) TasksByType(taskType domain.TaskType) []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, task := range m.tasks {
		if task.Type == taskType {
			copied := *task
			out = append(out, &copied)
		}
	}
	return out
}

// Len returns the number of stored tasks (test helper).
func (m *MockTaskQueue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
