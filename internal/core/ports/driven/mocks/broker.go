package mocks

import (
	"context"
	"sync"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure MockBrokerClient implements BrokerClient
var _ driven.BrokerClient = (*MockBrokerClient)(nil)

// MockBrokerClient is a mock implementation of BrokerClient for testing.
// Behavior is injected through the Fn hooks; unset hooks return zero values.
type MockBrokerClient struct {
	EnsureEntityFn       func(ctx context.Context, entityID string) error
	ListConnectionsFn    func(ctx context.Context, entityID, appName string) ([]*domain.ConnectionCandidate, error)
	GetConnectionFn      func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error)
	InitiateConnectionFn func(ctx context.Context, entityID, appName string) (*domain.ConnectionCandidate, error)
	ListToolsFn          func(ctx context.Context, entityID, appName string) ([]*driven.BrokerTool, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewMockBrokerClient creates a new MockBrokerClient
func NewMockBrokerClient() *MockBrokerClient {
	return &MockBrokerClient{calls: make(map[string]int)}
}

func (m *MockBrokerClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
}

// Calls returns how many times the named method was invoked.
func (m *MockBrokerClient) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockBrokerClient) EnsureEntity(ctx context.Context, entityID string) error {
	m.record("EnsureEntity")
	if m.EnsureEntityFn != nil {
		return m.EnsureEntityFn(ctx, entityID)
	}
	return nil
}

func (m *MockBrokerClient) ListConnections(ctx context.Context, entityID, appName string) ([]*domain.ConnectionCandidate, error) {
	m.record("ListConnections")
	if m.ListConnectionsFn != nil {
		return m.ListConnectionsFn(ctx, entityID, appName)
	}
	return nil, nil
}

func (m *MockBrokerClient) GetConnection(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
	m.record("GetConnection")
	if m.GetConnectionFn != nil {
		return m.GetConnectionFn(ctx, connectionID)
	}
	return nil, domain.ErrConnectionNotFound
}

func (m *MockBrokerClient) InitiateConnection(ctx context.Context, entityID, appName string) (*domain.ConnectionCandidate, error) {
	m.record("InitiateConnection")
	if m.InitiateConnectionFn != nil {
		return m.InitiateConnectionFn(ctx, entityID, appName)
	}
	return nil, domain.ErrBrokerUnavailable
}

func (m *MockBrokerClient) ListTools(ctx context.Context, entityID, appName string) ([]*driven.BrokerTool, error) {
	m.record("ListTools")
	if m.ListToolsFn != nil {
		return m.ListToolsFn(ctx, entityID, appName)
	}
	return nil, nil
}

// MockConnectionDeleter is a mock implementation of ConnectionDeleter.
type MockConnectionDeleter struct {
	NameVal  string
	DeleteFn func(ctx context.Context, connectionID string) error

	mu      sync.Mutex
	Deleted []string
}

// NewMockConnectionDeleter creates a deleter that records deleted ids.
func NewMockConnectionDeleter(name string) *MockConnectionDeleter {
	return &MockConnectionDeleter{NameVal: name}
}

func (m *MockConnectionDeleter) Name() string { return m.NameVal }

func (m *MockConnectionDeleter) Delete(ctx context.Context, connectionID string) error {
	if m.DeleteFn != nil {
		if err := m.DeleteFn(ctx, connectionID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, connectionID)
	return nil
}
