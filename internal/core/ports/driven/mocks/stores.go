package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Interface compliance
var (
	_ driven.TokenStore      = (*MockTokenStore)(nil)
	_ driven.ConnectionStore = (*MockConnectionStore)(nil)
	_ driven.OAuthStateStore = (*MockOAuthStateStore)(nil)
)

// MockTokenStore is an in-memory TokenStore for testing.
type MockTokenStore struct {
	mu      sync.RWMutex
	records map[string]*domain.TokenRecord

	// Optional behavior hooks
	SaveFn   func(ctx context.Context, record *domain.TokenRecord) error
	GetFn    func(ctx context.Context, userID string) (*domain.TokenRecord, error)
	DeleteFn func(ctx context.Context, userID string) error
}

// NewMockTokenStore creates a new MockTokenStore
func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{records: make(map[string]*domain.TokenRecord)}
}

func (m *MockTokenStore) Save(ctx context.Context, record *domain.TokenRecord) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.records[record.UserID] = &copied
	return nil
}

func (m *MockTokenStore) Get(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[userID]
	if !ok {
		return nil, domain.ErrNoTokens
	}
	copied := *record
	return &copied, nil
}

func (m *MockTokenStore) Delete(ctx context.Context, userID string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

// MockConnectionStore is an in-memory ConnectionStore for testing.
type MockConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*domain.UserConnection

	SaveFn func(ctx context.Context, conn *domain.UserConnection) error
	GetFn  func(ctx context.Context, userID string) (*domain.UserConnection, error)
}

// NewMockConnectionStore creates a new MockConnectionStore
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{conns: make(map[string]*domain.UserConnection)}
}

func (m *MockConnectionStore) Save(ctx context.Context, conn *domain.UserConnection) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, conn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *conn
	m.conns[conn.UserID] = &copied
	return nil
}

func (m *MockConnectionStore) Get(ctx context.Context, userID string) (*domain.UserConnection, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[userID]
	if !ok {
		return nil, domain.ErrConnectionNotFound
	}
	copied := *conn
	return &copied, nil
}

func (m *MockConnectionStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, userID)
	return nil
}

func (m *MockConnectionStore) ListPending(ctx context.Context, olderThanSeconds int) ([]*domain.UserConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)
	var pending []*domain.UserConnection
	for _, conn := range m.conns {
		if conn.Status == domain.ConnectionStatusPending && conn.LastUpdated.Before(cutoff) {
			copied := *conn
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

// MockOAuthStateStore is an in-memory OAuthStateStore for testing.
type MockOAuthStateStore struct {
	mu     sync.Mutex
	states map[string]*driven.OAuthState
	byUser map[string]string
}

// NewMockOAuthStateStore creates a new MockOAuthStateStore
func NewMockOAuthStateStore() *MockOAuthStateStore {
	return &MockOAuthStateStore{
		states: make(map[string]*driven.OAuthState),
		byUser: make(map[string]string),
	}
}

func (m *MockOAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.byUser[state.UserID]; ok {
		delete(m.states, prev)
	}
	copied := *state
	m.states[state.State] = &copied
	m.byUser[state.UserID] = state.State
	return nil
}

func (m *MockOAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[state]
	if !ok {
		return nil, nil
	}
	delete(m.states, state)
	delete(m.byUser, s.UserID)
	if time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *MockOAuthStateStore) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, s := range m.states {
		if now.After(s.ExpiresAt) {
			delete(m.states, key)
			delete(m.byUser, s.UserID)
		}
	}
	return nil
}

// Count returns the number of stored states (for test assertions).
func (m *MockOAuthStateStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
