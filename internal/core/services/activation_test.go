package services

import (
	"context"
	"testing"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven/mocks"
)

func TestActivation_Classify_Polarity(t *testing.T) {
	positive := NewActivation(ActivationConfig{UnknownStatusIsActive: true})
	negative := NewActivation(ActivationConfig{UnknownStatusIsActive: false})

	if got := positive.Classify("", domain.StrictnessStrict); got != domain.ConnectionStatusActive {
		t.Errorf("positive polarity empty status = %s, want active", got)
	}
	if got := negative.Classify("", domain.StrictnessStrict); got != domain.ConnectionStatusPending {
		t.Errorf("negative polarity empty status = %s, want pending", got)
	}
}

func TestActivation_PollUntilActive_ImmediateActive(t *testing.T) {
	broker := mocks.NewMockBrokerClient()
	broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		return &domain.ConnectionCandidate{ID: connectionID, Status: "active"}, nil
	}

	a := NewActivation(ActivationConfig{Broker: broker})

	candidate, err := a.PollUntilActive(context.Background(), "c1", 5, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate == nil || candidate.Status != "active" {
		t.Fatal("expected the active candidate back")
	}
	if got := broker.Calls("GetConnection"); got != 1 {
		t.Errorf("expected exactly 1 fetch for an immediately active connection, got %d", got)
	}
}

func TestActivation_PollUntilActive_BudgetExhausted(t *testing.T) {
	broker := mocks.NewMockBrokerClient()
	broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		return &domain.ConnectionCandidate{ID: connectionID, Status: "initiated"}, nil
	}

	a := NewActivation(ActivationConfig{Broker: broker})

	candidate, err := a.PollUntilActive(context.Background(), "c1", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate != nil {
		t.Error("expected nil candidate after budget exhaustion, still pending is not a failure")
	}
	if got := broker.Calls("GetConnection"); got != 3 {
		t.Errorf("expected exactly 3 fetches, got %d", got)
	}
}

func TestActivation_PollUntilActive_ErrorStatusIsTerminal(t *testing.T) {
	broker := mocks.NewMockBrokerClient()
	broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		return &domain.ConnectionCandidate{ID: connectionID, Status: "connection_failed"}, nil
	}

	a := NewActivation(ActivationConfig{Broker: broker})

	candidate, err := a.PollUntilActive(context.Background(), "c1", 5, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate == nil {
		t.Fatal("expected the failed candidate back for classification by the caller")
	}
	if got := broker.Calls("GetConnection"); got != 1 {
		t.Errorf("expected the poll to stop at the failed status, got %d fetches", got)
	}
}

func TestActivation_PollUntilActive_StrictClassification(t *testing.T) {
	// "initiated" would be active in the lenient path; the poll must keep
	// waiting instead.
	statuses := []string{"initiated", "initiated", "active"}
	call := 0

	broker := mocks.NewMockBrokerClient()
	broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		status := statuses[call]
		call++
		return &domain.ConnectionCandidate{ID: connectionID, Status: status}, nil
	}

	a := NewActivation(ActivationConfig{Broker: broker})

	candidate, err := a.PollUntilActive(context.Background(), "c1", 5, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate == nil || candidate.Status != "active" {
		t.Fatal("expected the poll to wait through initiated and return the active candidate")
	}
	if call != 3 {
		t.Errorf("expected 3 fetches, got %d", call)
	}
}

func TestActivation_PollUntilActive_BrokerError(t *testing.T) {
	broker := mocks.NewMockBrokerClient()
	broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		return nil, domain.ErrBrokerUnavailable
	}

	a := NewActivation(ActivationConfig{Broker: broker})

	_, err := a.PollUntilActive(context.Background(), "c1", 5, time.Millisecond)
	if err == nil {
		t.Fatal("expected broker error to surface")
	}
}

func TestActivation_PollUntilActive_EmptyConnectionID(t *testing.T) {
	a := NewActivation(ActivationConfig{Broker: mocks.NewMockBrokerClient()})

	_, err := a.PollUntilActive(context.Background(), "", 5, time.Millisecond)
	if err == nil {
		t.Fatal("expected error for empty connection id")
	}
}

func TestActivation_PollUntilActive_ContextCancelled(t *testing.T) {
	broker := mocks.NewMockBrokerClient()
	broker.GetConnectionFn = func(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
		return &domain.ConnectionCandidate{ID: connectionID, Status: "pending"}, nil
	}

	a := NewActivation(ActivationConfig{Broker: broker})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.PollUntilActive(ctx, "c1", 10, 50*time.Millisecond)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
