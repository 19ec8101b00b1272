package redis

import (
	"context"
	"testing"
	"time"

	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

func testOAuthState(state, userID string) *driven.OAuthState {
	now := time.Now()
	return &driven.OAuthState{
		State:        state,
		UserID:       userID,
		ProviderType: "googlecalendar",
		CodeVerifier: "verifier-" + state,
		RedirectURI:  "http://localhost:3000/api/v1/oauth/callback",
		CreatedAt:    now,
		ExpiresAt:    now.Add(5 * time.Minute),
	}
}

func TestOAuthStateStore_SaveAndConsume(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	store := NewOAuthStateStore(client)
	_ = store.Save(ctx, testOAuthState("state-1", "user-1"))

	got, err := store.GetAndDelete(ctx, "state-1")
	if err != nil {
		t.Fatalf("get and delete: %v", err)
	}
	if got == nil {
		t.Fatal("expected the stored attempt")
	}
	if got.UserID != "user-1" || got.CodeVerifier != "verifier-state-1" {
		t.Errorf("attempt mismatch: %+v", got)
	}

	// Single use: the second lookup sees nothing.
	got, err = store.GetAndDelete(ctx, "state-1")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got != nil {
		t.Error("a consumed attempt must not be retrievable again")
	}
}

func TestOAuthStateStore_UnknownState(t *testing.T) {
	client, _ := setupTestRedis(t)

	store := NewOAuthStateStore(client)
	got, err := store.GetAndDelete(context.Background(), "never-issued")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("unknown state must return nil, nil")
	}
}

func TestOAuthStateStore_ReplacesPriorAttempt(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	store := NewOAuthStateStore(client)
	_ = store.Save(ctx, testOAuthState("state-old", "user-1"))
	_ = store.Save(ctx, testOAuthState("state-new", "user-1"))

	if got, _ := store.GetAndDelete(ctx, "state-old"); got != nil {
		t.Error("starting a new attempt must invalidate the prior one")
	}
	if got, _ := store.GetAndDelete(ctx, "state-new"); got == nil {
		t.Error("the new attempt must be live")
	}
}

func TestOAuthStateStore_ExpiresWithTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	store := NewOAuthStateStoreWithTTL(client, time.Second)
	state := testOAuthState("state-1", "user-1")
	state.ExpiresAt = time.Time{} // let the store apply its TTL
	_ = store.Save(ctx, state)

	mr.FastForward(2 * time.Second)

	if got, _ := store.GetAndDelete(ctx, "state-1"); got != nil {
		t.Error("expired attempt must not be returned")
	}
}

func TestOAuthStateStore_RejectsAlreadyExpired(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	store := NewOAuthStateStore(client)
	expired := testOAuthState("state-1", "user-1")
	expired.ExpiresAt = time.Now().Add(-time.Minute)

	if err := store.Save(ctx, expired); err == nil {
		t.Error("saving an already expired attempt must fail")
	}
}
