package redis

import (
	"context"
	"testing"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

func testSession(id, userID string) *domain.Session {
	return &domain.Session{
		ID:           id,
		UserID:       userID,
		Token:        "jwt-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(time.Hour),
		CreatedAt:    time.Now(),
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	store := NewSessionStore(client)
	session := testSession("s1", "user-1")

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "user-1" || got.RefreshToken != "refresh-s1" {
		t.Errorf("session mismatch: %+v", got)
	}
}

func TestSessionStore_GetMissing(t *testing.T) {
	client, _ := setupTestRedis(t)

	store := NewSessionStore(client)
	if _, err := store.Get(context.Background(), "nope"); err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStore_GetByRefreshToken(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	store := NewSessionStore(client)
	_ = store.Save(ctx, testSession("s1", "user-1"))

	got, err := store.GetByRefreshToken(ctx, "refresh-s1")
	if err != nil {
		t.Fatalf("get by refresh token: %v", err)
	}
	if got.ID != "s1" {
		t.Errorf("expected session s1, got %s", got.ID)
	}

	if _, err := store.GetByRefreshToken(ctx, "unknown"); err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStore_ExpiredSessionNotSaved(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	store := NewSessionStore(client)
	expired := testSession("s1", "user-1")
	expired.ExpiresAt = time.Now().Add(-time.Minute)

	if err := store.Save(ctx, expired); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); err != domain.ErrSessionNotFound {
		t.Error("an already expired session must not be stored")
	}
}

func TestSessionStore_SessionExpiresWithTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	store := NewSessionStore(client)
	session := testSession("s1", "user-1")
	session.ExpiresAt = time.Now().Add(time.Second)
	_ = store.Save(ctx, session)

	mr.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "s1"); err != domain.ErrSessionNotFound {
		t.Error("session must expire with its TTL")
	}
	if _, err := store.GetByRefreshToken(ctx, "refresh-s1"); err != domain.ErrSessionNotFound {
		t.Error("refresh token index must expire with the session")
	}
}

func TestSessionStore_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	store := NewSessionStore(client)
	_ = store.Save(ctx, testSession("s1", "user-1"))

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); err != domain.ErrSessionNotFound {
		t.Error("expected session gone")
	}
	if _, err := store.GetByRefreshToken(ctx, "refresh-s1"); err != domain.ErrSessionNotFound {
		t.Error("refresh token index must be removed with the session")
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Errorf("repeated delete must not error: %v", err)
	}
}

func TestSessionStore_DeleteByUser(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	store := NewSessionStore(client)
	_ = store.Save(ctx, testSession("s1", "user-1"))
	_ = store.Save(ctx, testSession("s2", "user-1"))
	_ = store.Save(ctx, testSession("s3", "user-2"))

	if err := store.DeleteByUser(ctx, "user-1"); err != nil {
		t.Fatalf("delete by user: %v", err)
	}

	for _, id := range []string{"s1", "s2"} {
		if _, err := store.Get(ctx, id); err != domain.ErrSessionNotFound {
			t.Errorf("expected session %s deleted", id)
		}
	}
	if _, err := store.Get(ctx, "s3"); err != nil {
		t.Error("other users' sessions must survive")
	}
}
