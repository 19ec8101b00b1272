package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

const (
	oauthStatePrefix     = "skej:oauth:state:"
	oauthStateUserPrefix = "skej:oauth:user:"
)

// DefaultOAuthStateTTL is the default time-to-live for authorization attempts.
const DefaultOAuthStateTTL = 5 * time.Minute

// OAuthStateStore implements driven.OAuthStateStore using Redis.
// Redis TTL gives expiry for free; a per-user index key enforces the
// one-attempt-in-flight rule.
type OAuthStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOAuthStateStore creates a new Redis-backed OAuth state store.
func NewOAuthStateStore(client *redis.Client) *OAuthStateStore {
	return &OAuthStateStore{
		client: client,
		ttl:    DefaultOAuthStateTTL,
	}
}

// NewOAuthStateStoreWithTTL creates an OAuth state store with custom TTL.
func NewOAuthStateStoreWithTTL(client *redis.Client, ttl time.Duration) *OAuthStateStore {
	return &OAuthStateStore{
		client: client,
		ttl:    ttl,
	}
}

// Save stores a new authorization attempt, replacing any prior in-flight
// attempt for the same user.
func (s *OAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = now.Add(s.ttl)
	}

	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("oauth state already expired")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal oauth state: %w", err)
	}

	// Drop the user's previous attempt before indexing the new one.
	prevState, err := s.client.Get(ctx, oauthStateUserPrefix+state.UserID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("lookup prior oauth state: %w", err)
	}

	pipe := s.client.Pipeline()
	if prevState != "" {
		pipe.Del(ctx, oauthStatePrefix+prevState)
	}
	pipe.Set(ctx, oauthStatePrefix+state.State, data, ttl)
	pipe.Set(ctx, oauthStateUserPrefix+state.UserID, state.State, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}

	return nil
}

// getAndDeleteScript atomically fetches and removes a state key so a
// replayed callback can never see the same attempt twice.
var getAndDeleteScript = redis.NewScript(`
	local value = redis.call("get", KEYS[1])
	if value then
		redis.call("del", KEYS[1])
	end
	return value
`)

// GetAndDelete atomically retrieves and deletes the attempt.
// Returns nil, nil if the attempt doesn't exist or has expired.
func (s *OAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	result, err := getAndDeleteScript.Run(ctx, s.client, []string{oauthStatePrefix + state}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get and delete oauth state: %w", err)
	}

	data, ok := result.(string)
	if !ok || data == "" {
		return nil, nil
	}

	var oauthState driven.OAuthState
	if err := json.Unmarshal([]byte(data), &oauthState); err != nil {
		return nil, fmt.Errorf("unmarshal oauth state: %w", err)
	}

	// TTL should have removed it already; guard against clock drift.
	if time.Now().After(oauthState.ExpiresAt) {
		return nil, nil
	}

	s.client.Del(ctx, oauthStateUserPrefix+oauthState.UserID)

	return &oauthState, nil
}

// Cleanup is a no-op for Redis: key TTLs handle expiry.
func (s *OAuthStateStore) Cleanup(ctx context.Context) error {
	return nil
}
