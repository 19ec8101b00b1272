package auth

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// MinCost keeps the hashing fast; production uses DefaultCost.
func newTestAdapter() *Adapter {
	return NewAdapterWithCost("test-jwt-secret", bcrypt.MinCost)
}

func TestHashAndVerifyPassword(t *testing.T) {
	a := newTestAdapter()

	hash, err := a.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash must not equal the password")
	}

	if !a.VerifyPassword("correct horse battery staple", hash) {
		t.Error("correct password must verify")
	}
	if a.VerifyPassword("wrong password", hash) {
		t.Error("wrong password must not verify")
	}
	if a.VerifyPassword("correct horse battery staple", "not-a-bcrypt-hash") {
		t.Error("garbage hash must not verify")
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	a := newTestAdapter()

	first, _ := a.HashPassword("password123")
	second, _ := a.HashPassword("password123")
	if first == second {
		t.Error("two hashes of the same password must differ")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	a := newTestAdapter()
	now := time.Now()

	claims := &domain.TokenClaims{
		UserID:    "user-1",
		Email:     "user@example.com",
		Role:      domain.RoleAdmin,
		SessionID: "session-1",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}

	token, err := a.GenerateToken(claims)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected a three-part JWT, got %q", token)
	}

	parsed, err := a.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.UserID != claims.UserID ||
		parsed.Email != claims.Email ||
		parsed.Role != claims.Role ||
		parsed.SessionID != claims.SessionID {
		t.Errorf("claims mismatch: %+v", parsed)
	}
	if parsed.ExpiresAt != claims.ExpiresAt {
		t.Errorf("expiry mismatch: got %d, want %d", parsed.ExpiresAt, claims.ExpiresAt)
	}
}

func TestParseToken_Expired(t *testing.T) {
	a := newTestAdapter()
	now := time.Now()

	token, err := a.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		SessionID: "session-1",
		IssuedAt:  now.Add(-2 * time.Hour).Unix(),
		ExpiresAt: now.Add(-time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := a.ParseToken(token); err == nil {
		t.Error("expired token must not parse")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	a := newTestAdapter()
	other := NewAdapterWithCost("different-secret", bcrypt.MinCost)
	now := time.Now()

	token, _ := a.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	})

	if _, err := other.ParseToken(token); err == nil {
		t.Error("token signed with another secret must not parse")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	a := newTestAdapter()

	for _, token := range []string{"", "not-a-token", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := a.ParseToken(token); err == nil {
			t.Errorf("expected parse failure for %q", token)
		}
	}
}
