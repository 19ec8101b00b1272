package driven

import "github.com/skej-labs/skej-core/internal/core/domain"

// AuthAdapter handles password hashing and API token operations.
type AuthAdapter interface {
	// HashPassword generates a hash from a plaintext password
	HashPassword(password string) (string, error)

	// VerifyPassword checks if a password matches a hash
	VerifyPassword(password, hash string) bool

	// GenerateToken creates a signed token from domain claims
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken validates a token and extracts domain claims
	ParseToken(token string) (*domain.TokenClaims, error)
}
