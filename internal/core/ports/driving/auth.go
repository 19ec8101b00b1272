package driving

import (
	"context"

	"github.com/skej-labs/skej-core/internal/core/domain"
)

// AuthService handles user authentication and session management for the
// calling UI. The user id it authenticates is the key every connection
// operation is scoped to.
type AuthService interface {
	// Register creates a new user account.
	Register(ctx context.Context, req RegisterRequest) (*domain.UserSummary, error)

	// Authenticate validates credentials and creates a session
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// RefreshToken generates a new token from a valid refresh token
	RefreshToken(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error)

	// Logout invalidates the session for the given token
	Logout(ctx context.Context, token string) error

	// LogoutAll invalidates every session for a user
	LogoutAll(ctx context.Context, userID string) error
}

// RegisterRequest represents a new account registration.
// @Description Request to create a user account
type RegisterRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Name     string `json:"name" example:"Ada Lovelace"`
	Password string `json:"password" example:"correct horse battery staple"`
}
