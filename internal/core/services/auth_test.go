package services

import (
	"context"
	"testing"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven/mocks"
	"github.com/skej-labs/skej-core/internal/core/ports/driving"
)

func newTestAuthService() (*mocks.MockUserStore, *mocks.MockSessionStore, *mocks.MockAuthAdapter, *authService) {
	userStore := mocks.NewMockUserStore()
	sessionStore := mocks.NewMockSessionStore()
	authAdapter := mocks.NewMockAuthAdapter()
	svc := NewAuthService(userStore, sessionStore, authAdapter).(*authService)
	return userStore, sessionStore, authAdapter, svc
}

func TestAuthService_Register(t *testing.T) {
	_, _, _, svc := newTestAuthService()
	ctx := context.Background()

	summary, err := svc.Register(ctx, driving.RegisterRequest{
		Email:    "Ada@Example.com",
		Name:     "Ada",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Email != "ada@example.com" {
		t.Errorf("expected lowercased email, got %q", summary.Email)
	}
	if summary.Role != domain.RoleMember {
		t.Errorf("expected member role, got %s", summary.Role)
	}

	// Duplicate email
	_, err = svc.Register(ctx, driving.RegisterRequest{
		Email:    "ada@example.com",
		Password: "other",
	})
	if err != domain.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// Missing fields
	_, err = svc.Register(ctx, driving.RegisterRequest{Email: "", Password: "x"})
	if err != domain.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput for empty email, got %v", err)
	}
	_, err = svc.Register(ctx, driving.RegisterRequest{Email: "b@example.com", Password: ""})
	if err != domain.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput for empty password, got %v", err)
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	userStore, _, _, svc := newTestAuthService()

	user := &domain.User{
		ID:           "user-123",
		Email:        "test@example.com",
		PasswordHash: "hashed:password123", // Mock hasher prefixes
		Name:         "Test User",
		Role:         domain.RoleMember,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	_ = userStore.Save(context.Background(), user)

	tests := []struct {
		name    string
		req     domain.LoginRequest
		wantErr error
	}{
		{
			name:    "valid credentials",
			req:     domain.LoginRequest{Email: "test@example.com", Password: "password123"},
			wantErr: nil,
		},
		{
			name:    "empty email",
			req:     domain.LoginRequest{Email: "", Password: "password123"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "empty password",
			req:     domain.LoginRequest{Email: "test@example.com", Password: ""},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "wrong password",
			req:     domain.LoginRequest{Email: "test@example.com", Password: "wrongpassword"},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:    "unknown user",
			req:     domain.LoginRequest{Email: "unknown@example.com", Password: "password123"},
			wantErr: domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Authenticate(context.Background(), tt.req)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Token == "" {
				t.Error("expected token to be generated")
			}
			if resp.RefreshToken == "" {
				t.Error("expected refresh token to be generated")
			}
			if resp.User.Email != tt.req.Email {
				t.Errorf("expected user email %s, got %s", tt.req.Email, resp.User.Email)
			}
		})
	}
}

func TestAuthService_Authenticate_InactiveUser(t *testing.T) {
	userStore, _, _, svc := newTestAuthService()

	user := &domain.User{
		ID:           "user-123",
		Email:        "inactive@example.com",
		PasswordHash: "hashed:password123",
		Role:         domain.RoleMember,
		Active:       false,
	}
	_ = userStore.Save(context.Background(), user)

	_, err := svc.Authenticate(context.Background(), domain.LoginRequest{
		Email:    "inactive@example.com",
		Password: "password123",
	})

	if err != domain.ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized for inactive user, got %v", err)
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	_, sessionStore, authAdapter, svc := newTestAuthService()
	ctx := context.Background()

	// Empty and malformed tokens
	if _, err := svc.ValidateToken(ctx, ""); err != domain.ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid for empty token, got %v", err)
	}
	if _, err := svc.ValidateToken(ctx, "not!valid@base64#"); err != domain.ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid for malformed token, got %v", err)
	}

	// Expired token
	expired, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-123",
		SessionID: "session-123",
		IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-1 * time.Hour).Unix(),
	})
	// The mock adapter rejects expired tokens at parse time, and the service
	// maps any parse failure to ErrTokenInvalid.
	if _, err := svc.ValidateToken(ctx, expired); err != domain.ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid for expired token, got %v", err)
	}

	// Valid token, no session
	orphan, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-123",
		SessionID: "missing-session",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	if _, err := svc.ValidateToken(ctx, orphan); err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	// Valid token with expired session
	staleToken, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-456",
		SessionID: "session-expired",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	_ = sessionStore.Save(ctx, &domain.Session{
		ID:        "session-expired",
		UserID:    "user-456",
		Token:     staleToken,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if _, err := svc.ValidateToken(ctx, staleToken); err != domain.ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired for expired session, got %v", err)
	}

	// Fully valid
	goodToken, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-789",
		Email:     "valid@example.com",
		Role:      domain.RoleAdmin,
		SessionID: "session-valid",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	_ = sessionStore.Save(ctx, &domain.Session{
		ID:        "session-valid",
		UserID:    "user-789",
		Token:     goodToken,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	authCtx, err := svc.ValidateToken(ctx, goodToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if authCtx.UserID != "user-789" {
		t.Errorf("expected UserID user-789, got %s", authCtx.UserID)
	}
	if !authCtx.IsAdmin() {
		t.Error("expected admin auth context")
	}
	if authCtx.SessionID != "session-valid" {
		t.Errorf("expected SessionID session-valid, got %s", authCtx.SessionID)
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	userStore, sessionStore, _, svc := newTestAuthService()
	ctx := context.Background()

	_, err := svc.RefreshToken(ctx, domain.RefreshRequest{RefreshToken: ""})
	if err != domain.ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid for empty refresh token, got %v", err)
	}

	_, err = svc.RefreshToken(ctx, domain.RefreshRequest{RefreshToken: "no-such-token"})
	if err != domain.ErrTokenInvalid {
		t.Errorf("expected ErrTokenInvalid for unknown refresh token, got %v", err)
	}

	user := &domain.User{
		ID:           "user-refresh",
		Email:        "refresh@example.com",
		PasswordHash: "hashed:password123",
		Role:         domain.RoleMember,
		Active:       true,
	}
	_ = userStore.Save(ctx, user)

	_ = sessionStore.Save(ctx, &domain.Session{
		ID:           "session-refresh",
		UserID:       "user-refresh",
		Token:        "token-refresh",
		RefreshToken: "valid-refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	resp, err := svc.RefreshToken(ctx, domain.RefreshRequest{RefreshToken: "valid-refresh-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Token == "" || resp.RefreshToken == "" {
		t.Error("expected new token pair to be generated")
	}
	if resp.RefreshToken == "valid-refresh-token" {
		t.Error("expected refresh token to be rotated")
	}

	// Old session must be gone after rotation
	if _, err := sessionStore.Get(ctx, "session-refresh"); err != domain.ErrSessionNotFound {
		t.Error("expected old session to be deleted on rotation")
	}
}

func TestAuthService_Logout(t *testing.T) {
	_, sessionStore, authAdapter, svc := newTestAuthService()
	ctx := context.Background()

	// Invalid token is a no-op
	if err := svc.Logout(ctx, "garbage"); err != nil {
		t.Errorf("expected no error for invalid token, got %v", err)
	}

	token, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		SessionID: "session-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	_ = sessionStore.Save(ctx, &domain.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Token:     token,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sessionStore.Get(ctx, "session-1"); err != domain.ErrSessionNotFound {
		t.Error("expected session to be deleted")
	}
}

func TestAuthService_LogoutAll(t *testing.T) {
	_, sessionStore, _, svc := newTestAuthService()
	ctx := context.Background()

	_ = sessionStore.Save(ctx, &domain.Session{
		ID: "s1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour),
	})
	_ = sessionStore.Save(ctx, &domain.Session{
		ID: "s2", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour),
	})
	_ = sessionStore.Save(ctx, &domain.Session{
		ID: "s3", UserID: "user-2", ExpiresAt: time.Now().Add(time.Hour),
	})

	if err := svc.LogoutAll(ctx, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := sessionStore.Get(ctx, "s1"); err != domain.ErrSessionNotFound {
		t.Error("expected user-1 session s1 deleted")
	}
	if _, err := sessionStore.Get(ctx, "s3"); err != nil {
		t.Error("expected user-2 session untouched")
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	token1 := generateRefreshToken()
	token2 := generateRefreshToken()

	if token1 == "" {
		t.Error("expected non-empty refresh token")
	}
	if token1 == token2 {
		t.Error("expected unique refresh tokens")
	}
	if len(token1) < 30 {
		t.Error("expected longer refresh token")
	}
}
