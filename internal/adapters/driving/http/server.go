// Package http is the driving HTTP adapter: routing, handlers and middleware.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skej-labs/skej-core/internal/core/ports/driven"
	"github.com/skej-labs/skej-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	authService       driving.AuthService
	oauthService      driving.OAuthService
	connectionService driving.ConnectionService

	// Infrastructure
	providerConfigs driven.ProviderConfigStore
	db              Pinger // PostgreSQL health check
	redisClient     Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	oauthService driving.OAuthService,
	connectionService driving.ConnectionService,
	providerConfigs driven.ProviderConfigStore,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		authService:       authService,
		oauthService:      oauthService,
		connectionService: connectionService,
		providerConfigs:   providerConfigs,
		db:                db,
		redisClient:       redisClient,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)

	// Auth endpoints (authenticated)
	s.router.Handle("POST /api/v1/auth/logout",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleLogout)))
	s.router.Handle("POST /api/v1/auth/logout-all",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleLogoutAll)))

	// OAuth flow endpoints
	s.router.Handle("POST /api/v1/oauth/authorize",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleOAuthAuthorize)))
	// Callback is public - receives redirects from OAuth providers
	s.router.HandleFunc("GET /api/v1/oauth/callback", s.handleOAuthCallback)
	s.router.Handle("POST /api/v1/oauth/refresh",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleOAuthRefresh)))
	s.router.Handle("GET /api/v1/oauth/status",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleOAuthStatus)))

	// Connection endpoints (authenticated)
	s.router.Handle("POST /api/v1/connections/ensure",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleEnsureConnection)))
	s.router.Handle("GET /api/v1/connections/status",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleConnectionStatus)))
	s.router.Handle("GET /api/v1/connections/tools",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListTools)))
	s.router.Handle("POST /api/v1/connections/signout",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSignOut)))

	// Provider configuration endpoints (admin-only)
	s.router.Handle("GET /api/v1/providers",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleListProviders))))
	s.router.Handle("GET /api/v1/providers/{type}/config",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleGetProviderConfig))))
	s.router.Handle("POST /api/v1/providers/{type}/config",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleSaveProviderConfig))))
	s.router.Handle("DELETE /api/v1/providers/{type}/config",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleDeleteProviderConfig))))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
