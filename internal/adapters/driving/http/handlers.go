package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database and Redis)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backend is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

// handleRegister godoc
// @Summary      Register account
// @Description  Create a new user account
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      driving.RegisterRequest  true  "Account details"
// @Success      201      {object}  domain.UserSummary
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      409      {object}  ErrorResponse  "Email already registered"
// @Router       /auth/register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req driving.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch err {
		case domain.ErrInvalidInput:
			writeError(w, http.StatusBadRequest, "email and password are required")
		case domain.ErrAlreadyExists:
			writeError(w, http.StatusConflict, "email already registered")
		default:
			writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials or account disabled"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch err {
		case domain.ErrInvalidCredentials:
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case domain.ErrUnauthorized:
			writeError(w, http.StatusUnauthorized, "account disabled")
		default:
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh godoc
// @Summary      Refresh token
// @Description  Exchange a refresh token for a new JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RefreshRequest  true  "Refresh token"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid refresh token"
// @Router       /auth/refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.RefreshToken(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogout godoc
// @Summary      Logout user
// @Description  Invalidate the current session token
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Router       /auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	_ = s.authService.Logout(r.Context(), token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogoutAll godoc
// @Summary      Logout everywhere
// @Description  Invalidate every session for the authenticated user
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /auth/logout-all [post]
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	_ = s.authService.LogoutAll(r.Context(), authCtx.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// OAuth endpoints

// handleOAuthAuthorize godoc
// @Summary      Start OAuth authorization
// @Description  Start an OAuth authorization attempt for the authenticated user. Returns the provider URL to redirect to.
// @Tags         OAuth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.AuthorizeRequest  true  "Authorization parameters"
// @Success      200      {object}  driving.AuthorizeResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request or provider not configured"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Router       /oauth/authorize [post]
func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req driving.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = authCtx.UserID

	resp, err := s.oauthService.Authorize(r.Context(), req)
	if err != nil {
		var oauthErr *driving.OAuthError
		if errors.As(err, &oauthErr) {
			writeJSON(w, http.StatusBadRequest, oauthErr)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start authorization")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthCallback godoc
// @Summary      OAuth callback
// @Description  Receives the provider redirect, validates state and exchanges the code for tokens.
// @Tags         OAuth
// @Produce      json
// @Param        code   query     string  false  "Authorization code"
// @Param        state  query     string  true   "CSRF state token"
// @Param        error  query     string  false  "Provider error code"
// @Success      200    {object}  driving.CallbackResponse
// @Failure      400    {object}  driving.OAuthError  "Invalid state, missing code or provider error"
// @Router       /oauth/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	resp, err := s.oauthService.Callback(r.Context(), req)
	if err != nil {
		var oauthErr *driving.OAuthError
		if errors.As(err, &oauthErr) {
			writeJSON(w, http.StatusBadRequest, oauthErr)
			return
		}
		writeError(w, http.StatusInternalServerError, "callback processing failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthRefresh godoc
// @Summary      Refresh provider tokens
// @Description  Refresh the user's calendar provider tokens. A failed refresh clears stored tokens; re-authorization is required.
// @Tags         OAuth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.TokenSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized or re-authorization required"
// @Router       /oauth/refresh [post]
func (s *Server) handleOAuthRefresh(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := s.oauthService.RefreshTokens(r.Context(), authCtx.UserID)
	if err != nil {
		switch err {
		case domain.ErrNoTokens, domain.ErrNoRefreshToken:
			writeError(w, http.StatusUnauthorized, "re-authorization required")
		default:
			writeError(w, http.StatusInternalServerError, "token refresh failed")
		}
		return
	}
	if summary == nil {
		// Refresh failed terminally; tokens were cleared
		writeError(w, http.StatusUnauthorized, "re-authorization required")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleOAuthStatus godoc
// @Summary      Provider authentication status
// @Description  Reports whether the user holds a live provider token.
// @Tags         OAuth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]bool
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /oauth/status [get]
func (s *Server) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	authenticated := s.oauthService.IsAuthenticated(r.Context(), authCtx.UserID)
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": authenticated})
}

// Connection endpoints

// handleEnsureConnection godoc
// @Summary      Ensure calendar connection
// @Description  Converge the user onto exactly one usable broker connection, initiating a new one if needed.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driving.ConnectionStatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      502  {object}  ErrorResponse  "Broker unreachable"
// @Router       /connections/ensure [post]
func (s *Server) handleEnsureConnection(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := s.connectionService.EnsureConnection(r.Context(), authCtx.UserID)
	if err != nil {
		writeConnectionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleConnectionStatus godoc
// @Summary      Connection status
// @Description  Re-probe the user's connection and return the updated classification.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driving.ConnectionStatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /connections/status [get]
func (s *Server) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := s.connectionService.CheckStatus(r.Context(), authCtx.UserID)
	if err != nil {
		writeConnectionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListTools godoc
// @Summary      List calendar tools
// @Description  List the calendar operations available on the active connection.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   driving.ToolSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      409  {object}  ErrorResponse  "Connection not active"
// @Router       /connections/tools [get]
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tools, err := s.connectionService.ListTools(r.Context(), authCtx.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			writeError(w, http.StatusConflict, "connection not active")
			return
		}
		writeConnectionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tools)
}

// handleSignOut godoc
// @Summary      Sign out of calendar
// @Description  Forget the user's connection, delete the broker side best-effort and clear provider tokens.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /connections/signout [post]
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.connectionService.SignOut(r.Context(), authCtx.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "sign out failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Provider configuration endpoints

// ProviderConfigRequest carries OAuth app credentials for a provider.
// @Description Provider OAuth app credentials
type ProviderConfigRequest struct {
	ClientID     string `json:"client_id" example:"1234.apps.googleusercontent.com"`
	ClientSecret string `json:"client_secret" example:"secret"`
	Enabled      bool   `json:"enabled" example:"true"`
}

// handleListProviders godoc
// @Summary      List providers
// @Description  List configured calendar providers (admin only)
// @Tags         Providers
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.ProviderConfigSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Router       /providers [get]
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.providerConfigs.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleGetProviderConfig godoc
// @Summary      Get provider config
// @Description  Get a provider's configuration without the client secret (admin only)
// @Tags         Providers
// @Produce      json
// @Security     BearerAuth
// @Param        type  path      string  true  "Provider type"
// @Success      200   {object}  domain.ProviderConfigSummary
// @Failure      404   {object}  ErrorResponse  "Provider not configured"
// @Router       /providers/{type}/config [get]
func (s *Server) handleGetProviderConfig(w http.ResponseWriter, r *http.Request) {
	providerType := domain.ProviderType(r.PathValue("type"))
	if !providerType.IsValid() {
		writeError(w, http.StatusBadRequest, "unsupported provider type")
		return
	}

	config, err := s.providerConfigs.Get(r.Context(), providerType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get provider config")
		return
	}
	if config == nil {
		writeError(w, http.StatusNotFound, "provider not configured")
		return
	}

	writeJSON(w, http.StatusOK, config.ToSummary())
}

// handleSaveProviderConfig godoc
// @Summary      Save provider config
// @Description  Create or update a provider's OAuth app credentials (admin only)
// @Tags         Providers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        type     path      string                 true  "Provider type"
// @Param        request  body      ProviderConfigRequest  true  "Credentials"
// @Success      200      {object}  domain.ProviderConfigSummary
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Router       /providers/{type}/config [post]
func (s *Server) handleSaveProviderConfig(w http.ResponseWriter, r *http.Request) {
	providerType := domain.ProviderType(r.PathValue("type"))
	if !providerType.IsValid() {
		writeError(w, http.StatusBadRequest, "unsupported provider type")
		return
	}

	var req ProviderConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	config := &domain.ProviderConfig{
		ProviderType: providerType,
		Enabled:      req.Enabled,
		Secrets: &domain.ProviderSecrets{
			ClientID:     req.ClientID,
			ClientSecret: req.ClientSecret,
		},
	}

	if err := s.providerConfigs.Save(r.Context(), config); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save provider config")
		return
	}

	writeJSON(w, http.StatusOK, config.ToSummary())
}

// handleDeleteProviderConfig godoc
// @Summary      Delete provider config
// @Description  Remove a provider's configuration (admin only)
// @Tags         Providers
// @Produce      json
// @Security     BearerAuth
// @Param        type  path      string  true  "Provider type"
// @Success      200   {object}  StatusResponse
// @Router       /providers/{type}/config [delete]
func (s *Server) handleDeleteProviderConfig(w http.ResponseWriter, r *http.Request) {
	providerType := domain.ProviderType(r.PathValue("type"))
	if !providerType.IsValid() {
		writeError(w, http.StatusBadRequest, "unsupported provider type")
		return
	}

	if err := s.providerConfigs.Delete(r.Context(), providerType); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete provider config")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeConnectionError maps connection service failures to HTTP statuses.
func writeConnectionError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrBrokerUnavailable):
		writeError(w, http.StatusBadGateway, "connection broker unreachable")
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadGateway, validationErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
