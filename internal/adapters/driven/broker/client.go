// Package broker implements the connection broker client.
// The broker is the third-party service that manages OAuth-delegated tool
// connections (calendar operations) on behalf of the assistant.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.BrokerClient = (*Client)(nil)

// Client is an HTTP client for the broker API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds broker client configuration.
type Config struct {
	// BaseURL is the broker API root, e.g. "https://broker.example.com".
	BaseURL string

	// APIKey authenticates this application against the broker.
	APIKey string

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// NewClient creates a new broker API client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// connectionPayload is the broker's wire shape for a connection.
type connectionPayload struct {
	ID          string `json:"id"`
	AppName     string `json:"app_name"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (p *connectionPayload) toCandidate() *domain.ConnectionCandidate {
	createdAt, _ := time.Parse(time.RFC3339, p.CreatedAt)
	return &domain.ConnectionCandidate{
		ID:          p.ID,
		AppName:     p.AppName,
		Status:      p.Status,
		CreatedAt:   createdAt,
		RedirectURL: p.RedirectURL,
	}
}

// EnsureEntity makes sure a broker-side entity exists.
// A conflict response (the entity already exists) counts as success.
func (c *Client) EnsureEntity(ctx context.Context, entityID string) error {
	body := map[string]string{"id": entityID}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/entities", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return c.asError(resp, "ensure entity")
	}
}

// ListConnections returns the broker's raw candidates for an entity+application.
func (c *Client) ListConnections(ctx context.Context, entityID, appName string) ([]*domain.ConnectionCandidate, error) {
	q := url.Values{}
	q.Set("entity_id", entityID)
	q.Set("app_name", appName)

	resp, err := c.do(ctx, http.MethodGet, "/api/v1/connections?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp, "list connections")
	}

	var payload struct {
		Items []*connectionPayload `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode connections: %v", domain.ErrBrokerUnavailable, err)
	}

	candidates := make([]*domain.ConnectionCandidate, 0, len(payload.Items))
	for _, item := range payload.Items {
		candidates = append(candidates, item.toCandidate())
	}
	return candidates, nil
}

// GetConnection fetches a single connection's current state.
func (c *Client) GetConnection(ctx context.Context, connectionID string) (*domain.ConnectionCandidate, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/connections/"+url.PathEscape(connectionID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrConnectionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp, "get connection")
	}

	var payload connectionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode connection: %v", domain.ErrBrokerUnavailable, err)
	}
	return payload.toCandidate(), nil
}

// InitiateConnection asks the broker to start a new delegated connection.
func (c *Client) InitiateConnection(ctx context.Context, entityID, appName string) (*domain.ConnectionCandidate, error) {
	body := map[string]string{
		"entity_id": entityID,
		"app_name":  appName,
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/connections", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.asError(resp, "initiate connection")
	}

	var payload connectionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode initiated connection: %v", domain.ErrBrokerUnavailable, err)
	}
	return payload.toCandidate(), nil
}

// ListTools returns the tool handles exposed for an entity+application.
func (c *Client) ListTools(ctx context.Context, entityID, appName string) ([]*driven.BrokerTool, error) {
	q := url.Values{}
	q.Set("entity_id", entityID)
	q.Set("app_name", appName)

	resp, err := c.do(ctx, http.MethodGet, "/api/v1/tools?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp, "list tools")
	}

	var payload struct {
		Items []*driven.BrokerTool `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode tools: %v", domain.ErrBrokerUnavailable, err)
	}
	return payload.Items, nil
}

// do issues one request with auth headers and a per-request id.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}
	return resp, nil
}

// asError turns a non-2xx broker response into a wrapped error.
// The caller owns closing the body; asError only reads it.
func (c *Client) asError(resp *http.Response, op string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("%w: %s: %s", domain.ErrBrokerUnavailable, op, msg)
}
