package googlecalendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// APIClient makes authenticated requests against the Google Calendar API for
// one user. It attaches the current access token and, on a 401, performs
// exactly one refresh-and-retry. A failed refresh surfaces an
// AuthenticationError instead of retrying indefinitely.
type APIClient struct {
	tokens     driven.TokenProvider
	httpClient *http.Client
}

// NewAPIClient creates a calendar API client backed by a token provider.
func NewAPIClient(tokens driven.TokenProvider) *APIClient {
	return &APIClient{
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewAPIClientWithHTTP creates a client with a custom HTTP client (for testing).
func NewAPIClientWithHTTP(tokens driven.TokenProvider, httpClient *http.Client) *APIClient {
	return &APIClient{
		tokens:     tokens,
		httpClient: httpClient,
	}
}

// Do performs an authenticated request. The request body, if any, must be
// replayable (bytes.Reader or similar) because a 401 triggers one retry.
func (c *APIClient) Do(ctx context.Context, method, url string, body io.ReadSeeker) (*http.Response, error) {
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, &domain.AuthenticationError{Reason: err.Error()}
	}

	resp, err := c.send(ctx, method, url, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// One refresh, one retry. If the refresh fails the user has to go
	// through full re-authorization.
	resp.Body.Close()

	token, err = c.tokens.ForceRefresh(ctx)
	if err != nil {
		return nil, &domain.AuthenticationError{Reason: fmt.Sprintf("refresh after 401: %v", err)}
	}

	if body != nil {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
	}

	resp, err = c.send(ctx, method, url, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, &domain.AuthenticationError{Reason: "request rejected after token refresh"}
	}
	return resp, nil
}

func (c *APIClient) send(ctx context.Context, method, url string, body io.Reader, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}
