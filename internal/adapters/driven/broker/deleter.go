package broker

import (
	"context"
	"net/http"
	"net/url"

	"github.com/skej-labs/skej-core/internal/core/domain"
	"github.com/skej-labs/skej-core/internal/core/ports/driven"
)

// The broker API has accumulated three deletion shapes over successive
// versions, and which one works depends on how (and when) a connection was
// created. Deleters returns them newest-first; the resolver tries each in
// order and stops at the first success per connection.
func Deleters(c *Client) []driven.ConnectionDeleter {
	return []driven.ConnectionDeleter{
		&accountDeleter{client: c},
		&connectionDeleter{client: c},
		&legacyDeleter{client: c},
	}
}

// accountDeleter uses the v2 connected-accounts endpoint.
type accountDeleter struct {
	client *Client
}

func (d *accountDeleter) Name() string { return "v2_connected_accounts" }

func (d *accountDeleter) Delete(ctx context.Context, connectionID string) error {
	return d.client.deleteAt(ctx, "/api/v2/connected-accounts/"+url.PathEscape(connectionID))
}

// connectionDeleter uses the v1 connections endpoint.
type connectionDeleter struct {
	client *Client
}

func (d *connectionDeleter) Name() string { return "v1_connections" }

func (d *connectionDeleter) Delete(ctx context.Context, connectionID string) error {
	return d.client.deleteAt(ctx, "/api/v1/connections/"+url.PathEscape(connectionID))
}

// legacyDeleter uses the original POST-based deletion endpoint.
type legacyDeleter struct {
	client *Client
}

func (d *legacyDeleter) Name() string { return "legacy_post_delete" }

func (d *legacyDeleter) Delete(ctx context.Context, connectionID string) error {
	resp, err := d.client.do(ctx, http.MethodPost, "/api/v1/connections/"+url.PathEscape(connectionID)+"/delete", map[string]string{})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return deletionResult(d.client, resp)
}

// deleteAt issues a DELETE against the given path.
func (c *Client) deleteAt(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return deletionResult(c, resp)
}

func deletionResult(c *Client, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrConnectionNotFound
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return c.asError(resp, "delete connection")
	}
}
