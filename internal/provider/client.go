// Package provider fetches daily bars and instrument reference data from
// the upstream quote service. All parsing of the provider's wire formats
// lives here; the rest of the system only sees contracts types.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/astock-tools/screener/pkg/httputil"
	"github.com/astock-tools/screener/pkg/logger"
)

// Client handles communication with the quote service.
type Client struct {
	httpClient *httputil.Client
	baseURL    string
	logger     *logger.Logger
}

// NewClient creates a provider client rooted at baseURL.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     log,
	}
}

// fetch performs a GET against the provider and returns the raw body.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path

	resp, err := c.httpClient.Get(ctx, url, map[string]string{
		"Referer": c.baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
