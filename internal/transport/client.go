package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent identifies the downloader to the tile server.
const DefaultUserAgent = "jackfruit-himawari/1.0"

// Response is the status and body of one GET.
// Callers must close Body on every path.
type Response struct {
	StatusCode int
	Body       io.ReadCloser
}

// Client performs plain GET requests against the tile server.
// It is safe for concurrent use; each call owns its response until closed.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a client whose requests time out after timeout.
func NewClient(timeout time.Duration, userAgent string) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Get fetches url. A non-2xx status is not an error here; the caller decides.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
