package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"catalog/internal/config"
)

// Client is the shared HTTP transport for listing and detail requests.
// Headers and timeout are fixed at construction; a cookie change arrives
// with a new settings snapshot and therefore a new Client.
type Client struct {
	http      *http.Client
	base      *url.URL
	userAgent string
	cookie    string
}

func NewClient(cfg *config.Settings) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", cfg.BaseURL, err)
	}
	cookie := ""
	if cfg.SessionToken != "" {
		cookie = "session=" + cfg.SessionToken
	}
	return &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		base:      base,
		userAgent: cfg.UserAgent,
		cookie:    cookie,
	}, nil
}

// BaseURL returns the parsed listing base URL.
func (c *Client) BaseURL() *url.URL {
	return c.base
}

// Resolve makes ref absolute against the base URL. Already-absolute or
// unparsable refs are returned unchanged.
func (c *Client) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

// Get fetches rawURL and returns the response body. Any non-2xx status
// is an error.
func (c *Client) Get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body of %s: %w", rawURL, err)
	}
	return string(body), nil
}
