package provision

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client sends credentials to a real device over HTTP.
type Client struct {
	setupURL   string
	httpClient *http.Client
}

// NewClient creates a provisioning client for the given setup URL.
// An empty URL selects DefaultSetupURL.
func NewClient(setupURL string) *Client {
	if setupURL == "" {
		setupURL = DefaultSetupURL
	}
	return &Client{
		setupURL:   setupURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// SendCredentials performs the GET hand-off with query parameters.
func (c *Client) SendCredentials(ctx context.Context, creds Credentials) error {
	u, err := url.Parse(c.setupURL)
	if err != nil {
		return fmt.Errorf("parse setup url: %w", err)
	}

	q := u.Query()
	q.Set("ssid", creds.SSID)
	q.Set("password", creds.Password)
	q.Set("fingerprint", creds.Fingerprint)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build setup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("device returned status %d", resp.StatusCode)
	}
	return nil
}
