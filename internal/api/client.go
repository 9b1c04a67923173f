// Package api talks to the thermostat backend over its REST interface.
package api

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
)

// DefaultBaseURL is the production backend.
const DefaultBaseURL = "http://3.75.188.235:8080/api/v1"

// TimestampLayout is the wire format for event timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// AuthResult is the outcome of a successful authentication.
type AuthResult struct {
	Token     string `json:"token"`
	UserID    int64  `json:"userId"`
	FirstName string `json:"firstName"`
}

// Client is an HTTP client for the backend. The token provider is
// consulted per request so a login mid-flight is picked up immediately.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
}

// NewClient creates a backend client. An empty baseURL selects the
// production backend. token may be nil for unauthenticated use.
func NewClient(baseURL string, token func() string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
	}
}

// Authenticate exchanges credentials for a session token.
func (c *Client) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": email, "password": password}

	var result AuthResult
	if err := c.postJSON(ctx, "/user/authenticate", body, &result); err != nil {
		return AuthResult{}, err
	}
	if result.Token == "" {
		return AuthResult{}, fmt.Errorf("authenticate: empty token in response")
	}
	return result, nil
}

// ThermostatFingerprint returns the fingerprint the thermostat currently
// reports to the backend. The endpoint returns the value as a bare
// string, sometimes JSON-quoted.
func (c *Client) ThermostatFingerprint(ctx context.Context, thermostatID string) (string, error) {
	q := url.Values{"thermostatId": {thermostatID}}
	raw, err := c.get(ctx, "/thermostat/get-thermostat-fingerprint", q)
	if err != nil {
		return "", err
	}
	fp := strings.TrimSpace(string(raw))
	fp = strings.Trim(fp, `"`)
	return fp, nil
}

// IsReadyToPair reports whether the thermostat can be paired to the user.
func (c *Client) IsReadyToPair(ctx context.Context, userID int64, thermostatID string) (bool, error) {
	q := url.Values{
		"userId":       {fmt.Sprintf("%d", userID)},
		"thermostatId": {thermostatID},
	}
	raw, err := c.get(ctx, "/thermostat/is-thermostat-ready-to-pair", q)
	if err != nil {
		return false, err
	}

	var ready bool
	if err := json.Unmarshal(raw, &ready); err != nil {
		return false, fmt.Errorf("is-ready-to-pair: bad response %q: %w", raw, err)
	}
	return ready, nil
}

// PairThermostat associates the thermostat with the user.
func (c *Client) PairThermostat(ctx context.Context, userID int64, thermostatID string) error {
	body := map[string]any{"userId": userID, "thermostatId": thermostatID}
	return c.postJSON(ctx, "/thermostat/pair-thermostat", body, nil)
}

// UnpairThermostat removes the association.
func (c *Client) UnpairThermostat(ctx context.Context, userID int64, thermostatID string) error {
	body := map[string]any{"userId": userID, "thermostatId": thermostatID}
	return c.postJSON(ctx, "/thermostat/unpair-thermostat", body, nil)
}

// SaveLog records a presence transition in the backend event log.
func (c *Client) SaveLog(ctx context.Context, userID int64, eventType string, ts time.Time) error {
	body := map[string]any{
		"userId":    userID,
		"eventType": eventType,
		"timestamp": ts.Format(TimestampLayout),
	}
	return c.postJSON(ctx, "/log/save-log", body, nil)
}

// UpdateDistanceFromHome pushes the latest whole-meter distance reading.
func (c *Client) UpdateDistanceFromHome(ctx context.Context, userID int64, meters int) error {
	body := map[string]any{"userId": userID, "distanceFromHome": meters}
	return c.postJSON(ctx, "/user/update-user-distance-from-home", body, nil)
}

// UpdateHomeLocation commits a new home location for the user.
func (c *Client) UpdateHomeLocation(ctx context.Context, userID int64, lat, lon float64) error {
	body := map[string]any{"userId": userID, "homeLatitude": lat, "homeLongitude": lon}
	return c.postJSON(ctx, "/user/update-user-home-location", body, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return raw, nil
}
