package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thermolearn/home-agent/internal/geo"
)

// HTTPSource fetches position fixes from a local fix provider, typically
// a phone companion app or a GPSD bridge exposing a small JSON endpoint.
type HTTPSource struct {
	url        string
	httpClient *http.Client
}

// NewHTTPSource creates a source polling the given URL. The endpoint
// must answer GET with {"latitude": ..., "longitude": ...}.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HTTPSource) Current(ctx context.Context) (geo.Point, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return geo.Point{}, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return geo.Point{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, fmt.Errorf("location fetch: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return geo.Point{}, err
	}

	var fix struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(raw, &fix); err != nil {
		return geo.Point{}, fmt.Errorf("location fetch: bad body %q: %w", raw, err)
	}
	if fix.Latitude == nil || fix.Longitude == nil {
		return geo.Point{}, fmt.Errorf("location fetch: missing coordinates in %q", raw)
	}
	return geo.Point{Latitude: *fix.Latitude, Longitude: *fix.Longitude}, nil
}

func (s *HTTPSource) Close() error { return nil }
