package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultMapboxEndpoint = "https://api.mapbox.com/geocoding/v5/mapbox.places"

type MapboxClient struct {
	token      string
	country    string
	endpoint   string
	httpClient *http.Client
}

// NewMapboxClient returns nil when no token is configured.
func NewMapboxClient(token, country string) *MapboxClient {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return &MapboxClient{
		token:      token,
		country:    strings.ToLower(strings.TrimSpace(country)),
		endpoint:   defaultMapboxEndpoint,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *MapboxClient) Geocode(ctx context.Context, address string) (Coordinates, error) {
	if c == nil {
		return Coordinates{}, errors.New("mapbox client is nil")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return Coordinates{}, ErrEmptyAddress
	}

	q := url.Values{}
	q.Set("access_token", c.token)
	q.Set("limit", "1")
	if c.country != "" {
		q.Set("country", c.country)
	}
	endpoint := fmt.Sprintf("%s/%s.json?%s", c.endpoint, url.PathEscape(address), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("mapbox create request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("mapbox request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Coordinates{}, fmt.Errorf("mapbox geocode failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Coordinates{}, fmt.Errorf("mapbox decode response: %w", err)
	}
	if len(out.Features) == 0 || len(out.Features[0].Center) < 2 {
		return Coordinates{}, fmt.Errorf("%w: %q", ErrNoMatch, address)
	}

	// Mapbox centers are [lng, lat].
	coords := Coordinates{Lng: out.Features[0].Center[0], Lat: out.Features[0].Center[1]}
	if !coords.Valid() {
		return Coordinates{}, fmt.Errorf("mapbox returned invalid center %v", out.Features[0].Center)
	}
	return coords, nil
}

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	PlaceName string    `json:"place_name"`
	Center    []float64 `json:"center"`
}
