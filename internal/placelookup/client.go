// Package placelookup resolves free-text input to coordinates through the
// Google Places web API. The original app reached the same endpoints through
// a local CORS proxy; here the daemon calls them directly, rate-limited.
package placelookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/metrics"
)

const (
	// autocompletePath serves text predictions.
	autocompletePath = "/maps/api/place/autocomplete/json"
	// detailsPath resolves a place id to geometry.
	detailsPath = "/maps/api/place/details/json"
	// requestTimeout bounds a single lookup round-trip.
	requestTimeout = 10 * time.Second
	// limiterBurst allows short bursts above the sustained rate.
	limiterBurst = 3
)

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
	statusNotFound    = "NOT_FOUND"
)

var (
	// ErrAPIKeyRequired is returned when the client is built without a key.
	ErrAPIKeyRequired = errors.New("places API key must be provided")
	// errInputRequired is returned for empty lookup input.
	errInputRequired = errors.New("lookup input must not be empty")
)

// Prediction is one autocomplete suggestion.
type Prediction struct {
	// PlaceID is the opaque id to pass to Resolve.
	PlaceID string `json:"placeId"`
	// Description is the human-readable suggestion text.
	Description string `json:"description"`
}

// Client calls the places web API with a bounded request rate.
type Client struct {
	// httpClient performs the round-trips.
	httpClient *http.Client
	// baseURL is the API root.
	baseURL string
	// apiKey authenticates requests.
	apiKey string
	// limiter caps outbound lookup traffic.
	limiter *rate.Limiter
}

// Option configures client behaviour.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient builds a places client for the given API root and key.
func NewClient(baseURL, apiKey string, requestsPerSecond float64, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}

	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), limiterBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// autocompleteResponse is the wire shape of the autocomplete endpoint.
type autocompleteResponse struct {
	Status      string `json:"status"`
	Predictions []struct {
		PlaceID     string `json:"place_id"`
		Description string `json:"description"`
	} `json:"predictions"`
}

// detailsResponse is the wire shape of the details endpoint.
type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// Predict returns autocomplete suggestions for free-text input, in ranking
// order.
func (c *Client) Predict(ctx context.Context, input string) ([]Prediction, error) {
	if input == "" {
		return nil, errInputRequired
	}

	query := url.Values{}
	query.Set("input", input)

	var decoded autocompleteResponse
	if err := c.get(ctx, autocompletePath, query, &decoded); err != nil {
		metrics.PlaceLookups.WithLabelValues("predict", "error").Inc()

		return nil, err
	}

	if decoded.Status != statusOK && decoded.Status != statusZeroResults {
		metrics.PlaceLookups.WithLabelValues("predict", decoded.Status).Inc()

		return nil, fmt.Errorf("places autocomplete: status %s", decoded.Status)
	}

	metrics.PlaceLookups.WithLabelValues("predict", "ok").Inc()

	out := make([]Prediction, 0, len(decoded.Predictions))
	for _, p := range decoded.Predictions {
		out = append(out, Prediction{PlaceID: p.PlaceID, Description: p.Description})
	}

	return out, nil
}

// Resolve returns the coordinate of a place id, or nil when the id is
// unknown. Nil is an answer, not a failure.
func (c *Client) Resolve(ctx context.Context, placeID string) (*alarm.Coordinate, error) {
	if placeID == "" {
		return nil, errInputRequired
	}

	query := url.Values{}
	query.Set("place_id", placeID)
	query.Set("fields", "geometry")

	var decoded detailsResponse
	if err := c.get(ctx, detailsPath, query, &decoded); err != nil {
		metrics.PlaceLookups.WithLabelValues("resolve", "error").Inc()

		return nil, err
	}

	switch decoded.Status {
	case statusOK:
	case statusZeroResults, statusNotFound:
		metrics.PlaceLookups.WithLabelValues("resolve", "miss").Inc()

		return nil, nil
	default:
		metrics.PlaceLookups.WithLabelValues("resolve", decoded.Status).Inc()

		return nil, fmt.Errorf("places details: status %s", decoded.Status)
	}

	metrics.PlaceLookups.WithLabelValues("resolve", "ok").Inc()

	return &alarm.Coordinate{
		Latitude:  decoded.Result.Geometry.Location.Lat,
		Longitude: decoded.Result.Geometry.Location.Lng,
	}, nil
}

// get performs one rate-limited API round-trip and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	query.Set("key", c.apiKey)

	requestURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("build places request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places request: unexpected HTTP status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode places response: %w", err)
	}

	return nil
}
