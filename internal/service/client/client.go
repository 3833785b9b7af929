package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/logger"
	"wakemeup/internal/placelookup"
)

// defaultCallTimeout bounds individual API calls.
const defaultCallTimeout = 10 * time.Second

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// ErrNotFound is returned when the daemon reports an unknown alarm.
	ErrNotFound = errors.New("alarm not found")
)

// Client talks to a running daemon over its HTTP and WebSocket API.
type Client struct {
	// baseURL is the daemon's HTTP root, e.g. "http://localhost:8080".
	baseURL string
	// wsBaseURL is the matching WebSocket root.
	wsBaseURL string
	// httpClient performs the round-trips.
	httpClient *http.Client

	// callTimeout is the default timeout for individual API calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// New builds a client for the daemon at the given address. A bare host:port
// is promoted to an http URL.
func New(address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	address = strings.TrimSuffix(address, "/")

	c := &Client{
		baseURL:     address,
		wsBaseURL:   "ws" + strings.TrimPrefix(address, "http"),
		httpClient:  &http.Client{},
		callTimeout: defaultCallTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Alarms lists the daemon's alarm collection.
func (c *Client) Alarms(ctx context.Context) ([]alarm.Alarm, error) {
	var list []alarm.Alarm
	if err := c.call(ctx, http.MethodGet, "/v1/alarms", nil, &list); err != nil {
		return nil, err
	}

	return list, nil
}

// Alarm fetches a single alarm by id.
func (c *Client) Alarm(ctx context.Context, id string) (alarm.Alarm, error) {
	var a alarm.Alarm
	if err := c.call(ctx, http.MethodGet, "/v1/alarms/"+id, nil, &a); err != nil {
		return alarm.Alarm{}, err
	}

	return a, nil
}

// AddAlarm creates an alarm from the draft and returns the stored record.
func (c *Client) AddAlarm(ctx context.Context, draft alarm.Alarm) (alarm.Alarm, error) {
	var created alarm.Alarm
	if err := c.call(ctx, http.MethodPost, "/v1/alarms", draft, &created); err != nil {
		return alarm.Alarm{}, err
	}

	return created, nil
}

// UpdateAlarm replaces an existing alarm.
func (c *Client) UpdateAlarm(ctx context.Context, a alarm.Alarm) (alarm.Alarm, error) {
	var updated alarm.Alarm
	if err := c.call(ctx, http.MethodPut, "/v1/alarms/"+a.ID, a, &updated); err != nil {
		return alarm.Alarm{}, err
	}

	return updated, nil
}

// RemoveAlarm deletes an alarm by id.
func (c *Client) RemoveAlarm(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/v1/alarms/"+id, nil, nil)
}

// ToggleAlarm flips an alarm's active flag and returns the updated record.
func (c *Client) ToggleAlarm(ctx context.Context, id string) (alarm.Alarm, error) {
	var toggled alarm.Alarm
	if err := c.call(ctx, http.MethodPost, "/v1/alarms/"+id+"/toggle", nil, &toggled); err != nil {
		return alarm.Alarm{}, err
	}

	return toggled, nil
}

// PushPosition reports one position sample to the daemon.
func (c *Client) PushPosition(ctx context.Context, position alarm.Coordinate) error {
	return c.call(ctx, http.MethodPost, "/v1/positions", position, nil)
}

// PredictPlaces asks the daemon for autocomplete suggestions.
func (c *Client) PredictPlaces(ctx context.Context, input string) ([]placelookup.Prediction, error) {
	var predictions []placelookup.Prediction

	path := "/v1/places/predict?input=" + url.QueryEscape(input)
	if err := c.call(ctx, http.MethodGet, path, nil, &predictions); err != nil {
		return nil, err
	}

	return predictions, nil
}

// ResolvePlace asks the daemon to turn a place id into a coordinate.
func (c *Client) ResolvePlace(ctx context.Context, placeID string) (*alarm.Coordinate, error) {
	var coordinate alarm.Coordinate

	path := "/v1/places/resolve?id=" + url.QueryEscape(placeID)
	if err := c.call(ctx, http.MethodGet, path, nil, &coordinate); err != nil {
		return nil, err
	}

	return &coordinate, nil
}

// Health reports daemon liveness and the tracking session state.
type Health struct {
	Status   string `json:"status"`
	Tracking bool   `json:"tracking"`
	Session  string `json:"session"`
}

// Health fetches the daemon's health summary.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	if err := c.call(ctx, http.MethodGet, "/healthz", nil, &health); err != nil {
		return Health{}, err
	}

	return health, nil
}

// WatchEvents opens the trigger event stream. The returned channel closes
// when ctx ends or the connection drops.
func (c *Client) WatchEvents(ctx context.Context) (<-chan alarm.TriggerEvent, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsBaseURL+"/v1/events/ws", nil)
	if err != nil {
		return nil, fmt.Errorf("dial event stream: %w", err)
	}

	events := make(chan alarm.TriggerEvent)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(events)
		defer func() {
			_ = conn.Close()
		}()

		for {
			var event alarm.TriggerEvent
			if err := conn.ReadJSON(&event); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					logger.DebugKV(ctx, "Event stream closed", "error", err)
				}

				return
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// PositionFeed is an open WebSocket position feed to the daemon.
type PositionFeed struct {
	conn *websocket.Conn
}

// Send pushes one position sample onto the feed.
func (f *PositionFeed) Send(position alarm.Coordinate) error {
	if err := f.conn.WriteJSON(position); err != nil {
		return fmt.Errorf("send position: %w", err)
	}

	return nil
}

// Close shuts the feed down cleanly.
func (f *PositionFeed) Close() error {
	_ = f.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)

	return f.conn.Close()
}

// OpenPositionFeed dials the daemon's position feed endpoint.
func (c *Client) OpenPositionFeed(ctx context.Context) (*PositionFeed, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsBaseURL+"/v1/positions/ws", nil)
	if err != nil {
		return nil, fmt.Errorf("dial position feed: %w", err)
	}

	return &PositionFeed{conn: conn}, nil
}

// apiError is the daemon's uniform error payload.
type apiError struct {
	Error string `json:"error"`
}

// call performs one JSON round-trip against the daemon.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload apiError

		_ = json.NewDecoder(resp.Body).Decode(&payload)

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, payload.Error)
		}

		if payload.Error == "" {
			payload.Error = resp.Status
		}

		return fmt.Errorf("%s %s: %s", method, path, payload.Error)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
