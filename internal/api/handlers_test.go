package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"wakemeup/internal/api"
	"wakemeup/internal/broker"
	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/engine"
	"wakemeup/internal/location"
	"wakemeup/internal/placelookup"
	"wakemeup/internal/repository/alarms"
	"wakemeup/internal/service/monitor"
	"wakemeup/internal/store"
)

// testServer is a fully wired daemon surface over a push-fed provider.
type testServer struct {
	url    string
	push   *location.PushProvider
	events *broker.MemoryBroker
	svc    *monitor.Service
}

func newTestServer(t *testing.T, places *placelookup.Client) *testServer {
	t.Helper()

	repo := alarms.NewFileRepository(filepath.Join(t.TempDir(), "alarms.json"))
	st := store.New(repo)
	push := location.NewPushProvider()
	session := location.NewSession(push, location.Settings{},
		location.WithOneShotTimeout(50*time.Millisecond),
		location.WithSettleDelay(0),
	)
	events := broker.NewMemoryBroker()
	svc := monitor.NewService(st, session, engine.New(st), events, 0)

	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(svc.Dispose)

	server := httptest.NewServer(api.NewServer(svc, push, events, places).Handler())
	t.Cleanup(server.Close)

	return &testServer{url: server.URL, push: push, events: events, svc: svc}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.url+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func decodeAlarm(t *testing.T, resp *http.Response) alarm.Alarm {
	t.Helper()

	defer func() {
		_ = resp.Body.Close()
	}()

	var a alarm.Alarm
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))

	return a
}

// TestAlarmCRUD walks the full alarm lifecycle over HTTP.
func TestAlarmCRUD(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodPost, "/v1/alarms", alarm.Alarm{
		Name:        "Station",
		Destination: &alarm.Coordinate{Latitude: 52.52, Longitude: 13.40},
		Radius:      300,
		IsActive:    true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeAlarm(t, resp)
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.InitialLocation)

	resp = ts.do(t, http.MethodGet, "/v1/alarms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []alarm.Alarm
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	_ = resp.Body.Close()
	require.Len(t, list, 1)

	resp = ts.do(t, http.MethodGet, "/v1/alarms/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, created, decodeAlarm(t, resp))

	created.Radius = 500
	resp = ts.do(t, http.MethodPut, "/v1/alarms/"+created.ID, created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.InEpsilon(t, 500.0, decodeAlarm(t, resp).Radius, 1e-9)

	resp = ts.do(t, http.MethodPost, "/v1/alarms/"+created.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, decodeAlarm(t, resp).IsActive)

	resp = ts.do(t, http.MethodDelete, "/v1/alarms/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp = ts.do(t, http.MethodGet, "/v1/alarms/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

// TestAddAlarm_RejectsInvalidDraft.
func TestAddAlarm_RejectsInvalidDraft(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodPost, "/v1/alarms", alarm.Alarm{Name: "No destination"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

// TestAddAlarm_DuplicateIDConflicts: a client-supplied id that is already
// taken must come back as 409 and leave the collection untouched.
func TestAddAlarm_DuplicateIDConflicts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	draft := alarm.Alarm{
		ID:          "fixed-id",
		Name:        "Original",
		Destination: &alarm.Coordinate{Latitude: 52.52, Longitude: 13.40},
		Radius:      300,
		IsActive:    true,
	}

	resp := ts.do(t, http.MethodPost, "/v1/alarms", draft)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	draft.Name = "Impostor"
	resp = ts.do(t, http.MethodPost, "/v1/alarms", draft)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	require.Len(t, ts.svc.Alarms(), 1)
	require.Equal(t, "Original", ts.svc.Alarms()[0].Name)
}

// TestPushPosition_FeedsTheProvider.
func TestPushPosition_FeedsTheProvider(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodPost, "/v1/positions", alarm.Coordinate{Latitude: 10, Longitude: 20})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	_ = resp.Body.Close()

	fix, err := ts.push.CurrentLocation(context.Background())
	require.NoError(t, err)
	require.NotNil(t, fix)
	require.InEpsilon(t, 10.0, fix.Latitude, 1e-9)
}

// TestPositionsWS_SamplesFlowThroughToTriggers feeds a track over WebSocket
// and expects the crossing to surface on the event stream.
func TestPositionsWS_SamplesFlowThroughToTriggers(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	ctx := context.Background()

	destination := alarm.Coordinate{Latitude: 40.75, Longitude: -73.99}

	_, err := ts.svc.AddAlarm(ctx, alarm.Alarm{
		Name:            "Midtown",
		InitialLocation: &alarm.Coordinate{Latitude: 40, Longitude: -73},
		Destination:     &destination,
		Radius:          200,
		IsActive:        true,
	})
	require.NoError(t, err)

	events := ts.events.Subscribe()
	defer ts.events.Unsubscribe(events)

	wsURL := "ws" + strings.TrimPrefix(ts.url, "http") + "/v1/positions/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
	}()

	require.NoError(t, conn.WriteJSON(alarm.Coordinate{Latitude: 40.70, Longitude: -73.99}))
	require.NoError(t, conn.WriteJSON(destination))

	select {
	case event := <-events:
		require.Equal(t, "Midtown", event.Alarm.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger event after crossing the geofence")
	}
}

// TestEventsWS_StreamsTriggerEvents.
func TestEventsWS_StreamsTriggerEvents(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.url, "http") + "/v1/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
	}()

	published := alarm.TriggerEvent{
		Alarm: alarm.Alarm{
			ID:          "a1",
			Name:        "Station",
			Destination: &alarm.Coordinate{Latitude: 1, Longitude: 2},
			Radius:      100,
		},
		Position:       alarm.Coordinate{Latitude: 1, Longitude: 2},
		DistanceMeters: 12,
		At:             time.Now().UTC(),
	}

	// The server subscribes during the upgrade; give the handler a moment.
	time.Sleep(100 * time.Millisecond)
	ts.events.Publish(context.Background(), published)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var received alarm.TriggerEvent
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, "a1", received.Alarm.ID)
	require.InEpsilon(t, 12.0, received.DistanceMeters, 1e-9)
}

// TestPlaces_ProxiedThroughClient exercises predict and resolve against a
// stubbed upstream.
func TestPlaces_ProxiedThroughClient(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "autocomplete") {
			_, _ = w.Write([]byte(`{"status":"OK","predictions":[{"place_id":"p1","description":"Central Park"}]}`))

			return
		}

		_, _ = w.Write([]byte(`{"status":"OK","result":{"geometry":{"location":{"lat":40.78,"lng":-73.97}}}}`))
	}))
	t.Cleanup(upstream.Close)

	places, err := placelookup.NewClient(upstream.URL, "key", 100)
	require.NoError(t, err)

	ts := newTestServer(t, places)

	resp := ts.do(t, http.MethodGet, "/v1/places/predict?input=central", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var predictions []placelookup.Prediction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&predictions))
	_ = resp.Body.Close()
	require.Len(t, predictions, 1)
	require.Equal(t, "p1", predictions[0].PlaceID)

	resp = ts.do(t, http.MethodGet, "/v1/places/resolve?id=p1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var coordinate alarm.Coordinate
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&coordinate))
	_ = resp.Body.Close()
	require.InEpsilon(t, 40.78, coordinate.Latitude, 1e-9)
}

// TestPlaces_UnconfiguredReturns503.
func TestPlaces_UnconfiguredReturns503(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/v1/places/predict?input=x", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}

// TestHealth_ReportsSessionState.
func TestHealth_ReportsSessionState(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status  string `json:"status"`
		Session string `json:"session"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "tracking", health.Session)
}
