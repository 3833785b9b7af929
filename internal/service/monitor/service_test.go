package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wakemeup/internal/broker"
	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/engine"
	"wakemeup/internal/location"
	"wakemeup/internal/repository/alarms"
	"wakemeup/internal/store"
)

// harness bundles a fully wired coordinator over a push-fed provider.
type harness struct {
	service  *Service
	provider *location.PushProvider
	events   *broker.MemoryBroker
	store    *store.AlarmStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := alarms.NewFileRepository(filepath.Join(t.TempDir(), "alarms.json"))
	st := store.New(repo)
	provider := location.NewPushProvider()
	session := location.NewSession(provider, location.Settings{},
		location.WithOneShotTimeout(50*time.Millisecond),
		location.WithSettleDelay(0),
	)
	events := broker.NewMemoryBroker()
	service := NewService(st, session, engine.New(st), events, 0)

	t.Cleanup(service.Dispose)

	return &harness{service: service, provider: provider, events: events, store: st}
}

// TestInitialize_StartsTracking: a push-fed provider needs no handshake, so
// the session comes up tracking-ready.
func TestInitialize_StartsTracking(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	require.NoError(t, h.service.Initialize(context.Background()))
	require.Equal(t, location.StateTracking, h.service.Session().State())
}

// TestAddAlarm_AssignsIDAndCapturesFix.
func TestAddAlarm_AssignsIDAndCapturesFix(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.service.Initialize(ctx))

	h.provider.Push(alarm.Coordinate{Latitude: 40, Longitude: -73})

	added, err := h.service.AddAlarm(ctx, alarm.Alarm{
		Name:        "Office",
		Destination: &alarm.Coordinate{Latitude: 40.75, Longitude: -73.99},
		Radius:      200,
		IsActive:    true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)
	require.NotNil(t, added.InitialLocation)
	require.InEpsilon(t, 40.0, added.InitialLocation.Latitude, 1e-9)

	stored, err := h.service.Alarm(added.ID)
	require.NoError(t, err)
	require.Equal(t, added, stored)
}

// TestAddAlarm_NoFixFallsBackToDestination: without a position the journey
// starts "at" the destination rather than nowhere.
func TestAddAlarm_NoFixFallsBackToDestination(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.service.Initialize(ctx))

	added, err := h.service.AddAlarm(ctx, alarm.Alarm{
		Name:        "Harbor",
		Destination: &alarm.Coordinate{Latitude: 59.93, Longitude: 30.31},
		Radius:      150,
	})
	require.NoError(t, err)
	require.NotNil(t, added.InitialLocation)
	require.Equal(t, *added.Destination, *added.InitialLocation)
}

// TestUpdateAlarm_KeepsStartingPosition: the starting position is fixed at
// creation; an update payload must not rewrite it, whatever it carries.
func TestUpdateAlarm_KeepsStartingPosition(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.service.Initialize(ctx))

	h.provider.Push(alarm.Coordinate{Latitude: 40, Longitude: -73})

	added, err := h.service.AddAlarm(ctx, alarm.Alarm{
		Name:        "Ferry",
		Destination: &alarm.Coordinate{Latitude: 40.75, Longitude: -73.99},
		Radius:      200,
		IsActive:    true,
	})
	require.NoError(t, err)

	// A decoded update body without the field backfills it from the
	// destination; the stored value must survive that.
	draft := added
	draft.Name = "Ferry terminal"
	draft.Radius = 350
	dest := *draft.Destination
	draft.InitialLocation = &dest

	updated, err := h.service.UpdateAlarm(ctx, draft)
	require.NoError(t, err)
	require.Equal(t, "Ferry terminal", updated.Name)
	require.InEpsilon(t, 40.0, updated.InitialLocation.Latitude, 1e-9)

	stored, err := h.service.Alarm(added.ID)
	require.NoError(t, err)
	require.InEpsilon(t, 40.0, stored.InitialLocation.Latitude, 1e-9)
	require.InEpsilon(t, -73.0, stored.InitialLocation.Longitude, 1e-9)
}

// TestToggleAlarm_FlipsActiveFlag.
func TestToggleAlarm_FlipsActiveFlag(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.service.Initialize(ctx))

	added, err := h.service.AddAlarm(ctx, alarm.Alarm{
		Name:        "Gym",
		Destination: &alarm.Coordinate{Latitude: 1, Longitude: 1},
		Radius:      100,
		IsActive:    true,
	})
	require.NoError(t, err)

	toggled, err := h.service.ToggleAlarm(ctx, added.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	toggled, err = h.service.ToggleAlarm(ctx, added.ID)
	require.NoError(t, err)
	require.True(t, toggled.IsActive)
}

// TestOperations_UnknownIDFail.
func TestOperations_UnknownIDFail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.service.Initialize(ctx))

	_, err := h.service.Alarm("ghost")
	require.ErrorIs(t, err, ErrAlarmNotFound)

	_, err = h.service.ToggleAlarm(ctx, "ghost")
	require.ErrorIs(t, err, ErrAlarmNotFound)

	err = h.service.RemoveAlarm(ctx, "ghost")
	require.ErrorIs(t, err, ErrAlarmNotFound)

	_, err = h.service.UpdateAlarm(ctx, alarm.Alarm{
		ID:          "ghost",
		Destination: &alarm.Coordinate{Latitude: 1, Longitude: 1},
		Radius:      100,
	})
	require.ErrorIs(t, err, ErrAlarmNotFound)
}

// TestTriggerFlow_PushedPositionsReachBroker walks a pushed track across a
// geofence boundary and expects exactly one event on the broker.
func TestTriggerFlow_PushedPositionsReachBroker(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.service.Initialize(ctx))

	destination := alarm.Coordinate{Latitude: 40.75, Longitude: -73.99}

	added, err := h.service.AddAlarm(ctx, alarm.Alarm{
		Name:            "Midtown",
		InitialLocation: &alarm.Coordinate{Latitude: 40, Longitude: -73},
		Destination:     &destination,
		Radius:          200,
		IsActive:        true,
	})
	require.NoError(t, err)

	events := h.events.Subscribe()
	defer h.events.Unsubscribe(events)

	// Well outside, then inside the 200 m radius.
	h.provider.Push(alarm.Coordinate{Latitude: 40.70, Longitude: -73.99})
	h.provider.Push(destination)

	select {
	case event := <-events:
		require.Equal(t, added.ID, event.Alarm.ID)
		require.LessOrEqual(t, event.DistanceMeters, added.Radius)
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger event reached the broker")
	}
}

// TestDispose_IsIdempotent.
func TestDispose_IsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.service.Initialize(context.Background()))

	h.service.Dispose()
	h.service.Dispose()

	require.False(t, h.service.Session().IsTracking())
}
