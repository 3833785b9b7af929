package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wakemeup/internal/broker"
	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/engine"
	"wakemeup/internal/location"
	"wakemeup/internal/logger"
	"wakemeup/internal/store"
)

// ErrAlarmNotFound is returned for operations on an unknown alarm id.
var ErrAlarmNotFound = alarm.ErrNotFound

// Service coordinates the store, the tracking session, and the engine. It
// owns their startup order and teardown, and publishes every trigger event to
// the broker.
type Service struct {
	store        *store.AlarmStore
	session      *location.Session
	engine       *engine.Engine
	events       broker.Broker
	pollInterval time.Duration

	// unregister removes the broker-publishing trigger callback on Dispose.
	unregister func()
}

// NewService wires the coordinator. The engine is not started until
// Initialize is called.
func NewService(
	st *store.AlarmStore,
	session *location.Session,
	eng *engine.Engine,
	events broker.Broker,
	pollInterval time.Duration,
) *Service {
	return &Service{
		store:        st,
		session:      session,
		engine:       eng,
		events:       events,
		pollInterval: pollInterval,
	}
}

// Initialize loads the persisted alarms, brings the tracking session up, and
// starts the engine on both the stream and the polling path. A session that
// cannot start tracking is not fatal: alarms stay editable and the polling
// loop picks position samples up as soon as the provider recovers.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.store.Load(ctx); err != nil {
		return fmt.Errorf("initialize monitor: %w", err)
	}

	s.unregister = s.engine.Register(func(event alarm.TriggerEvent) {
		s.events.Publish(ctx, event)
	})

	if !s.session.Initialize(ctx) {
		logger.WarnKV(ctx, "Location session not ready", "state", s.session.State().String())
	} else if !s.session.StartTracking(ctx) {
		logger.WarnKV(ctx, "Location tracking did not start", "state", s.session.State().String())
	}

	s.engine.Start(ctx, s.session)

	if s.pollInterval > 0 {
		s.engine.StartPolling(ctx, s.session, s.pollInterval)
	}

	logger.Info(ctx, "Alarm monitor initialized")

	return nil
}

// Alarms returns the current alarm collection in stored order.
func (s *Service) Alarms() []alarm.Alarm {
	return s.store.List()
}

// Alarm returns the alarm with the given id.
func (s *Service) Alarm(id string) (alarm.Alarm, error) {
	a, ok := s.store.Get(id)
	if !ok {
		return alarm.Alarm{}, ErrAlarmNotFound
	}

	return a, nil
}

// AddAlarm validates the draft, assigns an id when absent, captures the
// starting position, and persists the alarm. When no fix is available the
// starting position defaults to the destination, marking the journey as
// effectively not yet begun.
func (s *Service) AddAlarm(ctx context.Context, draft alarm.Alarm) (alarm.Alarm, error) {
	if err := draft.Validate(); err != nil {
		return alarm.Alarm{}, err
	}

	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}

	if draft.InitialLocation == nil {
		if fix := s.session.CurrentLocation(ctx); fix != nil {
			draft.InitialLocation = fix
		} else {
			destination := *draft.Destination
			draft.InitialLocation = &destination
		}
	}

	if err := s.store.Add(ctx, draft); err != nil {
		return alarm.Alarm{}, err
	}

	logger.InfoKV(ctx, "Alarm added", "alarm_id", draft.ID, "alarm_name", draft.Name)

	return draft, nil
}

// UpdateAlarm replaces an existing alarm. The id must already exist. The
// starting position is fixed at creation, so the stored value always wins
// over whatever the caller sends.
func (s *Service) UpdateAlarm(ctx context.Context, a alarm.Alarm) (alarm.Alarm, error) {
	existing, ok := s.store.Get(a.ID)
	if !ok {
		return alarm.Alarm{}, ErrAlarmNotFound
	}

	a.InitialLocation = existing.InitialLocation

	if err := s.store.Update(ctx, a); err != nil {
		return alarm.Alarm{}, err
	}

	return a, nil
}

// RemoveAlarm deletes the alarm with the given id.
func (s *Service) RemoveAlarm(ctx context.Context, id string) error {
	if _, ok := s.store.Get(id); !ok {
		return ErrAlarmNotFound
	}

	return s.store.Remove(ctx, id)
}

// ToggleAlarm flips an alarm's active flag and persists it. Deactivating an
// armed alarm also discards its geofence entry state inside the engine, so a
// later reactivation starts from outside.
func (s *Service) ToggleAlarm(ctx context.Context, id string) (alarm.Alarm, error) {
	a, ok := s.store.Get(id)
	if !ok {
		return alarm.Alarm{}, ErrAlarmNotFound
	}

	a.IsActive = !a.IsActive

	if err := s.store.Update(ctx, a); err != nil {
		return alarm.Alarm{}, err
	}

	logger.InfoKV(ctx, "Alarm toggled", "alarm_id", a.ID, "active", a.IsActive)

	return a, nil
}

// RegisterTriggerCallback adds an additional trigger consumer on the engine's
// evaluation path and returns its unregister function.
func (s *Service) RegisterTriggerCallback(fn engine.TriggerFunc) func() {
	return s.engine.Register(fn)
}

// Session exposes the tracking session for surfaces that report its state or
// feed it positions.
func (s *Service) Session() *location.Session {
	return s.session
}

// Dispose stops the engine and the tracking session. Safe to call more than
// once.
func (s *Service) Dispose() {
	if s.unregister != nil {
		s.unregister()
		s.unregister = nil
	}

	s.engine.Stop()
	s.session.StopTracking()
}
