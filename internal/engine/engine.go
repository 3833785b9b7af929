// Package engine implements the proximity state machine: it evaluates each
// position sample against every active alarm's geofence and fires a trigger
// exactly once per entry, re-arming when the position leaves the radius.
package engine

import (
	"context"
	"sync"
	"time"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/geo"
	"wakemeup/internal/logger"
	"wakemeup/internal/metrics"
	"wakemeup/internal/store"
)

// TriggerFunc receives a trigger event on the engine's evaluation path.
type TriggerFunc func(event alarm.TriggerEvent)

// PositionSource is the slice of the tracking session the engine drives
// from: the broadcast stream plus bounded one-shot polls.
type PositionSource interface {
	Subscribe() chan alarm.Coordinate
	Unsubscribe(ch chan alarm.Coordinate)
	CurrentLocation(ctx context.Context) *alarm.Coordinate
}

// registration pairs a callback with a handle for safe unregistration.
type registration struct {
	id int
	fn TriggerFunc
}

// Engine evaluates position samples against the alarm store. It holds only
// derived, disposable per-alarm entry state; alarm records stay in the store
// and are re-read on every evaluation.
type Engine struct {
	// store is the canonical alarm collection, read on each evaluation.
	store *store.AlarmStore

	// evalMu serializes evaluations so concurrent samples never interleave
	// on the per-alarm entry state.
	evalMu sync.Mutex

	// mu protects inside, callbacks, and cancels.
	mu sync.Mutex
	// inside records which alarms the last sample fell within. Never
	// persisted: a process restart resets every alarm to outside.
	inside map[string]bool
	// callbacks are trigger consumers in registration order.
	callbacks []registration
	// nextID hands out registration handles.
	nextID int
	// cancels tears down the stream and poll loops.
	cancels []context.CancelFunc

	// wg tracks the driving goroutines.
	wg sync.WaitGroup
}

// New creates an engine reading alarms from the provided store.
func New(st *store.AlarmStore) *Engine {
	return &Engine{
		store:  st,
		inside: map[string]bool{},
	}
}

// Register adds a trigger consumer and returns its unregister function.
// Consumers are invoked in registration order; unregistering during delivery
// is safe and takes effect from the next evaluation.
func (e *Engine) Register(fn TriggerFunc) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.callbacks = append(e.callbacks, registration{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		for i := range e.callbacks {
			if e.callbacks[i].id == id {
				e.callbacks = append(e.callbacks[:i], e.callbacks[i+1:]...)

				break
			}
		}
		e.mu.Unlock()
	}
}

// Start consumes the source's broadcast stream until ctx ends or Stop is
// called.
func (e *Engine) Start(ctx context.Context, src PositionSource) {
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancels = append(e.cancels, cancel)
	e.mu.Unlock()

	ch := src.Subscribe()

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer src.Unsubscribe(ch)

		for {
			select {
			case <-runCtx.Done():
				return
			case position, ok := <-ch:
				if !ok {
					return
				}

				e.Evaluate(runCtx, position)
			}
		}
	}()
}

// StartPolling drives the engine with fixed-interval one-shot polls, for
// bootstrap or sources without a continuous stream. Each poll feeds the same
// evaluation path as stream samples.
func (e *Engine) StartPolling(ctx context.Context, src PositionSource, interval time.Duration) {
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancels = append(e.cancels, cancel)
	e.mu.Unlock()

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				position := src.CurrentLocation(runCtx)
				if position == nil {
					// No new information. Entry state is left untouched so
					// a failed poll never reads as "user left".
					logger.Debug(runCtx, "Proximity poll skipped: no location")

					continue
				}

				e.Evaluate(runCtx, *position)
			}
		}
	}()
}

// Stop tears down the driving loops and waits for them to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	e.wg.Wait()
}

// Evaluate runs one sample through the entry/exit state machine for every
// active alarm.
func (e *Engine) Evaluate(ctx context.Context, position alarm.Coordinate) {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	metrics.SamplesEvaluated.Inc()

	list := e.store.List()
	known := make(map[string]struct{}, len(list))

	var fired []alarm.TriggerEvent

	e.mu.Lock()

	for i := range list {
		current := &list[i]
		known[current.ID] = struct{}{}

		if !current.IsActive {
			// A deactivated alarm sheds its entry state, so reactivating it
			// starts from outside like a freshly added alarm.
			delete(e.inside, current.ID)

			continue
		}

		distance := geo.DistanceMeters(position, *current.Destination)
		insideNow := distance <= current.Radius
		wasInside := e.inside[current.ID]

		switch {
		case insideNow && !wasInside:
			e.inside[current.ID] = true
			fired = append(fired, alarm.TriggerEvent{
				Alarm:          current.Clone(),
				Position:       position,
				DistanceMeters: distance,
				At:             time.Now(),
			})
		case !insideNow:
			delete(e.inside, current.ID)
		}
	}

	// Drop state for alarms that no longer exist.
	for id := range e.inside {
		if _, ok := known[id]; !ok {
			delete(e.inside, id)
		}
	}

	callbacks := make([]registration, len(e.callbacks))
	copy(callbacks, e.callbacks)

	e.mu.Unlock()

	for _, event := range fired {
		metrics.TriggersFired.WithLabelValues(event.Alarm.ID).Inc()
		logger.InfoKV(ctx, "Geofence entered",
			"alarm_id", event.Alarm.ID,
			"alarm_name", event.Alarm.Name,
			"distance_m", event.DistanceMeters,
		)

		for _, reg := range callbacks {
			reg.fn(event)
		}
	}
}
