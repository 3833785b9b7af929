package location

import (
	"context"
	"sync"
	"time"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/logger"
)

// State is the tracking session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StatePermissionDenied
	StateServiceDisabled
	StateTracking
	StateStopped
)

// String returns the lowercase state name for logging.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StatePermissionDenied:
		return "permission_denied"
	case StateServiceDisabled:
		return "service_disabled"
	case StateTracking:
		return "tracking"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// defaultOneShotTimeout bounds a single current-location query.
	defaultOneShotTimeout = 10 * time.Second
	// defaultSettleDelay is the pause after a fresh permission grant, letting
	// the platform's asynchronous authorization callback land before status
	// is queried again.
	defaultSettleDelay = 500 * time.Millisecond
	// subscriberBuffer is the per-subscriber channel capacity. A slow
	// subscriber drops updates instead of stalling delivery.
	subscriberBuffer = 8
)

// Session manages the lifecycle of a live position subscription: start,
// stop, the permission/enablement handshake, and error recovery. Provider
// updates are republished on an internal broadcast readable by any number of
// subscribers.
type Session struct {
	// provider is the injected platform position source.
	provider Provider
	// settings is the stream configuration applied during Initialize.
	settings Settings
	// settleDelay is applied after a fresh permission grant.
	settleDelay time.Duration
	// oneShotTimeout bounds CurrentLocation queries.
	oneShotTimeout time.Duration

	// mu protects the lifecycle fields below.
	mu sync.Mutex
	// state is the current lifecycle state.
	state State
	// granted caches a successful permission grant to avoid redundant
	// platform prompts.
	granted bool
	// tracking reports whether updates are currently flowing.
	tracking bool
	// cancel tears down the active provider subscription.
	cancel context.CancelFunc

	// subsMu protects the broadcast subscriber set.
	subsMu sync.Mutex
	// subs holds the broadcast subscriber channels.
	subs map[chan alarm.Coordinate]struct{}
}

// Option configures session behaviour.
type Option func(*Session)

// WithOneShotTimeout overrides the bound on one-shot location queries.
func WithOneShotTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		if timeout > 0 {
			s.oneShotTimeout = timeout
		}
	}
}

// WithSettleDelay overrides the pause applied after a fresh permission grant.
func WithSettleDelay(delay time.Duration) Option {
	return func(s *Session) {
		if delay >= 0 {
			s.settleDelay = delay
		}
	}
}

// NewSession creates a session over the provided position source.
func NewSession(provider Provider, settings Settings, opts ...Option) *Session {
	s := &Session{
		provider:       provider,
		settings:       settings,
		settleDelay:    defaultSettleDelay,
		oneShotTimeout: defaultOneShotTimeout,
		state:          StateUninitialized,
		subs:           map[chan alarm.Coordinate]struct{}{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// IsTracking reports whether updates are currently flowing.
func (s *Session) IsTracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tracking
}

// Initialize configures the provider, negotiates service enablement and
// permission, and reports whether the session is ready to track. Refusal is
// an outcome, not an error: the caller surfaces it to the user.
func (s *Session) Initialize(ctx context.Context) bool {
	s.setState(StateInitializing)

	if err := s.provider.Configure(s.settings); err != nil {
		logger.ErrorKV(ctx, "Failed to configure location provider", "error", err)
		s.setState(StateUninitialized)

		return false
	}

	enabled, err := s.provider.IsServiceEnabled(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Location service check failed", "error", err)

		enabled = false
	}

	if !enabled {
		enabled, err = s.provider.RequestServiceEnable(ctx)
		if err != nil {
			logger.WarnKV(ctx, "Location service enable request failed", "error", err)
		}
	}

	if !enabled {
		s.setState(StateServiceDisabled)

		return false
	}

	if !s.RequestPermission(ctx) {
		s.setState(StatePermissionDenied)

		return false
	}

	return true
}

// RequestPermission negotiates location permission with the platform.
// Idempotent: a cached grant short-circuits without prompting again. After a
// fresh grant it waits a fixed settling delay so the platform's asynchronous
// authorization callback is processed before subsequent status queries.
func (s *Session) RequestPermission(ctx context.Context) bool {
	s.mu.Lock()
	if s.granted {
		s.mu.Unlock()

		return true
	}
	s.mu.Unlock()

	status, err := s.provider.HasPermission(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Permission status query failed", "error", err)

		return false
	}

	if status == PermissionGranted {
		s.cacheGrant()

		return true
	}

	status, err = s.provider.RequestPermission(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Permission request failed", "error", err)

		return false
	}

	if status != PermissionGranted {
		return false
	}

	s.cacheGrant()
	s.settle(ctx)

	return true
}

// CurrentLocation performs a bounded one-shot position fetch. It returns nil
// on timeout, on a missing fix, or on any provider failure; the caller
// treats nil as "try again later", never as fatal.
func (s *Session) CurrentLocation(ctx context.Context) *alarm.Coordinate {
	if !s.RequestPermission(ctx) {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.oneShotTimeout)
	defer cancel()

	position, err := s.provider.CurrentLocation(queryCtx)
	if err != nil {
		logger.DebugKV(ctx, "One-shot location query failed", "error", err)

		return nil
	}

	return position
}

// StartTracking opens the continuous provider stream and republishes each
// update on the internal broadcast. The permission request is retried once,
// since the first prompt may race the platform's grant callback. Returns
// whether tracking started.
func (s *Session) StartTracking(ctx context.Context) bool {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()

		return true
	}
	s.mu.Unlock()

	granted := s.RequestPermission(ctx)
	if !granted {
		granted = s.RequestPermission(ctx)
	}

	if !granted {
		s.setState(StatePermissionDenied)

		return false
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	updates, err := s.provider.Subscribe(streamCtx)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to subscribe to location stream", "error", err)
		cancel()

		return false
	}

	s.mu.Lock()
	s.cancel = cancel
	s.state = StateTracking
	s.tracking = true
	s.mu.Unlock()

	go s.pump(ctx, updates)

	logger.Info(ctx, "Location tracking started")

	return true
}

// StopTracking cancels the provider subscription. Idempotent.
func (s *Session) StopTracking() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.tracking = false

	if cancel != nil {
		s.state = StateStopped
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Subscribe registers a broadcast reader of position updates.
func (s *Session) Subscribe() chan alarm.Coordinate {
	ch := make(chan alarm.Coordinate, subscriberBuffer)

	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	return ch
}

// Unsubscribe removes and closes a broadcast reader.
func (s *Session) Unsubscribe(ch chan alarm.Coordinate) {
	s.subsMu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.subsMu.Unlock()
}

// pump republishes provider updates until the stream closes. A mid-stream
// error marks tracking inactive but keeps reading, so a transient provider
// failure does not kill tracking permanently.
func (s *Session) pump(ctx context.Context, updates <-chan Update) {
	for update := range updates {
		if update.Err != nil {
			logger.WarnKV(ctx, "Location stream error", "error", update.Err)
			s.setTracking(false)

			continue
		}

		if update.Position == nil {
			continue
		}

		s.setTracking(true)
		s.broadcast(*update.Position)
	}

	s.setTracking(false)
}

// broadcast delivers a position to every subscriber without blocking.
func (s *Session) broadcast(position alarm.Coordinate) {
	s.subsMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- position:
		default:
		}
	}
	s.subsMu.Unlock()
}

// cacheGrant records a successful permission grant.
func (s *Session) cacheGrant() {
	s.mu.Lock()
	s.granted = true
	s.mu.Unlock()
}

// settle pauses after a fresh grant, bounded by ctx.
func (s *Session) settle(ctx context.Context) {
	if s.settleDelay <= 0 {
		return
	}

	timer := time.NewTimer(s.settleDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// setState updates the lifecycle state.
func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// setTracking updates the tracking flag.
func (s *Session) setTracking(tracking bool) {
	s.mu.Lock()
	s.tracking = tracking
	s.mu.Unlock()
}
