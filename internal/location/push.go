package location

import (
	"context"
	"sync"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/geo"
)

// PushProvider is a Provider fed externally: the daemon's HTTP and WebSocket
// handlers push position samples reported by the device carrying the GPS.
// Service and permission are always available; the handshake is the remote
// device's concern, not this process's.
type PushProvider struct {
	// mu protects settings, last fix, and the subscriber set.
	mu sync.Mutex
	// settings holds the configured stream tuning.
	settings Settings
	// last is the most recent pushed fix, served by CurrentLocation.
	last *alarm.Coordinate
	// lastDelivered is the last fix fanned out to subscribers, used for
	// minimum-movement filtering.
	lastDelivered *alarm.Coordinate
	// subs holds active stream subscriber channels.
	subs map[chan Update]struct{}
}

// NewPushProvider constructs an externally-fed provider.
func NewPushProvider() *PushProvider {
	return &PushProvider{
		subs: map[chan Update]struct{}{},
	}
}

// Configure applies stream settings.
func (p *PushProvider) Configure(settings Settings) error {
	p.mu.Lock()
	p.settings = settings
	p.mu.Unlock()

	return nil
}

// IsServiceEnabled always reports true: the feed is push-based.
func (p *PushProvider) IsServiceEnabled(context.Context) (bool, error) {
	return true, nil
}

// RequestServiceEnable is a no-op for a push-based feed.
func (p *PushProvider) RequestServiceEnable(context.Context) (bool, error) {
	return true, nil
}

// HasPermission always reports granted: the remote device did the handshake.
func (p *PushProvider) HasPermission(context.Context) (PermissionStatus, error) {
	return PermissionGranted, nil
}

// RequestPermission always reports granted.
func (p *PushProvider) RequestPermission(context.Context) (PermissionStatus, error) {
	return PermissionGranted, nil
}

// CurrentLocation returns the last pushed fix, or nil when nothing has been
// pushed yet.
func (p *PushProvider) CurrentLocation(context.Context) (*alarm.Coordinate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil {
		return nil, nil
	}

	fix := *p.last

	return &fix, nil
}

// Subscribe opens a stream that receives pushed samples until ctx ends.
func (p *PushProvider) Subscribe(ctx context.Context) (<-chan Update, error) {
	ch := make(chan Update, subscriberBuffer)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()

		p.mu.Lock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
		p.mu.Unlock()
	}()

	return ch, nil
}

// Push records a position sample and fans it out to subscribers. Samples
// that moved less than the configured minimum distance since the previously
// delivered one update the last fix but are not fanned out, matching GPS
// distance-filter semantics.
func (p *PushProvider) Push(position alarm.Coordinate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fix := position
	p.last = &fix

	if p.lastDelivered != nil && p.settings.MinDistanceMeters > 0 {
		if geo.DistanceMeters(*p.lastDelivered, position) < p.settings.MinDistanceMeters {
			return
		}
	}

	delivered := position
	p.lastDelivered = &delivered

	p.fanOut(Update{Position: &fix})
}

// Fail injects a transient stream error, e.g. when the feeding connection
// drops mid-track.
func (p *PushProvider) Fail(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.fanOut(Update{Err: err})
}

// fanOut delivers an update to every subscriber without blocking.
// Callers must hold mu.
func (p *PushProvider) fanOut(update Update) {
	for ch := range p.subs {
		select {
		case ch <- update:
		default:
		}
	}
}
