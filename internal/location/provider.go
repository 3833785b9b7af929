package location

import (
	"context"
	"time"

	"wakemeup/internal/domain/alarm"
)

// Accuracy is the requested position accuracy class.
type Accuracy string

const (
	AccuracyLow      Accuracy = "low"
	AccuracyBalanced Accuracy = "balanced"
	AccuracyHigh     Accuracy = "high"
	AccuracyBest     Accuracy = "best"
)

// PermissionStatus is the platform's answer to a location permission query.
type PermissionStatus int

const (
	// PermissionUndetermined means the user has not been asked yet.
	PermissionUndetermined PermissionStatus = iota
	// PermissionGranted means location access is allowed.
	PermissionGranted
	// PermissionDenied means the user refused location access.
	PermissionDenied
)

// Settings tunes a provider's update stream.
type Settings struct {
	// Accuracy is the requested accuracy class.
	Accuracy Accuracy
	// Interval is the requested spacing between continuous updates.
	Interval time.Duration
	// MinDistanceMeters suppresses updates closer than this to the
	// previously delivered one.
	MinDistanceMeters float64
}

// Update is one message from a provider's continuous stream. Exactly one of
// Position or Err is set. An Err update is transient: the stream stays open
// and later positions keep flowing.
type Update struct {
	Position *alarm.Coordinate
	Err      error
}

// Provider abstracts a platform position source. Implementations are chosen
// once at startup and injected; nothing else in the codebase branches on the
// platform.
type Provider interface {
	// Configure applies stream settings before tracking starts.
	Configure(settings Settings) error
	// IsServiceEnabled reports whether the underlying location service is on.
	IsServiceEnabled(ctx context.Context) (bool, error)
	// RequestServiceEnable asks the platform to enable the location service.
	RequestServiceEnable(ctx context.Context) (bool, error)
	// HasPermission returns the current permission status without prompting.
	HasPermission(ctx context.Context) (PermissionStatus, error)
	// RequestPermission prompts the user and returns the resulting status.
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	// CurrentLocation performs a one-shot position fetch bounded by ctx.
	CurrentLocation(ctx context.Context) (*alarm.Coordinate, error)
	// Subscribe opens the continuous update stream. The returned channel
	// closes when ctx is canceled or the source ends.
	Subscribe(ctx context.Context) (<-chan Update, error)
}
