package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wakemeup/internal/domain/alarm"
)

// ReplayProvider plays back a recorded track at a fixed interval. Used for
// demos and soak testing without a live position feed.
type ReplayProvider struct {
	// points is the recorded track, emitted in order.
	points []alarm.Coordinate
	// mu protects interval and cursor.
	mu sync.Mutex
	// interval is the spacing between emitted points.
	interval time.Duration
	// cursor is the index of the most recently emitted point.
	cursor int
}

// errEmptyTrack is returned when a track file holds no points.
var errEmptyTrack = errors.New("track has no points")

// NewReplayProvider constructs a provider replaying the given points.
func NewReplayProvider(points []alarm.Coordinate, interval time.Duration) (*ReplayProvider, error) {
	if len(points) == 0 {
		return nil, errEmptyTrack
	}

	if interval <= 0 {
		interval = time.Second
	}

	return &ReplayProvider{
		points:   points,
		interval: interval,
		cursor:   -1,
	}, nil
}

// LoadTrack reads a JSON array of coordinates from disk.
func LoadTrack(path string) ([]alarm.Coordinate, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read track file: %w", err)
	}

	var points []alarm.Coordinate
	if err = json.Unmarshal(contents, &points); err != nil {
		return nil, fmt.Errorf("decode track file: %w", err)
	}

	if len(points) == 0 {
		return nil, errEmptyTrack
	}

	return points, nil
}

// Configure adopts the requested update interval.
func (r *ReplayProvider) Configure(settings Settings) error {
	if settings.Interval > 0 {
		r.mu.Lock()
		r.interval = settings.Interval
		r.mu.Unlock()
	}

	return nil
}

// IsServiceEnabled always reports true for a recorded track.
func (r *ReplayProvider) IsServiceEnabled(context.Context) (bool, error) {
	return true, nil
}

// RequestServiceEnable is a no-op for a recorded track.
func (r *ReplayProvider) RequestServiceEnable(context.Context) (bool, error) {
	return true, nil
}

// HasPermission always reports granted for a recorded track.
func (r *ReplayProvider) HasPermission(context.Context) (PermissionStatus, error) {
	return PermissionGranted, nil
}

// RequestPermission always reports granted.
func (r *ReplayProvider) RequestPermission(context.Context) (PermissionStatus, error) {
	return PermissionGranted, nil
}

// CurrentLocation returns the most recently replayed point, or the first
// point before playback starts.
func (r *ReplayProvider) CurrentLocation(context.Context) (*alarm.Coordinate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.cursor
	if index < 0 {
		index = 0
	}

	fix := r.points[index]

	return &fix, nil
}

// Subscribe starts playback. The stream closes when the track ends or ctx is
// canceled.
func (r *ReplayProvider) Subscribe(ctx context.Context) (<-chan Update, error) {
	r.mu.Lock()
	interval := r.interval
	r.mu.Unlock()

	ch := make(chan Update, subscriberBuffer)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := range r.points {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			r.mu.Lock()
			r.cursor = i
			r.mu.Unlock()

			fix := r.points[i]

			select {
			case ch <- Update{Position: &fix}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
