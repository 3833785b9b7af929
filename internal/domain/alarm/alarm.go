// Package alarm holds the domain model for geofence alarms: the persisted
// Alarm record, the Coordinate value type, and the TriggerEvent emitted when
// a position crosses into an alarm's radius.
package alarm

import (
	"encoding/json"
	"errors"
	"time"
)

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	// Latitude in degrees, positive north.
	Latitude float64 `json:"latitude"`
	// Longitude in degrees, positive east.
	Longitude float64 `json:"longitude"`
}

// Alarm is a persisted geofence definition.
type Alarm struct {
	// ID is the opaque unique identifier, assigned at creation, immutable.
	ID string `json:"id"`
	// Name is the user-facing label.
	Name string `json:"name"`
	// InitialLocation is where the user was when the alarm was created.
	// Display-only; never used for trigger evaluation.
	InitialLocation *Coordinate `json:"initialLocation,omitempty"`
	// Destination is the center of the geofence.
	Destination *Coordinate `json:"destination"`
	// Radius is the geofence radius in meters.
	Radius float64 `json:"radius"`
	// IsActive gates evaluation by the proximity engine.
	IsActive bool `json:"isActive"`
	// RingtonePath optionally references an audio asset to play on trigger.
	RingtonePath string `json:"ringtonePath,omitempty"`
}

var (
	// ErrDestinationRequired is returned when an alarm has no destination.
	ErrDestinationRequired = errors.New("alarm destination is required")
	// ErrInvalidRadius is returned when an alarm radius is not positive.
	ErrInvalidRadius = errors.New("alarm radius must be positive")
	// ErrNotFound is returned by operations on an unknown alarm id.
	ErrNotFound = errors.New("alarm not found")
	// ErrDuplicateID is returned when an added alarm reuses an existing id.
	ErrDuplicateID = errors.New("alarm id already exists")
)

// Validate checks the invariants every stored alarm must satisfy.
func (a *Alarm) Validate() error {
	if a.Destination == nil {
		return ErrDestinationRequired
	}

	if a.Radius <= 0 {
		return ErrInvalidRadius
	}

	return nil
}

// Clone returns a deep copy of the alarm to avoid leaking internal references.
func (a *Alarm) Clone() Alarm {
	cloned := *a
	cloned.InitialLocation = a.InitialLocation.clone()
	cloned.Destination = a.Destination.clone()

	return cloned
}

// clone returns a copy of the coordinate, or nil for nil.
func (c *Coordinate) clone() *Coordinate {
	if c == nil {
		return nil
	}

	copied := *c

	return &copied
}

// UnmarshalJSON decodes an alarm record, defaulting a missing initial
// location to the destination. Records persisted before the field existed
// must still load.
func (a *Alarm) UnmarshalJSON(data []byte) error {
	type plain Alarm

	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*a = Alarm(decoded)
	if a.InitialLocation == nil && a.Destination != nil {
		a.InitialLocation = a.Destination.clone()
	}

	return nil
}

// TriggerEvent is the signal fired when a position transitions from outside
// to inside an alarm's geofence.
type TriggerEvent struct {
	// Alarm is a snapshot of the alarm that fired.
	Alarm Alarm `json:"alarm"`
	// Position is the sample that crossed the boundary.
	Position Coordinate `json:"position"`
	// DistanceMeters is the distance from Position to the destination.
	DistanceMeters float64 `json:"distanceMeters"`
	// At is when the entry was detected.
	At time.Time `json:"at"`
}
