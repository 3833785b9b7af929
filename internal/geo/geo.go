// Package geo provides great-circle distance math for geofence evaluation.
package geo

import (
	"math"

	"wakemeup/internal/domain/alarm"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// DistanceMeters computes the great-circle distance between two coordinates
// using the haversine formula. Inputs are in degrees, the result in meters.
func DistanceMeters(a, b alarm.Coordinate) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Latitude))*math.Cos(radians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// radians converts degrees to radians.
func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
