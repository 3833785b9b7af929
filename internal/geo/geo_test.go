package geo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wakemeup/internal/domain/alarm"
)

// TestDistanceMeters_ZeroForSamePoint: distance from any point to itself is zero.
func TestDistanceMeters_ZeroForSamePoint(t *testing.T) {
	t.Parallel()

	points := []alarm.Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 37.0, Longitude: -122.0},
		{Latitude: -89.9, Longitude: 179.9},
	}

	for _, p := range points {
		require.Zero(t, DistanceMeters(p, p))
	}
}

// TestDistanceMeters_Symmetry: d(a,b) == d(b,a).
func TestDistanceMeters_Symmetry(t *testing.T) {
	t.Parallel()

	a := alarm.Coordinate{Latitude: 55.7558, Longitude: 37.6173}
	b := alarm.Coordinate{Latitude: 59.9343, Longitude: 30.3351}

	require.InEpsilon(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-12)
}

// TestDistanceMeters_KnownDistances checks a few well-known city pairs to
// within a fraction of a percent.
func TestDistanceMeters_KnownDistances(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b alarm.Coordinate
		want float64
	}{
		{
			name: "Moscow to Saint Petersburg",
			a:    alarm.Coordinate{Latitude: 55.7558, Longitude: 37.6173},
			b:    alarm.Coordinate{Latitude: 59.9343, Longitude: 30.3351},
			want: 634000,
		},
		{
			name: "one degree of latitude at the equator",
			a:    alarm.Coordinate{Latitude: 0, Longitude: 0},
			b:    alarm.Coordinate{Latitude: 1, Longitude: 0},
			want: 111195,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := DistanceMeters(tc.a, tc.b)
			require.InEpsilon(t, tc.want, got, 0.01)
		})
	}
}

// TestDistanceMeters_NonNegative spot-checks the sign over a grid of pairs.
func TestDistanceMeters_NonNegative(t *testing.T) {
	t.Parallel()

	grid := []alarm.Coordinate{
		{Latitude: -45, Longitude: -90},
		{Latitude: 0, Longitude: 0},
		{Latitude: 45, Longitude: 90},
		{Latitude: 89, Longitude: 179},
	}

	for _, a := range grid {
		for _, b := range grid {
			require.GreaterOrEqual(t, DistanceMeters(a, b), 0.0)
		}
	}
}
