// Package geo holds the great-circle distance model used for route costs
// and proximity checks.
package geo

import (
	"math"

	"route-tracker/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b domain.Coordinates) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Rounding can push h slightly outside [0, 1] near antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}
