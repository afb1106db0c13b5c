// Package geo provides the spherical-earth distance math used by the
// site geofence checks.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean earth radius of the spherical approximation.
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoords indicates a latitude/longitude pair outside the valid range.
var ErrInvalidCoords = errors.New("invalid coordinates")

// ValidateCoords rejects NaN, infinite and out-of-range coordinates.
func ValidateCoords(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return ErrInvalidCoords
	}
	if lat < -90 || lat > 90 {
		return ErrInvalidCoords
	}
	if lng < -180 || lng > 180 {
		return ErrInvalidCoords
	}
	return nil
}

// DistanceMeters returns the haversine distance between two points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) (float64, error) {
	if err := ValidateCoords(lat1, lng1); err != nil {
		return 0, err
	}
	if err := ValidateCoords(lat2, lng2); err != nil {
		return 0, err
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c, nil
}
