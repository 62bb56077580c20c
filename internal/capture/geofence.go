package capture

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
const EarthRadiusMeters = 6_371_000.0

// DefaultRadiusMeters applies when a reference point is configured without
// a positive radius.
const DefaultRadiusMeters = 200

// MaxRadiusMeters bounds the configured radius.
const MaxRadiusMeters = 100_000

type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceMeters returns the haversine distance between two points given in
// decimal degrees.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push h a hair outside [0, 1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithinGeofence is inclusive: a point exactly on the boundary is inside.
func IsWithinGeofence(distance, radius float64) bool {
	return distance <= radius
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// GeofenceConfig is the school's allowed area. A nil Reference means no
// geofence is enforced.
type GeofenceConfig struct {
	Reference    *Point
	RadiusMeters int
}

func (g GeofenceConfig) Enforced() bool { return g.Reference != nil }

// Radius returns the effective radius in meters.
func (g GeofenceConfig) Radius() int {
	if g.RadiusMeters <= 0 {
		return DefaultRadiusMeters
	}
	return g.RadiusMeters
}

// Check measures s against the geofence. When no geofence is enforced it
// returns (0, true, false) and callers skip the distance entirely.
func (g GeofenceConfig) Check(s PositionSample) (distance float64, inside bool, enforced bool) {
	if !g.Enforced() {
		return 0, true, false
	}
	distance = DistanceMeters(g.Reference.Latitude, g.Reference.Longitude, s.Latitude, s.Longitude)
	return distance, IsWithinGeofence(distance, float64(g.Radius())), true
}
