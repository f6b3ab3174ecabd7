// Package geo computes great-circle distances on the WGS84 ellipsoid.
// Candidate rows are prefiltered in SQL with a bounding box over plain
// lat/lng columns, then the precise distance is computed here. That keeps
// the queries portable between MySQL and SQLite instead of requiring a
// spatial extension.
package geo

import "math"

const (
	// WGS84 parameters.
	equatorialRadiusKm = 6378.137
	flattening         = 1.0 / 298.257223563

	kmPerDegreeLat   = 110.574
	kmPerDegreeLonEq = 111.320
)

// DistanceKm returns the spheroidal great-circle distance in kilometers
// between two points, using the Andoyer-Lambert approximation (first-order
// in flattening, sub-10m error at the scale of a city search).
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	// reduced latitudes on the auxiliary sphere
	beta1 := math.Atan((1 - flattening) * math.Tan(phi1))
	beta2 := math.Atan((1 - flattening) * math.Tan(phi2))

	h := hav(beta2-beta1) + math.Cos(beta1)*math.Cos(beta2)*hav(dLambda)
	sigma := 2 * math.Asin(math.Min(1, math.Sqrt(h)))
	if sigma == 0 {
		return 0
	}

	p := (beta1 + beta2) / 2
	q := (beta2 - beta1) / 2

	x := (sigma - math.Sin(sigma)) * sq(math.Sin(p)) * sq(math.Cos(q)) / sq(math.Cos(sigma/2))
	y := (sigma + math.Sin(sigma)) * sq(math.Cos(p)) * sq(math.Sin(q)) / sq(math.Sin(sigma/2))

	return equatorialRadiusKm * (sigma - flattening/2*(x+y))
}

// BoundingBox returns the lat/lon window that fully contains a circle of
// radiusKm around the point. The window slightly overshoots the circle;
// rows inside it still go through the exact DistanceKm filter.
func BoundingBox(lat, lon, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	latDelta := radiusKm / kmPerDegreeLat
	minLat, maxLat = lat-latDelta, lat+latDelta

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-6 {
		// polar viewer: every longitude is within reach
		return minLat, maxLat, -180, 180
	}

	lonDelta := radiusKm / (kmPerDegreeLonEq * cosLat)
	minLon, maxLon = lon-lonDelta, lon+lonDelta
	return minLat, maxLat, minLon, maxLon
}

func hav(theta float64) float64 {
	s := math.Sin(theta / 2)
	return s * s
}

func sq(x float64) float64 { return x * x }
