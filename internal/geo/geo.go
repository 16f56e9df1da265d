package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6_371_000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Box is an axis-aligned lat/lng rectangle.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Distance returns the great-circle (haversine) distance in meters.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}

	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// Rounding can push a slightly above 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

// DistanceBetween is Distance for two points.
func DistanceBetween(a, b Point) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// WithinRadius reports whether b lies within radius meters of a (inclusive).
func WithinRadius(a, b Point, radiusMeters float64) bool {
	return DistanceBetween(a, b) <= radiusMeters
}

// BoundingBox returns a conservative rectangle around center that contains
// every point within radiusMeters. Use it as a cheap pre-filter only; the
// authoritative test is WithinRadius.
func BoundingBox(center Point, radiusMeters float64) Box {
	if radiusMeters < 0 {
		radiusMeters = 0
	}

	dLat := toDegrees(radiusMeters / EarthRadiusMeters)

	box := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}

	// Near the poles the longitude span degenerates; keep the full range.
	cosLat := math.Cos(toRadians(center.Lat))
	if cosLat < 1e-9 || box.MinLat == -90 || box.MaxLat == 90 {
		return box
	}

	dLng := dLat / cosLat
	if dLng >= 180 {
		return box
	}
	box.MinLng = center.Lng - dLng
	box.MaxLng = center.Lng + dLng
	return box
}

// Contains reports whether p falls inside the box. Boxes crossing the
// antimeridian are handled by wrapping p into the box's longitude range.
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	lng := p.Lng
	if lng < b.MinLng {
		lng += 360
	} else if lng > b.MaxLng {
		lng -= 360
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
