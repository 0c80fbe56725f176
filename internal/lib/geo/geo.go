// Package geo provides the geometric primitives for matching a moving
// location onto a routed path: great-circle distances, shrink-corrected
// planar projection onto route segments, and polyline snapping.
package geo

import "math"

// Earth's radius in meters
const earthRadius = 6371000

// Coordinate is a WGS84 position in degrees. Immutable value type.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance calculates the great-circle distance between two points in
// meters using the haversine formula. Symmetric, zero for identical points.
func Distance(a, b Coordinate) float64 {
	sinDeltaLat := math.Sin(toRadians(b.Lat-a.Lat) / 2)
	sinDeltaLng := math.Sin(toRadians(b.Lng-a.Lng) / 2)
	normed := sinDeltaLat*sinDeltaLat +
		sinDeltaLng*sinDeltaLng*math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))
	return earthRadius * 2 * math.Asin(math.Sqrt(normed))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// shrinkFactor compensates for the narrowing of longitude degrees away
// from the equator, so segment math can run on a flat plane. This is an
// approximation that holds at the scale of single route segments.
func shrinkFactor(aLat, bLat float64) float64 {
	return math.Cos(toRadians((aLat + bLat) / 2))
}

// ProjectOntoSegment returns the orthogonal projection of r onto the
// infinite line through a and b, computed in shrink-corrected planar
// coordinates. Horizontal and vertical segments are handled explicitly.
func ProjectOntoSegment(r, a, b Coordinate) Coordinate {
	shrink := shrinkFactor(a.Lat, b.Lat)

	aLng := a.Lng * shrink
	bLng := b.Lng * shrink
	rLng := r.Lng * shrink

	deltaLng := bLng - aLng
	deltaLat := b.Lat - a.Lat

	if deltaLat == 0 {
		// horizontal edge
		return Coordinate{Lat: a.Lat, Lng: r.Lng}
	}
	if deltaLng == 0 {
		// vertical edge
		return Coordinate{Lat: r.Lat, Lng: a.Lng}
	}

	norm := deltaLng*deltaLng + deltaLat*deltaLat
	factor := ((rLng-aLng)*deltaLng + (r.Lat-a.Lat)*deltaLat) / norm

	return Coordinate{
		Lat: a.Lat + factor*deltaLat,
		Lng: (aLng + factor*deltaLng) / shrink,
	}
}

// ProjectionWithinSegment reports whether the projection of r onto the
// line through a and b falls strictly between a and b. Both dot products
// must be positive, i.e. the angles at a and b are below 90 degrees.
func ProjectionWithinSegment(r, a, b Coordinate) bool {
	shrink := shrinkFactor(a.Lat, b.Lat)

	aLng := a.Lng * shrink
	bLng := b.Lng * shrink
	rLng := r.Lng * shrink

	arX := rLng - aLng
	arY := r.Lat - a.Lat
	abX := bLng - aLng
	abY := b.Lat - a.Lat
	abAr := arX*abX + arY*abY

	rbX := bLng - rLng
	rbY := b.Lat - r.Lat
	abRb := rbX*abX + rbY*abY

	return abAr > 0 && abRb > 0
}

// Snap is the result of matching a point onto a polyline.
type Snap struct {
	Index    int        // index of the polyline point where the best match was found
	Point    Coordinate // snapped coordinate on the polyline
	Distance float64    // meters from the query point to the snapped coordinate
}

// SnapToPolyline finds the closest position on the polyline to r,
// considering each vertex and, where the projection falls inside a
// segment, the projected point. Ties keep the first (lowest index)
// candidate, which matters for routes that revisit the same area.
//
// Precondition: points must not be empty.
func SnapToPolyline(points []Coordinate, r Coordinate) Snap {
	best := Snap{Index: -1, Distance: math.MaxFloat64}
	for i, p := range points {
		snapped := p
		dist := Distance(p, r)
		if i+1 < len(points) {
			next := points[i+1]
			if ProjectionWithinSegment(r, p, next) {
				projected := ProjectOntoSegment(r, p, next)
				if d := Distance(projected, r); d < dist {
					snapped = projected
					dist = d
				}
			}
		}
		if dist < best.Distance {
			best = Snap{Index: i, Point: snapped, Distance: dist}
		}
	}
	return best
}

// Orientation returns the angle of the vector from one point to the next
// in east-based mathematical convention (radians, counterclockwise,
// zero pointing east), using the same latitude shrink as the projection.
func Orientation(from, to Coordinate) float64 {
	shrink := shrinkFactor(from.Lat, to.Lat)
	return math.Atan2(to.Lat-from.Lat, (to.Lng-from.Lng)*shrink)
}

// ToNorthBased converts an east-based orientation into a north-based
// clockwise angle in [0, 2pi), i.e. a compass bearing in radians.
func ToNorthBased(orientation float64) float64 {
	bearing := math.Pi/2 - orientation
	for bearing < 0 {
		bearing += 2 * math.Pi
	}
	for bearing >= 2*math.Pi {
		bearing -= 2 * math.Pi
	}
	return bearing
}
