package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	angelsCamp := Coordinate{Lat: 38.0675, Lng: -120.5436}
	murphys := Coordinate{Lat: 38.1391, Lng: -120.4561}

	distance := Distance(angelsCamp, murphys)
	assert.InDelta(t, 11046, distance, 100, "Distance should be approximately 11.0km")

	// symmetry and identity
	assert.Equal(t, distance, Distance(murphys, angelsCamp))
	assert.Equal(t, 0.0, Distance(angelsCamp, angelsCamp))
}

func TestProjectOntoSegment(t *testing.T) {
	// horizontal edge: projection keeps the segment's latitude
	a := Coordinate{Lat: 10, Lng: 0}
	b := Coordinate{Lat: 10, Lng: 0.01}
	r := Coordinate{Lat: 10.001, Lng: 0.004}
	projected := ProjectOntoSegment(r, a, b)
	assert.Equal(t, 10.0, projected.Lat)
	assert.Equal(t, 0.004, projected.Lng)

	// vertical edge: projection keeps the segment's longitude
	a = Coordinate{Lat: 10, Lng: 0.01}
	b = Coordinate{Lat: 10.01, Lng: 0.01}
	r = Coordinate{Lat: 10.004, Lng: 0.0099}
	projected = ProjectOntoSegment(r, a, b)
	assert.Equal(t, 10.004, projected.Lat)
	assert.InDelta(t, 0.01, projected.Lng, 1e-12)

	// diagonal edge: projection of a point already on the line is the point itself
	a = Coordinate{Lat: 0, Lng: 0}
	b = Coordinate{Lat: 0.01, Lng: 0.01}
	r = Coordinate{Lat: 0.005, Lng: 0.005}
	projected = ProjectOntoSegment(r, a, b)
	assert.InDelta(t, 0.005, projected.Lat, 1e-9)
	assert.InDelta(t, 0.005, projected.Lng, 1e-9)
}

func TestProjectionWithinSegment(t *testing.T) {
	a := Coordinate{Lat: 0, Lng: 0}
	b := Coordinate{Lat: 0, Lng: 0.01}

	assert.True(t, ProjectionWithinSegment(Coordinate{Lat: 0.001, Lng: 0.005}, a, b))
	// beyond either endpoint the projection leaves the segment
	assert.False(t, ProjectionWithinSegment(Coordinate{Lat: 0.001, Lng: -0.005}, a, b))
	assert.False(t, ProjectionWithinSegment(Coordinate{Lat: 0.001, Lng: 0.015}, a, b))
}

func TestSnapToPolyline(t *testing.T) {
	// collinear, equally spaced points along the equator
	points := []Coordinate{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
		{Lat: 0, Lng: 0.002},
	}

	// exactly at the midpoint of the first segment
	snap := SnapToPolyline(points, Coordinate{Lat: 0, Lng: 0.0005})
	assert.Equal(t, 0, snap.Index)
	assert.InDelta(t, 0, snap.Distance, 0.001)

	// perpendicular offset from the second segment
	snap = SnapToPolyline(points, Coordinate{Lat: 0.0005, Lng: 0.0015})
	assert.Equal(t, 1, snap.Index)
	assert.InDelta(t, 55.6, snap.Distance, 1)
	assert.InDelta(t, 0.0015, snap.Point.Lng, 1e-9)
}

func TestSnapToPolylineTieBreak(t *testing.T) {
	// out-and-back route passing the same segment twice: the first
	// (lowest index) candidate must win on an exact tie
	points := []Coordinate{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
		{Lat: 0, Lng: 0},
	}
	snap := SnapToPolyline(points, Coordinate{Lat: 0, Lng: 0.0004})
	assert.Equal(t, 0, snap.Index)
	assert.InDelta(t, 0, snap.Distance, 0.001)
}

func TestOrientation(t *testing.T) {
	cases := []struct {
		name         string
		from, to     Coordinate
		degrees      float64
		northDegrees float64
	}{
		{"down+east", Coordinate{51.439146, 14.245258}, Coordinate{51.438908, 14.245931}, -30, 120},
		{"down", Coordinate{51.439146, 14.245258}, Coordinate{51.438748, 14.245255}, -90, 180},
		{"down+west", Coordinate{51.439146, 14.245258}, Coordinate{51.439015, 14.244568}, -163, 253},
		{"up+west", Coordinate{51.439146, 14.245258}, Coordinate{51.43953, 14.244536}, 140, 310},
		{"up+east", Coordinate{51.439146, 14.245258}, Coordinate{51.439584, 14.24592}, 47, 43},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			orientation := Orientation(c.from, c.to)
			assert.InDelta(t, c.degrees, toDegrees(orientation), 0.5)
			assert.InDelta(t, c.northDegrees, toDegrees(ToNorthBased(orientation)), 0.5)
		})
	}
}

func toDegrees(radians float64) float64 {
	return radians / math.Pi * 180
}
