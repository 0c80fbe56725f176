package route

import (
	"errors"
	"math"

	"turnnav/internal/lib/geo"
)

// Candidate is a route considered by FindNextWayPoint: its full geometry
// and the waypoints it connects, both in travel order.
type Candidate struct {
	Coordinates []geo.Coordinate
	WayPoints   []geo.Coordinate
}

// WayPointMatch names the route closest to a location and the waypoint
// that follows the closest part of that route.
type WayPointMatch struct {
	ClosestRoute int
	NextWayPoint int
	Distance     float64
}

// ErrInvalidWayPointInput marks a caller contract violation: no routes,
// a route with fewer than 2 coordinates or waypoints, or more waypoints
// than coordinates.
var ErrInvalidWayPointInput = errors.New("invalid input when trying to find the next way point")

// FindNextWayPoint finds, over one or more candidate routes, the route
// closest to the given location and the waypoint following that closest
// stretch.
func FindNextWayPoint(routes []Candidate, location geo.Coordinate) (WayPointMatch, error) {
	if len(routes) < 1 {
		return WayPointMatch{}, ErrInvalidWayPointInput
	}
	for _, r := range routes {
		if len(r.Coordinates) < 2 || len(r.WayPoints) < 2 || len(r.WayPoints) > len(r.Coordinates) {
			return WayPointMatch{}, ErrInvalidWayPointInput
		}
	}

	match := WayPointMatch{Distance: math.MaxFloat64}
	for routeIndex, r := range routes {
		wayPoint := 0
		for _, point := range r.Coordinates {
			// passing within a meter of the current waypoint advances it
			if geo.Distance(point, r.WayPoints[wayPoint]) < 1 {
				wayPoint = min(len(r.WayPoints)-1, wayPoint+1)
			}
			if distance := geo.Distance(point, location); distance < match.Distance {
				match.Distance = distance
				match.ClosestRoute = routeIndex
				match.NextWayPoint = wayPoint
			}
		}
	}
	return match, nil
}
