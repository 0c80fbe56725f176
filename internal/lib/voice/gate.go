// Package voice decides when a turn instruction should be spoken. The
// gate is edge-triggered: each announcement fires exactly once per
// threshold crossing, so nothing is repeated while standing still or
// creeping along near a threshold.
package voice

import (
	"fmt"
	"math"
)

// earlyThreshold is the distance in meters at which the early
// announcement ("in 1 km ...") becomes due on fast roads.
const earlyThreshold = 1150

// minEarlySpeed is the average speed in km/h below which the early
// announcement is skipped entirely.
const minEarlySpeed = 15

// Gate tracks the previous update so announcements trigger on zone
// entry rather than on every update inside a zone. Not safe for
// concurrent use; the navigation session owns it.
type Gate struct {
	lastDistanceToNext float64
	lastIndex          int
}

// NewGate returns a gate in its pre-navigation state: the first update
// inside an announcement zone fires immediately.
func NewGate() *Gate {
	return &Gate{lastDistanceToNext: math.MaxFloat64, lastIndex: -1}
}

// FinalThreshold is the distance in meters of the final announcement
// zone, scaled with the path's average speed and never below 10 m.
func FinalThreshold(avgSpeedKmH float64) float64 {
	return 10 + 2*math.Round(avgSpeedKmH/5)*5
}

// Update consumes one on-route location update and reports whether an
// announcement is due. distanceToNext is the distance to the upcoming
// maneuver, index identifies the upcoming instruction, text is its
// spoken form and avgSpeedKmH the path's overall average speed.
func (g *Gate) Update(distanceToNext float64, index int, text string, avgSpeedKmH float64) (string, bool) {
	prevDistance := g.lastDistanceToNext
	indexChanged := index != g.lastIndex
	g.lastDistanceToNext = distanceToNext
	g.lastIndex = index

	final := FinalThreshold(avgSpeedKmH)

	// final announcement: crossing into the maneuver zone
	if distanceToNext <= final && (prevDistance > final || indexChanged) {
		return text, true
	}

	// early announcement: only on fast roads, and never overlapping the
	// final zone
	if avgSpeedKmH > minEarlySpeed &&
		distanceToNext > final+50 &&
		distanceToNext <= earlyThreshold &&
		(prevDistance > earlyThreshold || indexChanged) {
		return earlyPhrase(distanceToNext, text), true
	}

	return "", false
}

func earlyPhrase(distanceToNext float64, text string) string {
	if distanceToNext > 800 {
		return "in 1 km " + text
	}
	meters := int(math.Round(distanceToNext/100)) * 100
	return fmt.Sprintf("in %d meters %s", meters, text)
}
