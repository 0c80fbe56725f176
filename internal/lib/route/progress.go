package route

import (
	"math"

	"turnnav/internal/lib/geo"
)

// Progress describes where along an active path a location sits.
type Progress struct {
	// InstructionIndex is the index of the upcoming instruction, or -1
	// when no match was possible (empty instruction list, a caller
	// contract violation).
	InstructionIndex int
	// NextWaypointIndex counts via/destination boundaries: 1 means the
	// next waypoint to be reached is the first one after the start.
	NextWaypointIndex int
	DistanceToNext    float64 // meters to the end of the current instruction
	DistanceToRoute   float64 // meters from the location to the path geometry
	RemainingTime     int64   // milliseconds to the destination
	RemainingDistance float64 // meters to the destination
}

// CurrentInstruction matches a location against a path's instructions.
// Each instruction's point run is snapped separately while a global
// minimum distance is tracked; the winning instruction determines the
// upcoming instruction index, the distance to the next maneuver and the
// remaining time/distance estimates.
func CurrentInstruction(instructions []Instruction, location geo.Coordinate) Progress {
	progress := Progress{
		InstructionIndex:  -1,
		NextWaypointIndex: -1,
		DistanceToRoute:   math.MaxFloat64,
	}

	waypoints := 0
	for instrIdx, instruction := range instructions {
		points := instruction.Points
		for pIdx, p := range points {
			snapped := p
			dist := geo.Distance(p, location)
			if pIdx+1 < len(points) {
				next := points[pIdx+1]
				if geo.ProjectionWithinSegment(location, p, next) {
					projected := geo.ProjectOntoSegment(location, p, next)
					if d := geo.Distance(projected, location); d < dist {
						snapped = projected
						dist = d
					}
				}
			}
			if dist < progress.DistanceToRoute {
				progress.DistanceToRoute = dist
				// the upcoming instruction, or the final one when
				// already on the last leg
				if instrIdx+1 < len(instructions) {
					progress.InstructionIndex = instrIdx + 1
				} else {
					progress.InstructionIndex = instrIdx
				}
				// the last point of this instruction coincides with the
				// first point of the next by construction
				last := points[len(points)-1]
				progress.DistanceToNext = math.Round(geo.Distance(last, snapped))
				progress.NextWaypointIndex = waypoints + 1
			}
		}
		if instruction.Sign == SignFinish || instruction.Sign == SignReachedVia {
			waypoints++
		}
	}

	if progress.InstructionIndex < 0 {
		return progress
	}

	// estimate the time to the next maneuver proportionally from the
	// instruction currently being traveled
	var timeToNext float64
	if progress.InstructionIndex > 0 {
		prev := instructions[progress.InstructionIndex-1]
		if prev.Distance != 0 {
			timeToNext = float64(prev.Time) * (progress.DistanceToNext / prev.Distance)
		}
	}
	progress.RemainingTime = int64(timeToNext)
	progress.RemainingDistance = progress.DistanceToNext
	for i := progress.InstructionIndex; i < len(instructions); i++ {
		progress.RemainingTime += instructions[i].Time
		progress.RemainingDistance += instructions[i].Distance
	}
	return progress
}

// CurrentDetails snaps the location onto the full path geometry and
// returns, for each requested detail name, the value whose point range
// covers the snapped index. A nil entry means no detail covers the
// index or the path does not carry that detail.
func CurrentDetails(p Path, location geo.Coordinate, names []string) []any {
	values := make([]any, len(names))
	if len(p.Points) == 0 {
		return values
	}

	snap := geo.SnapToPolyline(p.Points, location)
	for i, name := range names {
		details := p.Details[name]
		for di, detail := range details {
			if snap.Index < detail.From {
				continue
			}
			// the final triple's end index is inclusive
			if snap.Index < detail.To || (di == len(details)-1 && snap.Index == detail.To) {
				values[i] = detail.Value
				break
			}
		}
	}
	return values
}
