// Package route holds the routed-path model and the pure calculations
// that track live progress along a path: current instruction, remaining
// time/distance, path-detail lookup and next-waypoint search.
package route

import (
	"encoding/json"
	"fmt"

	"turnnav/internal/lib/geo"
)

// Turn sign codes of the routing service that mark waypoint boundaries.
const (
	SignFinish     = 4
	SignReachedVia = 5
)

// Path is one routed leg or alternative. It is owned by the request that
// produced it and replaced wholesale on every successful route or
// reroute, never mutated.
type Path struct {
	Distance         float64             `json:"distance"` // meters
	Time             int64               `json:"time"`     // milliseconds
	Ascend           float64             `json:"ascend"`
	Descend          float64             `json:"descend"`
	BBox             [4]float64          `json:"bbox"`
	Points           []geo.Coordinate    `json:"points"`
	SnappedWaypoints []geo.Coordinate    `json:"snapped_waypoints"`
	Instructions     []Instruction       `json:"instructions"`
	Details          map[string][]Detail `json:"details"`
}

// Instruction is a single turn instruction. Interval indexes into the
// path's points; consecutive instruction intervals partition the point
// indices contiguously from 0 to len(points)-1.
type Instruction struct {
	Sign       int     `json:"sign"`
	Text       string  `json:"text"`
	StreetName string  `json:"street_name"`
	Distance   float64 `json:"distance"` // meters
	Time       int64   `json:"time"`     // milliseconds
	Interval   [2]int  `json:"interval"`

	// Points is the instruction's slice of the path geometry, cut from
	// Path.Points along Interval when the response is decoded.
	Points []geo.Coordinate `json:"-"`
}

// Detail is one entry of a named path detail array: the half-open point
// index range [From,To) and the detail value over that range, e.g. a
// max_speed number or a surface name.
type Detail struct {
	From  int
	To    int
	Value any
}

// UnmarshalJSON parses the wire form [fromPointIndex, toPointIndex, value].
func (d *Detail) UnmarshalJSON(data []byte) error {
	var triple [3]any
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("failed to parse path detail: %w", err)
	}
	from, ok := triple[0].(float64)
	if !ok {
		return fmt.Errorf("path detail start index is not a number: %v", triple[0])
	}
	to, ok := triple[1].(float64)
	if !ok {
		return fmt.Errorf("path detail end index is not a number: %v", triple[1])
	}
	d.From = int(from)
	d.To = int(to)
	d.Value = triple[2]
	return nil
}

// MarshalJSON restores the wire form.
func (d Detail) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{d.From, d.To, d.Value})
}

// AverageSpeed returns the path's overall average speed in km/h.
func (p Path) AverageSpeed() float64 {
	if p.Time == 0 {
		return 0
	}
	return p.Distance / (float64(p.Time) / 1000) * 3.6
}
