package router

import (
	"encoding/json"

	"turnnav/internal/lib/route"
)

// RoutingArgs describes one routing request at the application level.
// Value type; correlation with an in-flight request happens through an
// explicit request id assigned at dispatch, never through identity of
// this struct.
type RoutingArgs struct {
	Points               [][]float64 // [lng,lat] pairs in visit order
	Profile              string
	MaxAlternativeRoutes int
	CustomModel          json.RawMessage // optional structured cost model
	Heading              *float64        // optional departure heading in degrees
}

// RouteRequest is the JSON body of POST /route.
type RouteRequest struct {
	Points              [][]float64     `json:"points"`
	Profile             string          `json:"profile"`
	Elevation           bool            `json:"elevation"`
	Debug               bool            `json:"debug"`
	Instructions        bool            `json:"instructions"`
	Locale              string          `json:"locale"`
	Optimize            string          `json:"optimize"`
	PointsEncoded       bool            `json:"points_encoded"`
	SnapPreventions     []string        `json:"snap_preventions"`
	Details             []string        `json:"details"`
	Headings            []float64       `json:"headings,omitempty"`
	CustomModel         json.RawMessage `json:"custom_model,omitempty"`
	CHDisable           bool            `json:"ch.disable,omitempty"`
	MaxAlternativePaths int             `json:"alternative_route.max_paths,omitempty"`
	Algorithm           string          `json:"algorithm,omitempty"`
}

// rawResult is the wire form of a routing response before the path
// geometry is decoded.
type rawResult struct {
	Info  Info      `json:"info"`
	Paths []rawPath `json:"paths"`
}

type rawPath struct {
	Distance         float64                   `json:"distance"`
	Time             int64                     `json:"time"`
	Ascend           float64                   `json:"ascend"`
	Descend          float64                   `json:"descend"`
	BBox             []float64                 `json:"bbox"`
	PointsEncoded    bool                      `json:"points_encoded"`
	Points           json.RawMessage           `json:"points"`
	SnappedWaypoints json.RawMessage           `json:"snapped_waypoints"`
	Instructions     []route.Instruction       `json:"instructions"`
	Details          map[string][]route.Detail `json:"details"`
}

// Info carries response metadata.
type Info struct {
	Copyrights []string `json:"copyrights"`
	Took       int64    `json:"took"`
}

// RoutingResult is a decoded routing response: one path per requested
// leg plus any alternatives.
type RoutingResult struct {
	Info  Info
	Paths []route.Path
}

// ApiInfo describes the routing service, from GET /info.
type ApiInfo struct {
	Profiles   []RoutingProfile `json:"profiles"`
	Elevation  bool             `json:"elevation"`
	BBox       [4]float64       `json:"bbox"`
	Version    string           `json:"version"`
	ImportDate string           `json:"import_date"`
}

// RoutingProfile is one routing profile offered by the service.
type RoutingProfile struct {
	Name string `json:"name"`
}

// errorResponse is the body of an HTTP 400 from the routing service.
type errorResponse struct {
	Message string `json:"message"`
	Hints   []struct {
		Message string `json:"message"`
	} `json:"hints"`
}
