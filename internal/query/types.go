package query

import (
	"encoding/json"

	"turnnav/internal/clients/router"
	"turnnav/internal/lib/geo"
)

// PointType classifies a query point by its position in the list.
type PointType int

const (
	PointFrom PointType = iota
	PointTo
	PointVia
)

// Marker colors per point type, matching the map marker palette.
const (
	colorFrom = "#417900"
	colorTo   = "#F97777"
	colorVia  = "#76D0F7"
)

// QueryPoint is one input slot of the route query. Points start
// uninitialized and become initialized once a coordinate is resolved by
// geocoding, dragging or clicking the map.
type QueryPoint struct {
	ID            int64
	Coordinate    geo.Coordinate
	QueryText     string
	IsInitialized bool
	Color         string
	Type          PointType
}

// SubRequestState tracks one dispatched routing request.
type SubRequestState int

const (
	RequestSent SubRequestState = iota
	RequestSuccess
	RequestFailed
)

// SubRequest is one routing request of the current generation. ID is
// the generation id it was dispatched with; responses are correlated by
// this id, never by comparing args.
type SubRequest struct {
	ID    int64
	Args  router.RoutingArgs
	State SubRequestState
}

// CurrentRequest groups the sub-requests issued by the latest route
// call.
type CurrentRequest struct {
	SubRequests []SubRequest
}

// State is the whole query state. It is replaced wholesale on every
// change; readers always get a complete snapshot.
type State struct {
	QueryPoints          []QueryPoint
	NextQueryPointID     int64
	CurrentRequest       CurrentRequest
	Profile              string
	MaxAlternativeRoutes int
	CustomModelEnabled   bool
	CustomModelText      string
}

// CustomModel returns the parsed custom model when it is enabled and
// valid JSON, or nil.
func (s State) CustomModel() json.RawMessage {
	if !s.CustomModelEnabled {
		return nil
	}
	if !json.Valid([]byte(s.CustomModelText)) {
		return nil
	}
	return json.RawMessage(s.CustomModelText)
}
