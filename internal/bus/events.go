package bus

import (
	"turnnav/internal/clients/router"
	"turnnav/internal/lib/geo"
	"turnnav/internal/lib/route"
)

// LocationUpdate carries a device position fix. Speed is in m/s,
// Heading in degrees clockwise from north.
type LocationUpdate struct {
	Coordinate geo.Coordinate
	Speed      float64
	Heading    float64
}

func (LocationUpdate) Name() string { return "location_update" }

// RouteRequestSuccess reports a completed routing call. RequestID is
// the generation id the request was dispatched with; consumers compare
// it against their latest accepted id to drop stale results.
type RouteRequestSuccess struct {
	RequestID int64
	Args      router.RoutingArgs
	Result    *router.RoutingResult
}

func (RouteRequestSuccess) Name() string { return "route_request_success" }

// RouteRequestFailed reports a failed routing call, correlated by the
// same generation id as successes.
type RouteRequestFailed struct {
	RequestID    int64
	Args         router.RoutingArgs
	ErrorMessage string
}

func (RouteRequestFailed) Name() string { return "route_request_failed" }

// SetSelectedPath announces which of the returned paths is active.
type SetSelectedPath struct {
	Path *route.Path
}

func (SetSelectedPath) Name() string { return "set_selected_path" }

// TurnNavigationStart signals navigation has started.
type TurnNavigationStart struct {
	Fake bool
}

func (TurnNavigationStart) Name() string { return "turn_navigation_start" }

// TurnNavigationStop signals navigation has ended.
type TurnNavigationStop struct{}

func (TurnNavigationStop) Name() string { return "turn_navigation_stop" }

// TurnNavigationRerouting signals a reroute request is in flight.
type TurnNavigationRerouting struct{}

func (TurnNavigationRerouting) Name() string { return "turn_navigation_rerouting" }

// ErrorNotification carries a user-presentable error message.
type ErrorNotification struct {
	Message string
}

func (ErrorNotification) Name() string { return "error_notification" }

// Announcement is a spoken navigation prompt.
type Announcement struct {
	Text string
}

func (Announcement) Name() string { return "announcement" }
