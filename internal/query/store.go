// Package query owns the route query state: the list of query points,
// the routing profile and custom model, and the dispatch of routing
// requests. It guarantees that consumers only ever see the result (or
// error) of the most recently issued request generation, even when
// responses arrive out of order.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"turnnav/internal/bus"
	"turnnav/internal/clients/router"
	"turnnav/internal/lib/geo"
)

// Custom models disable speed-up techniques on the server, so long
// routes are refused before a request is even sent.
var ErrCustomModelTooFar = errors.New("using a custom model is not supported for routes longer than 500 km")

const (
	customModelSoftLimitMeters = 200_000
	customModelHardLimitMeters = 500_000
)

// RouteClient is the routing call the store dispatches. Satisfied by
// *router.Client.
type RouteClient interface {
	Route(ctx context.Context, args router.RoutingArgs) (*router.RoutingResult, error)
}

// Store owns the query state. All mutations go through its methods and
// replace the state wholesale; State() returns a consistent snapshot.
type Store struct {
	client RouteClient
	events *bus.Bus
	logger *slog.Logger

	mu             sync.Mutex
	state          State
	nextRequestID  atomic.Int64
	lastAcceptedID int64

	// publishMu spans the acceptance check and the bus publish, so
	// subscribers see accepted responses in acceptance order. Separate
	// from mu: handlers may call back into the store.
	publishMu sync.Mutex
}

// NewStore creates a store with two empty query points (from and to).
func NewStore(client RouteClient, events *bus.Bus, logger *slog.Logger, profile string, maxAlternativeRoutes int) *Store {
	s := &Store{
		client: client,
		events: events,
		logger: logger,
		state: State{
			Profile:              profile,
			MaxAlternativeRoutes: maxAlternativeRoutes,
			NextQueryPointID:     1,
		},
	}
	s.state.QueryPoints = []QueryPoint{s.newPoint(), s.newPoint()}
	assignTypes(s.state.QueryPoints)
	return s
}

// State returns a snapshot of the current query state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// AddPoint appends an uninitialized query point and returns it.
func (s *Store) AddPoint() QueryPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.newPoint()
	s.state.QueryPoints = append(s.snapshotPoints(), p)
	assignTypes(s.state.QueryPoints)
	return p
}

// SetPoint resolves a query point to a coordinate, marking it
// initialized. A route is dispatched if the query is now complete.
func (s *Store) SetPoint(ctx context.Context, id int64, coordinate geo.Coordinate, queryText string) {
	s.mu.Lock()
	points := s.snapshotPoints()
	for i := range points {
		if points[i].ID == id {
			points[i].Coordinate = coordinate
			points[i].QueryText = queryText
			points[i].IsInitialized = true
		}
	}
	s.state.QueryPoints = points
	s.mu.Unlock()

	s.routeIfReady(ctx)
}

// RemovePoint deletes a query point. Point types and colors are
// recomputed; a route is dispatched if the remaining points still form
// a complete query.
func (s *Store) RemovePoint(ctx context.Context, id int64) {
	s.mu.Lock()
	points := s.snapshotPoints()
	filtered := points[:0]
	for _, p := range points {
		if p.ID != id {
			filtered = append(filtered, p)
		}
	}
	assignTypes(filtered)
	s.state.QueryPoints = filtered
	s.mu.Unlock()

	s.routeIfReady(ctx)
}

// SetProfile changes the routing profile and re-routes if ready.
func (s *Store) SetProfile(ctx context.Context, profile string) {
	s.mu.Lock()
	s.state.Profile = profile
	s.mu.Unlock()

	s.routeIfReady(ctx)
}

// SetCustomModel enables or disables the custom cost model.
func (s *Store) SetCustomModel(ctx context.Context, enabled bool, text string) {
	s.mu.Lock()
	s.state.CustomModelEnabled = enabled
	s.state.CustomModelText = text
	s.mu.Unlock()

	s.routeIfReady(ctx)
}

// IsReadyToRoute reports whether the state describes a routable query:
// at least two initialized points, a profile, and (when enabled) a
// custom model that parses as JSON.
func IsReadyToRoute(state State) bool {
	if len(state.QueryPoints) < 2 {
		return false
	}
	for _, p := range state.QueryPoints {
		if !p.IsInitialized {
			return false
		}
	}
	if state.Profile == "" {
		return false
	}
	if state.CustomModelEnabled && !json.Valid([]byte(state.CustomModelText)) {
		return false
	}
	return true
}

// BuildRequests translates the query state into the ordered routing
// requests to dispatch.
//
// With a custom model: one request below 200 km, one request with
// alternatives forced off below 500 km, and none at all beyond that.
// Without: a fast single-path request first, then a slower
// alternatives request when exactly two points are set, alternatives
// are configured, and the profile is motorized or the route is shorter
// than 500 km.
func BuildRequests(state State) ([]router.RoutingArgs, error) {
	points := make([][]float64, 0, len(state.QueryPoints))
	for _, p := range state.QueryPoints {
		points = append(points, []float64{p.Coordinate.Lng, p.Coordinate.Lat})
	}

	maxDistance := maxConsecutiveDistance(state.QueryPoints)

	if customModel := state.CustomModel(); customModel != nil {
		if maxDistance >= customModelHardLimitMeters {
			return nil, ErrCustomModelTooFar
		}
		alternatives := state.MaxAlternativeRoutes
		if maxDistance >= customModelSoftLimitMeters {
			alternatives = 1
		}
		return []router.RoutingArgs{{
			Points:               points,
			Profile:              state.Profile,
			MaxAlternativeRoutes: alternatives,
			CustomModel:          customModel,
		}}, nil
	}

	requests := []router.RoutingArgs{{
		Points:               points,
		Profile:              state.Profile,
		MaxAlternativeRoutes: 1,
	}}

	if len(state.QueryPoints) == 2 && state.MaxAlternativeRoutes > 1 &&
		(isMotorized(state.Profile) || maxDistance < customModelHardLimitMeters) {
		requests = append(requests, router.RoutingArgs{
			Points:               points,
			Profile:              state.Profile,
			MaxAlternativeRoutes: state.MaxAlternativeRoutes,
		})
	}

	return requests, nil
}

// Route dispatches the routing requests for the current state. Each
// request gets a strictly increasing id; responses are accepted only
// if no response with a higher id was accepted before, so the latest
// request always wins regardless of arrival order.
func (s *Store) Route(ctx context.Context) error {
	s.mu.Lock()
	state := s.snapshot()
	s.mu.Unlock()

	requests, err := BuildRequests(state)
	if err != nil {
		s.events.Publish(bus.ErrorNotification{Message: err.Error()})
		return err
	}

	// ids are assigned under the lock together with the request
	// replacement, so concurrent Route calls cannot leave an older
	// generation as the current request
	s.mu.Lock()
	subRequests := make([]SubRequest, 0, len(requests))
	for _, args := range requests {
		subRequests = append(subRequests, SubRequest{
			ID:    s.nextRequestID.Add(1),
			Args:  args,
			State: RequestSent,
		})
	}
	s.state.CurrentRequest = CurrentRequest{SubRequests: subRequests}
	s.mu.Unlock()

	for _, sub := range subRequests {
		go s.dispatch(ctx, sub.ID, sub.Args)
	}
	return nil
}

func (s *Store) routeIfReady(ctx context.Context) {
	s.mu.Lock()
	ready := IsReadyToRoute(s.state)
	s.mu.Unlock()

	if ready {
		_ = s.Route(ctx)
	}
}

func (s *Store) dispatch(ctx context.Context, id int64, args router.RoutingArgs) {
	result, err := s.client.Route(ctx, args)
	if err != nil {
		s.onFailure(id, args, err)
		return
	}
	s.onSuccess(id, args, result)
}

func (s *Store) onSuccess(id int64, args router.RoutingArgs, result *router.RoutingResult) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.markSubRequest(id, RequestSuccess)
	if id <= s.lastAcceptedID {
		s.mu.Unlock()
		s.logger.Debug("dropping stale routing response", "id", id, "lastAccepted", s.lastAcceptedID)
		return
	}
	s.lastAcceptedID = id
	s.mu.Unlock()

	s.events.Publish(bus.RouteRequestSuccess{RequestID: id, Args: args, Result: result})
}

func (s *Store) onFailure(id int64, args router.RoutingArgs, err error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.markSubRequest(id, RequestFailed)
	if id <= s.lastAcceptedID {
		s.mu.Unlock()
		s.logger.Debug("dropping stale routing failure", "id", id, "lastAccepted", s.lastAcceptedID)
		return
	}
	s.lastAcceptedID = id
	s.mu.Unlock()

	s.logger.Warn("routing request failed", "id", id, "error", err)
	s.events.Publish(bus.RouteRequestFailed{RequestID: id, Args: args, ErrorMessage: userMessage(err)})
}

// markSubRequest must be called with the lock held.
func (s *Store) markSubRequest(id int64, state SubRequestState) {
	subs := make([]SubRequest, len(s.state.CurrentRequest.SubRequests))
	copy(subs, s.state.CurrentRequest.SubRequests)
	for i := range subs {
		if subs[i].ID == id {
			subs[i].State = state
		}
	}
	s.state.CurrentRequest = CurrentRequest{SubRequests: subs}
}

func (s *Store) newPoint() QueryPoint {
	p := QueryPoint{ID: s.state.NextQueryPointID}
	s.state.NextQueryPointID++
	return p
}

// snapshot must be called with the lock held.
func (s *Store) snapshot() State {
	state := s.state
	state.QueryPoints = s.snapshotPoints()
	subs := make([]SubRequest, len(s.state.CurrentRequest.SubRequests))
	copy(subs, s.state.CurrentRequest.SubRequests)
	state.CurrentRequest = CurrentRequest{SubRequests: subs}
	return state
}

// snapshotPoints must be called with the lock held.
func (s *Store) snapshotPoints() []QueryPoint {
	points := make([]QueryPoint, len(s.state.QueryPoints))
	copy(points, s.state.QueryPoints)
	return points
}

func assignTypes(points []QueryPoint) {
	for i := range points {
		switch {
		case i == 0:
			points[i].Type = PointFrom
			points[i].Color = colorFrom
		case i == len(points)-1:
			points[i].Type = PointTo
			points[i].Color = colorTo
		default:
			points[i].Type = PointVia
			points[i].Color = colorVia
		}
	}
}

func maxConsecutiveDistance(points []QueryPoint) float64 {
	var max float64
	for i := 0; i+1 < len(points); i++ {
		d := geo.Distance(points[i].Coordinate, points[i+1].Coordinate)
		if d > max {
			max = d
		}
	}
	return max
}

var motorizedProfiles = map[string]bool{
	"car":         true,
	"small_truck": true,
	"truck":       true,
	"scooter":     true,
	"motorcycle":  true,
}

func isMotorized(profile string) bool {
	return motorizedProfiles[profile]
}

func userMessage(err error) string {
	var apiErr *router.ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, router.ErrConnectivity) {
		return router.ErrConnectivity.Error()
	}
	return err.Error()
}
