package query

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnnav/internal/bus"
	"turnnav/internal/clients/router"
	"turnnav/internal/lib/geo"
)

var (
	berlin  = geo.Coordinate{Lat: 52.52, Lng: 13.405}
	leipzig = geo.Coordinate{Lat: 51.34, Lng: 12.375}  // ~150 km from Berlin
	hamburg = geo.Coordinate{Lat: 53.551, Lng: 9.994}  // ~255 km from Berlin
	paris   = geo.Coordinate{Lat: 48.857, Lng: 2.352}  // ~880 km from Berlin
)

func initializedState(profile string, maxAlternatives int, coords ...geo.Coordinate) State {
	state := State{Profile: profile, MaxAlternativeRoutes: maxAlternatives}
	for i, c := range coords {
		state.QueryPoints = append(state.QueryPoints, QueryPoint{
			ID:            int64(i + 1),
			Coordinate:    c,
			IsInitialized: true,
		})
	}
	assignTypes(state.QueryPoints)
	return state
}

func TestIsReadyToRoute(t *testing.T) {
	state := initializedState("car", 3, berlin, leipzig)
	assert.True(t, IsReadyToRoute(state))

	uninitialized := initializedState("car", 3, berlin, leipzig)
	uninitialized.QueryPoints[1].IsInitialized = false
	assert.False(t, IsReadyToRoute(uninitialized))

	noProfile := initializedState("", 3, berlin, leipzig)
	assert.False(t, IsReadyToRoute(noProfile))

	onePoint := initializedState("car", 3, berlin)
	assert.False(t, IsReadyToRoute(onePoint))

	badModel := initializedState("car", 3, berlin, leipzig)
	badModel.CustomModelEnabled = true
	badModel.CustomModelText = "{not json"
	assert.False(t, IsReadyToRoute(badModel))

	goodModel := initializedState("car", 3, berlin, leipzig)
	goodModel.CustomModelEnabled = true
	goodModel.CustomModelText = `{"priority": []}`
	assert.True(t, IsReadyToRoute(goodModel))
}

func TestBuildRequestsCarWithAlternatives(t *testing.T) {
	state := initializedState("car", 3, berlin, leipzig)

	requests, err := BuildRequests(state)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, 1, requests[0].MaxAlternativeRoutes)
	assert.Equal(t, 3, requests[1].MaxAlternativeRoutes)

	// the second request must go out as an alternative_route query
	wire := router.NewRouteRequest(requests[1], "en")
	assert.Equal(t, "alternative_route", wire.Algorithm)
	assert.Equal(t, 3, wire.MaxAlternativePaths)
}

func TestBuildRequestsViaRouteSkipsAlternatives(t *testing.T) {
	state := initializedState("car", 3, berlin, leipzig, hamburg)

	requests, err := BuildRequests(state)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, 1, requests[0].MaxAlternativeRoutes)
}

func TestBuildRequestsNonMotorizedLongRoute(t *testing.T) {
	state := initializedState("foot", 3, berlin, paris)

	requests, err := BuildRequests(state)
	require.NoError(t, err)
	require.Len(t, requests, 1, "no alternatives request for a non-motorized route beyond 500 km")

	short := initializedState("foot", 3, berlin, leipzig)
	requests, err = BuildRequests(short)
	require.NoError(t, err)
	require.Len(t, requests, 2)
}

func TestBuildRequestsCustomModelDistanceGating(t *testing.T) {
	near := initializedState("car", 3, berlin, leipzig)
	near.CustomModelEnabled = true
	near.CustomModelText = `{"priority": []}`

	requests, err := BuildRequests(near)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, 3, requests[0].MaxAlternativeRoutes)
	assert.NotNil(t, requests[0].CustomModel)

	mid := initializedState("car", 3, berlin, hamburg)
	mid.CustomModelEnabled = true
	mid.CustomModelText = `{"priority": []}`

	requests, err = BuildRequests(mid)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, 1, requests[0].MaxAlternativeRoutes, "alternatives forced off between 200 and 500 km")

	far := initializedState("car", 3, berlin, paris)
	far.CustomModelEnabled = true
	far.CustomModelText = `{"priority": []}`

	requests, err = BuildRequests(far)
	require.ErrorIs(t, err, ErrCustomModelTooFar)
	assert.Empty(t, requests)
}

func TestPointTypesRecomputed(t *testing.T) {
	events := bus.New()
	store := NewStore(nil, events, slog.Default(), "car", 3)

	third := store.AddPoint()
	points := store.State().QueryPoints
	require.Len(t, points, 3)
	assert.Equal(t, PointFrom, points[0].Type)
	assert.Equal(t, "#417900", points[0].Color)
	assert.Equal(t, PointVia, points[1].Type)
	assert.Equal(t, "#76D0F7", points[1].Color)
	assert.Equal(t, PointTo, points[2].Type)
	assert.Equal(t, "#F97777", points[2].Color)
	assert.Equal(t, third.ID, points[2].ID)

	store.RemovePoint(context.Background(), points[1].ID)
	points = store.State().QueryPoints
	require.Len(t, points, 2)
	assert.Equal(t, PointFrom, points[0].Type)
	assert.Equal(t, PointTo, points[1].Type)
}

type eventRecorder struct {
	mu        sync.Mutex
	successes []bus.RouteRequestSuccess
	failures  []bus.RouteRequestFailed
}

func (r *eventRecorder) subscribe(events *bus.Bus) {
	events.Subscribe(func(e bus.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		switch ev := e.(type) {
		case bus.RouteRequestSuccess:
			r.successes = append(r.successes, ev)
		case bus.RouteRequestFailed:
			r.failures = append(r.failures, ev)
		}
	})
}

func (r *eventRecorder) successCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes)
}

// blockingClient holds requests for the given profile until released.
type blockingClient struct {
	blockProfile string
	release      chan struct{}
	started      chan struct{}
}

func (c *blockingClient) Route(ctx context.Context, args router.RoutingArgs) (*router.RoutingResult, error) {
	if args.Profile == c.blockProfile {
		c.started <- struct{}{}
		<-c.release
	}
	return &router.RoutingResult{Info: router.Info{Took: 1}}, nil
}

func TestLastResponseWins(t *testing.T) {
	events := bus.New()
	recorder := &eventRecorder{}
	recorder.subscribe(events)

	client := &blockingClient{
		blockProfile: "car",
		release:      make(chan struct{}),
		started:      make(chan struct{}, 1),
	}
	store := NewStore(client, events, slog.Default(), "car", 1)

	ctx := context.Background()
	points := store.State().QueryPoints
	store.SetPoint(ctx, points[0].ID, berlin, "Berlin")
	store.SetPoint(ctx, points[1].ID, leipzig, "Leipzig")

	// the first generation is now in flight and blocked
	<-client.started

	// a newer generation completes immediately
	store.SetProfile(ctx, "bike")
	require.Eventually(t, func() bool { return recorder.successCount() == 1 }, time.Second, time.Millisecond)

	// release the stale response; it must be dropped
	close(client.release)
	time.Sleep(50 * time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.successes, 1, "stale response must not produce a second event")
	assert.Equal(t, "bike", recorder.successes[0].Args.Profile)
}

// instantClient completes every request immediately.
type instantClient struct{}

func (instantClient) Route(ctx context.Context, args router.RoutingArgs) (*router.RoutingResult, error) {
	return &router.RoutingResult{}, nil
}

func TestAcceptedResponsesPublishInOrder(t *testing.T) {
	events := bus.New()
	var mu sync.Mutex
	var order []int64
	events.Subscribe(func(e bus.Event) {
		if ev, ok := e.(bus.RouteRequestSuccess); ok {
			mu.Lock()
			order = append(order, ev.RequestID)
			mu.Unlock()
		}
	})

	store := NewStore(nil, events, slog.Default(), "car", 1)

	var wg sync.WaitGroup
	for id := int64(1); id <= 50; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			store.onSuccess(id, router.RoutingArgs{}, &router.RoutingResult{})
		}(id)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, order)
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i], order[i-1], "subscribers must see accepted responses in acceptance order")
	}
	assert.Equal(t, int64(50), order[len(order)-1], "the newest response is delivered last")
}

func TestConcurrentRouteKeepsNewestGeneration(t *testing.T) {
	events := bus.New()
	store := NewStore(instantClient{}, events, slog.Default(), "car", 1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Route(context.Background())
		}()
	}
	wg.Wait()

	subs := store.State().CurrentRequest.SubRequests
	require.Len(t, subs, 1)
	assert.Equal(t, store.nextRequestID.Load(), subs[0].ID, "the newest generation owns the current request")
}

func TestLateArrivalsDroppedByGenerationID(t *testing.T) {
	events := bus.New()
	recorder := &eventRecorder{}
	recorder.subscribe(events)

	store := NewStore(nil, events, slog.Default(), "car", 1)
	args1 := router.RoutingArgs{Profile: "car"}
	args2 := router.RoutingArgs{Profile: "car"}

	store.onSuccess(2, args2, &router.RoutingResult{})
	store.onSuccess(1, args1, &router.RoutingResult{})

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.successes, 1)
	assert.Equal(t, int64(2), recorder.successes[0].RequestID)
}

func TestStaleFailureDropped(t *testing.T) {
	events := bus.New()
	recorder := &eventRecorder{}
	recorder.subscribe(events)

	store := NewStore(nil, events, slog.Default(), "car", 1)

	store.onSuccess(2, router.RoutingArgs{}, &router.RoutingResult{})
	store.onFailure(1, router.RoutingArgs{}, &router.ApiError{StatusCode: 500, Message: "route calculation timed out"})

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Len(t, recorder.successes, 1)
	assert.Empty(t, recorder.failures, "stale failure must be discarded")
}

func TestFailureMessageTaxonomy(t *testing.T) {
	events := bus.New()
	recorder := &eventRecorder{}
	recorder.subscribe(events)

	store := NewStore(nil, events, slog.Default(), "car", 1)
	store.onFailure(1, router.RoutingArgs{}, &router.ApiError{StatusCode: 500, Message: "route calculation timed out"})
	store.onFailure(2, router.RoutingArgs{}, router.ErrConnectivity)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.failures, 2)
	assert.Equal(t, "route calculation timed out", recorder.failures[0].ErrorMessage)
	assert.Equal(t, "could not connect to the routing service", recorder.failures[1].ErrorMessage)
}

func TestRouteOverDistanceCustomModelRaisesError(t *testing.T) {
	events := bus.New()
	var notifications []bus.ErrorNotification
	var mu sync.Mutex
	events.Subscribe(func(e bus.Event) {
		if n, ok := e.(bus.ErrorNotification); ok {
			mu.Lock()
			notifications = append(notifications, n)
			mu.Unlock()
		}
	})

	store := NewStore(nil, events, slog.Default(), "car", 3)
	ctx := context.Background()
	points := store.State().QueryPoints
	store.SetCustomModel(ctx, true, `{"priority": []}`)
	store.SetPoint(ctx, points[0].ID, berlin, "Berlin")
	store.SetPoint(ctx, points[1].ID, paris, "Paris")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notifications, 1)
	assert.Equal(t, ErrCustomModelTooFar.Error(), notifications[0].Message)
}
