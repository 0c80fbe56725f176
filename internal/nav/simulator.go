package nav

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"turnnav/internal/bus"
	"turnnav/internal/clients/router"
	"turnnav/internal/lib/geo"
)

// Simulator replays a real route as a fake GPS feed so the navigation
// logic can be exercised without a device. Points are jittered so no
// two runs look alike.
type Simulator struct {
	client   RouteClient
	events   *bus.Bus
	args     router.RoutingArgs
	interval time.Duration
}

// NewSimulator creates a simulator that fetches one route for args and
// replays its points on the given interval, wrapping at the end.
func NewSimulator(client RouteClient, events *bus.Bus, args router.RoutingArgs, interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	args.MaxAlternativeRoutes = 1
	return &Simulator{
		client:   client,
		events:   events,
		args:     args,
		interval: interval,
	}
}

// Start fetches the route and begins publishing location updates. The
// returned stop function ends the feed.
func (s *Simulator) Start(ctx context.Context) (func(), error) {
	result, err := s.client.Route(ctx, s.args)
	if err != nil {
		return nil, err
	}
	if len(result.Paths) == 0 || len(result.Paths[0].Points) < 2 {
		return nil, errors.New("simulated route has no usable geometry")
	}

	path := result.Paths[0]
	points := make([]geo.Coordinate, len(path.Points))
	for i, p := range path.Points {
		points[i] = geo.Coordinate{
			Lat: p.Lat + jitter(),
			Lng: p.Lng + jitter(),
		}
	}

	headings := make([]float64, len(points))
	speeds := make([]float64, len(points))
	for i := range points {
		next := (i + 1) % len(points)
		orientation := geo.Orientation(points[i], points[next])
		headings[i] = geo.ToNorthBased(orientation) * 180 / math.Pi
		speeds[i] = geo.Distance(points[i], points[next]) / s.interval.Seconds()
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		idx := 0
		for {
			s.events.Publish(bus.LocationUpdate{
				Coordinate: points[idx],
				Speed:      speeds[idx],
				Heading:    headings[idx],
			})
			idx = (idx + 1) % len(points)

			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	var stopOnce sync.Once
	return func() { stopOnce.Do(func() { close(done) }) }, nil
}

// jitter returns a random offset between 0.0001 and 0.001 degrees in
// either direction. Deliberately unseeded: runs should not repeat.
func jitter() float64 {
	magnitude := 0.0001 + rand.Float64()*0.0009
	if rand.Intn(2) == 0 {
		return -magnitude
	}
	return magnitude
}
