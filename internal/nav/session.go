// Package nav drives a turn-by-turn navigation session: it consumes
// location updates, matches them against the active path, keeps the
// rider's instruction and road details current, announces upcoming
// maneuvers and triggers reroutes when the rider leaves the route.
package nav

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"turnnav/internal/bus"
	"turnnav/internal/clients/router"
	"turnnav/internal/lib/geo"
	"turnnav/internal/lib/route"
	"turnnav/internal/lib/voice"
)

// Leaving the route by more than this triggers a reroute.
const offRouteThresholdMeters = 50

var detailNames = []string{"max_speed", "average_speed", "surface", "road_class"}

// RouteClient is the routing call used for reroutes. Satisfied by
// *router.Client.
type RouteClient interface {
	Route(ctx context.Context, args router.RoutingArgs) (*router.RoutingResult, error)
}

// ScreenControl keeps the device usable during navigation (wake-lock,
// fullscreen). Acquisition is best effort; failures are logged, never
// fatal.
type ScreenControl interface {
	Acquire() error
	Release()
}

// NoopScreen is used when the host has no screen to control.
type NoopScreen struct{}

func (NoopScreen) Acquire() error { return nil }
func (NoopScreen) Release()       {}

// LocationSource delivers real device positions. Start returns a stop
// function that cancels the subscription.
type LocationSource interface {
	Start(ctx context.Context, onUpdate func(bus.LocationUpdate)) (stop func(), err error)
}

// Settings are the session toggles.
type Settings struct {
	FakeGPS      bool
	AcceptedRisk bool
	SoundEnabled bool
}

// InstructionView is the rider-facing maneuver state.
type InstructionView struct {
	Index             int
	DistanceToNext    float64
	RemainingTime     int64
	RemainingDistance float64
	Text              string
}

// PathDetailsView carries the road attributes at the rider's position.
// Values come straight from the path details and may be numbers or
// strings; nil means unknown.
type PathDetailsView struct {
	MaxSpeed          any
	EstimatedAvgSpeed any
	Surface           any
	RoadClass         any
}

// State is the whole session state, replaced wholesale on every
// update.
type State struct {
	Enabled       bool
	Coordinate    geo.Coordinate
	Speed         float64
	Heading       float64
	ActiveProfile string
	Settings      Settings
	Instruction   InstructionView
	PathDetails   PathDetailsView
}

// Session is the navigation state machine. It subscribes to location
// updates and path selection on the bus; Start and Stop switch it
// between stopped and active.
type Session struct {
	client RouteClient
	events *bus.Bus
	logger *slog.Logger
	screen ScreenControl
	source LocationSource
	sim    *Simulator

	mu          sync.Mutex
	state       State
	activePath  *route.Path
	gate        *voice.Gate
	stopFeed    func()
	cancel      context.CancelFunc
	feedCtx     context.Context
	rerouteID   atomic.Int64
	lastReroute int64

	// publishMu spans the reroute acceptance check and the path
	// publish, so accepted reroutes reach subscribers in acceptance
	// order. Separate from mu: the session's own subscription takes mu.
	publishMu sync.Mutex
}

// NewSession wires a session to the bus. screen may be nil for hosts
// without screen control; source may be nil when only fake mode is
// used; sim may be nil when only real mode is used.
func NewSession(client RouteClient, events *bus.Bus, logger *slog.Logger, profile string, screen ScreenControl, source LocationSource, sim *Simulator) *Session {
	if screen == nil {
		screen = NoopScreen{}
	}
	s := &Session{
		client: client,
		events: events,
		logger: logger,
		screen: screen,
		source: source,
		sim:    sim,
		gate:   voice.NewGate(),
		state: State{
			ActiveProfile: profile,
			Settings:      Settings{SoundEnabled: true},
		},
	}
	events.Subscribe(func(e bus.Event) {
		switch ev := e.(type) {
		case bus.LocationUpdate:
			s.handleLocation(ev)
		case bus.SetSelectedPath:
			s.SetActivePath(ev.Path)
		}
	})
	return s
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActivePath returns the path currently navigated, or nil.
func (s *Session) ActivePath() *route.Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePath
}

// SetActivePath replaces the navigated path. The announcement gate is
// reset, so the first zone entry on the new path always fires even when
// its upcoming instruction index matches the previous path's.
func (s *Session) SetActivePath(p *route.Path) {
	s.mu.Lock()
	s.activePath = p
	s.gate = voice.NewGate()
	s.mu.Unlock()
}

// Start switches the session to active. In fake mode the simulator
// replays a generated route; in real mode the location source is
// subscribed and the screen kept awake.
func (s *Session) Start(ctx context.Context, fake bool) error {
	s.mu.Lock()
	if s.state.Enabled {
		s.mu.Unlock()
		return nil
	}
	s.state.Enabled = true
	s.state.Settings.FakeGPS = fake
	s.gate = voice.NewGate()
	feedCtx, cancel := context.WithCancel(ctx)
	s.feedCtx = feedCtx
	s.cancel = cancel
	s.mu.Unlock()

	var stop func()
	var err error
	if fake {
		if s.sim != nil {
			stop, err = s.sim.Start(feedCtx)
		}
	} else {
		if acquireErr := s.screen.Acquire(); acquireErr != nil {
			s.logger.Warn("could not acquire screen control", "error", acquireErr)
		}
		if s.source != nil {
			stop, err = s.source.Start(feedCtx, func(u bus.LocationUpdate) {
				s.events.Publish(u)
			})
		}
	}
	if err != nil {
		// recoverable: the session stays active and can still be stopped
		s.logger.Warn("location feed failed to start", "fake", fake, "error", err)
		s.events.Publish(bus.ErrorNotification{Message: err.Error()})
	}

	s.mu.Lock()
	s.stopFeed = stop
	s.mu.Unlock()

	s.events.Publish(bus.TurnNavigationStart{Fake: fake})
	return err
}

// Stop switches the session back to stopped: the location feed is
// cancelled, speed and heading reset, and any reroute response still
// in flight will be discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.state.Enabled {
		s.mu.Unlock()
		return
	}
	s.state.Enabled = false
	s.state.Speed = 0
	s.state.Heading = 0
	fake := s.state.Settings.FakeGPS
	stop := s.stopFeed
	cancel := s.cancel
	s.stopFeed = nil
	s.cancel = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if cancel != nil {
		cancel()
	}
	if !fake {
		s.screen.Release()
	}
	s.events.Publish(bus.TurnNavigationStop{})
}

func (s *Session) handleLocation(u bus.LocationUpdate) {
	s.mu.Lock()
	if !s.state.Enabled {
		s.mu.Unlock()
		return
	}
	s.state.Coordinate = u.Coordinate
	s.state.Speed = u.Speed
	s.state.Heading = u.Heading

	path := s.activePath
	if path == nil || len(path.Instructions) == 0 {
		s.mu.Unlock()
		return
	}

	progress := route.CurrentInstruction(path.Instructions, u.Coordinate)
	if progress.DistanceToRoute > offRouteThresholdMeters {
		// off route: instruction and details keep their last values
		// while position, speed and heading stay live
		if len(path.SnappedWaypoints) < 2 {
			s.mu.Unlock()
			return
		}
		target := path.SnappedWaypoints[1]
		profile := s.state.ActiveProfile
		heading := u.Heading
		id := s.rerouteID.Add(1)
		ctx := s.feedCtx
		s.mu.Unlock()

		s.events.Publish(bus.TurnNavigationRerouting{})
		go s.reroute(ctx, id, u.Coordinate, heading, target, profile)
		return
	}

	if progress.InstructionIndex < 0 {
		s.mu.Unlock()
		return
	}

	text := path.Instructions[progress.InstructionIndex].Text
	s.state.Instruction = InstructionView{
		Index:             progress.InstructionIndex,
		DistanceToNext:    progress.DistanceToNext,
		RemainingTime:     progress.RemainingTime,
		RemainingDistance: progress.RemainingDistance,
		Text:              text,
	}
	values := route.CurrentDetails(*path, u.Coordinate, detailNames)
	s.state.PathDetails = PathDetailsView{
		MaxSpeed:          values[0],
		EstimatedAvgSpeed: values[1],
		Surface:           values[2],
		RoadClass:         values[3],
	}
	sound := s.state.Settings.SoundEnabled
	gate := s.gate
	avgSpeed := path.AverageSpeed()
	s.mu.Unlock()

	if announcement, ok := gate.Update(progress.DistanceToNext, progress.InstructionIndex, text, avgSpeed); ok && sound {
		s.events.Publish(bus.Announcement{Text: announcement})
	}
}

// reroute asks for a fresh single-alternative route from the current
// position to the next waypoint, biased by the current heading. The
// latest reroute wins: responses of older requests, or responses
// arriving after Stop, are dropped.
func (s *Session) reroute(ctx context.Context, id int64, from geo.Coordinate, heading float64, to geo.Coordinate, profile string) {
	args := router.RoutingArgs{
		Points:               [][]float64{{from.Lng, from.Lat}, {to.Lng, to.Lat}},
		Profile:              profile,
		MaxAlternativeRoutes: 1,
		Heading:              &heading,
	}

	result, err := s.client.Route(ctx, args)
	if err != nil {
		// the stale path persists; the next off-route update retries
		s.logger.Warn("reroute failed", "error", err)
		return
	}
	if len(result.Paths) == 0 {
		s.logger.Warn("reroute returned no paths")
		return
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if !s.state.Enabled || id <= s.lastReroute {
		enabled := s.state.Enabled
		s.mu.Unlock()
		s.logger.Debug("dropping reroute response", "id", id, "enabled", enabled)
		return
	}
	s.lastReroute = id
	s.mu.Unlock()

	path := result.Paths[0]
	s.events.Publish(bus.SetSelectedPath{Path: &path})
}
