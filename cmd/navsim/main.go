// Command navsim plans a route between two places and runs a
// turn-by-turn navigation session over it, printing instructions and
// voice announcements as the position advances. With navigation.fake
// enabled the GPS feed is simulated from the planned route itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"turnnav/internal/bus"
	"turnnav/internal/clients/geocoder"
	"turnnav/internal/clients/router"
	"turnnav/internal/config"
	"turnnav/internal/lib/geo"
	"turnnav/internal/nav"
	"turnnav/internal/query"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	from := flag.String("from", "", `start as "lat,lng" or a free-text address`)
	to := flag.String("to", "", `destination as "lat,lng" or a free-text address`)
	fake := flag.Bool("fake", false, "force the simulated GPS feed")
	flag.Parse()

	// .env is optional; real env vars still apply without it
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if *from == "" || *to == "" {
		log.Fatal("both -from and -to are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	routing := router.NewClient(cfg.API.Address, cfg.API.Key, cfg.API.Locale)
	geocoding := geocoder.NewClient(cfg.API.Address, cfg.API.Key, cfg.API.Locale, cfg.Geocoding.CacheTTL)
	geocoding.StartCacheCleanup(ctx)

	start, err := resolvePlace(ctx, geocoding, cfg.Geocoding.Provider, *from)
	if err != nil {
		log.Fatalf("could not resolve -from: %v", err)
	}
	dest, err := resolvePlace(ctx, geocoding, cfg.Geocoding.Provider, *to)
	if err != nil {
		log.Fatalf("could not resolve -to: %v", err)
	}
	logger.Info("route planned", "from", start, "to", dest, "profile", cfg.Routing.Profile)

	events := bus.New()
	events.Subscribe(func(e bus.Event) { printEvent(logger, e) })
	// navigate the first path of the latest accepted route response
	events.Subscribe(func(e bus.Event) {
		if success, ok := e.(bus.RouteRequestSuccess); ok && len(success.Result.Paths) > 0 {
			path := success.Result.Paths[0]
			events.Publish(bus.SetSelectedPath{Path: &path})
		}
	})

	session := nav.NewSession(routing, events, logger, cfg.Routing.Profile, nil, nil, nav.NewSimulator(
		routing,
		events,
		router.RoutingArgs{
			Points:  [][]float64{{start.Lng, start.Lat}, {dest.Lng, dest.Lat}},
			Profile: cfg.Routing.Profile,
		},
		cfg.Navigation.TickInterval,
	))

	store := query.NewStore(routing, events, logger, cfg.Routing.Profile, cfg.Routing.MaxAlternativeRoutes)
	points := store.State().QueryPoints
	store.SetPoint(ctx, points[0].ID, start, *from)
	store.SetPoint(ctx, points[1].ID, dest, *to)

	if err := session.Start(ctx, *fake || cfg.Navigation.Fake); err != nil {
		logger.Error("navigation did not start cleanly", "error", err)
	}

	<-ctx.Done()
	session.Stop()
	logger.Info("navigation stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Pretty {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// resolvePlace accepts either a "lat,lng" pair or a free-text address
// resolved through the geocoder (first hit wins).
func resolvePlace(ctx context.Context, client *geocoder.Client, provider, text string) (geo.Coordinate, error) {
	if c, ok := parseCoordinate(text); ok {
		return c, nil
	}

	result, err := client.Geocode(ctx, text, provider)
	if err != nil {
		return geo.Coordinate{}, err
	}
	if len(result.Hits) == 0 {
		return geo.Coordinate{}, fmt.Errorf("no geocoding results for %q", text)
	}
	hit := result.Hits[0]
	slog.Info("geocoded", "query", text, "match", geocoder.QueryText(hit))
	return hit.Point, nil
}

func parseCoordinate(text string) (geo.Coordinate, bool) {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Lat: lat, Lng: lng}, true
}

func printEvent(logger *slog.Logger, e bus.Event) {
	switch ev := e.(type) {
	case bus.RouteRequestSuccess:
		if len(ev.Result.Paths) == 0 {
			return
		}
		best := ev.Result.Paths[0]
		logger.Info("route received",
			"alternatives", len(ev.Result.Paths),
			"distance_m", best.Distance,
			"time_ms", best.Time,
			"instructions", len(best.Instructions))
	case bus.RouteRequestFailed:
		logger.Error("routing failed", "message", ev.ErrorMessage)
	case bus.ErrorNotification:
		logger.Error(ev.Message)
	case bus.Announcement:
		fmt.Printf("\U0001F50A %s\n", ev.Text)
	case bus.TurnNavigationRerouting:
		logger.Info("rerouting")
	case bus.TurnNavigationStart:
		logger.Info("navigation started", "fake", ev.Fake)
	case bus.TurnNavigationStop:
		logger.Info("navigation stopped")
	}
}
