// Package router implements the HTTP client for the GraphHopper-style
// routing service: route calculation with alternatives, service info,
// polyline decoding and the error taxonomy the UI layers rely on.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"turnnav/internal/lib/geo"
	"turnnav/internal/lib/polyline"
	"turnnav/internal/lib/route"
)

// DefaultDetails are the path detail arrays requested with every route.
var DefaultDetails = []string{"road_class", "road_environment", "surface", "max_speed", "average_speed"}

// ErrConnectivity marks a transport-level failure: the request never
// produced a routing service response.
var ErrConnectivity = errors.New("could not connect to the routing service")

// ApiError is a routing service rejection with a user-presentable message.
type ApiError struct {
	StatusCode int
	Message    string
}

func (e *ApiError) Error() string {
	return e.Message
}

// HTTPDoer executes an HTTP request. Satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the routing service.
type Client struct {
	apiKey     string
	baseURL    string
	locale     string
	httpClient HTTPDoer
}

// NewClient creates a routing client for the given API base URL.
func NewClient(baseURL, apiKey, locale string) *Client {
	return NewClientWithHTTPDoer(baseURL, apiKey, locale, &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewClientWithHTTPDoer creates a routing client with a custom HTTP
// implementation, used by tests.
func NewClientWithHTTPDoer(baseURL, apiKey, locale string, httpClient HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		locale:     locale,
		httpClient: httpClient,
	}
}

// NewRouteRequest translates application-level routing args into the
// wire request. Alternatives are only requested for simple two-point
// queries; a custom model disables contraction hierarchies server-side.
func NewRouteRequest(args RoutingArgs, locale string) RouteRequest {
	request := RouteRequest{
		Points:          args.Points,
		Profile:         args.Profile,
		Elevation:       true,
		Debug:           false,
		Instructions:    true,
		Locale:          locale,
		Optimize:        "false",
		PointsEncoded:   true,
		SnapPreventions: []string{"ferry"},
		Details:         DefaultDetails,
	}

	if args.Heading != nil {
		request.Headings = []float64{*args.Heading}
	}
	if args.CustomModel != nil {
		request.CustomModel = args.CustomModel
		request.CHDisable = true
	}
	if len(args.Points) <= 2 && args.MaxAlternativeRoutes > 1 {
		request.MaxAlternativePaths = args.MaxAlternativeRoutes
		request.Algorithm = "alternative_route"
	}
	return request
}

// Route requests a route for the given args and decodes the result.
func (c *Client) Route(ctx context.Context, args RoutingArgs) (*RoutingResult, error) {
	request := NewRouteRequest(args, c.locale)

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/route?key="+c.apiKey, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create route request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var raw rawResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode route response: %w", err)
	}
	return decodeResult(raw, request.Elevation)
}

// Info fetches the routing service metadata: available profiles,
// coverage bounding box and data import details.
func (c *Client) Info(ctx context.Context) (*ApiInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/info?key="+c.apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ApiError{StatusCode: resp.StatusCode, Message: "could not connect to the service, try to reload"}
	}

	var info ApiInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode info response: %w", err)
	}
	return &info, nil
}

// checkResponse maps routing service failures onto the error taxonomy:
// 500 is almost always the alternative-route timeout, 400 carries a
// structured message worth showing verbatim.
func checkResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusInternalServerError:
		return &ApiError{StatusCode: resp.StatusCode, Message: "route calculation timed out"}
	case resp.StatusCode == http.StatusBadRequest:
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return &ApiError{StatusCode: resp.StatusCode, Message: "route request failed"}
		}
		return &ApiError{StatusCode: resp.StatusCode, Message: mergeHints(errResp)}
	default:
		return &ApiError{StatusCode: resp.StatusCode, Message: "route request failed"}
	}
}

// mergeHints appends hint messages that are not already part of the main
// message, joined with " and ".
func mergeHints(errResp errorResponse) string {
	message := errResp.Message
	var extra []string
	for _, hint := range errResp.Hints {
		if hint.Message == "" || strings.Contains(message, hint.Message) {
			continue
		}
		extra = append(extra, hint.Message)
	}
	if len(extra) == 0 {
		return message
	}
	joined := strings.Join(extra, " and ")
	if message == "" {
		return joined
	}
	return message + " and " + joined
}

// decodeResult turns raw paths into usable ones: geometry decoded,
// instruction point runs sliced from the path geometry, bounding box
// computed when the service omitted it.
func decodeResult(raw rawResult, is3D bool) (*RoutingResult, error) {
	result := &RoutingResult{Info: raw.Info}
	for i, rp := range raw.Paths {
		points, err := decodeGeometry(rp.Points, rp.PointsEncoded, is3D)
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry of path %d: %w", i, err)
		}
		waypoints, err := decodeGeometry(rp.SnappedWaypoints, rp.PointsEncoded, is3D)
		if err != nil {
			return nil, fmt.Errorf("failed to decode waypoints of path %d: %w", i, err)
		}

		p := route.Path{
			Distance:         rp.Distance,
			Time:             rp.Time,
			Ascend:           rp.Ascend,
			Descend:          rp.Descend,
			Points:           points,
			SnappedWaypoints: waypoints,
			Instructions:     rp.Instructions,
			Details:          rp.Details,
			BBox:             pathBBox(rp.BBox, points),
		}
		for j, instruction := range p.Instructions {
			from, to := instruction.Interval[0], instruction.Interval[1]
			if from < 0 || to+1 > len(points) || from > to {
				return nil, fmt.Errorf("instruction %d of path %d has interval [%d,%d] outside %d points",
					j, i, from, to, len(points))
			}
			p.Instructions[j].Points = points[from : to+1]
		}
		result.Paths = append(result.Paths, p)
	}
	return result, nil
}

// decodeGeometry accepts either an encoded polyline string or a GeoJSON
// LineString, depending on points_encoded.
func decodeGeometry(raw json.RawMessage, encoded, is3D bool) ([]geo.Coordinate, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var coords [][]float64
	if encoded {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("encoded geometry is not a string: %w", err)
		}
		var err error
		if is3D {
			coords, err = polyline.Decode3D(s)
		} else {
			coords, err = polyline.Decode(s)
		}
		if err != nil {
			return nil, err
		}
	} else {
		var g geojson.Geometry
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("failed to parse GeoJSON geometry: %w", err)
		}
		line, ok := g.Geometry().(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("unexpected GeoJSON geometry type %q", g.Type)
		}
		coords = make([][]float64, len(line))
		for i, p := range line {
			coords[i] = []float64{p.Lon(), p.Lat()}
		}
	}

	points := make([]geo.Coordinate, len(coords))
	for i, c := range coords {
		points[i] = geo.Coordinate{Lat: c[1], Lng: c[0]}
	}
	return points, nil
}

// pathBBox prefers the service-provided bounding box and falls back to
// computing one from the decoded geometry.
func pathBBox(bbox []float64, points []geo.Coordinate) [4]float64 {
	if len(bbox) == 4 {
		return [4]float64{bbox[0], bbox[1], bbox[2], bbox[3]}
	}
	if len(points) == 0 {
		return [4]float64{}
	}
	line := make(orb.LineString, len(points))
	for i, p := range points {
		line[i] = orb.Point{p.Lng, p.Lat}
	}
	bound := line.Bound()
	return [4]float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()}
}
