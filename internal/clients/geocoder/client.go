// Package geocoder talks to the GraphHopper geocoding API. It resolves
// free-text queries to coordinates for route planning, caching results
// so repeated autocomplete keystrokes do not hammer the service.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"turnnav/internal/cache"
)

const defaultCacheTTL = 10 * time.Minute

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the geocoding API.
type Client struct {
	apiKey     string
	baseURL    string
	locale     string
	cacheTTL   time.Duration
	httpClient HTTPDoer
	cache      *cache.Cache
}

// NewClient creates a geocoding client for the given API base URL.
// cacheTTL controls how long query results are reused; zero or negative
// falls back to ten minutes.
func NewClient(baseURL, apiKey, locale string, cacheTTL time.Duration) *Client {
	return NewClientWithHTTPDoer(baseURL, apiKey, locale, cacheTTL, &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewClientWithHTTPDoer creates a geocoding client with a custom HTTP
// implementation, used by tests.
func NewClientWithHTTPDoer(baseURL, apiKey, locale string, cacheTTL time.Duration, httpClient HTTPDoer) *Client {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		locale:     locale,
		cacheTTL:   cacheTTL,
		httpClient: httpClient,
		cache:      cache.New(),
	}
}

// StartCacheCleanup evicts expired cache entries in the background
// until ctx is cancelled. The cleanup interval follows the cache TTL.
func (c *Client) StartCacheCleanup(ctx context.Context) {
	c.cache.StartPeriodicCleanup(ctx, c.cacheTTL)
}

// Geocode resolves a free-text query. Provider selects the upstream
// geocoder ("default", "nominatim", ...); empty means the service
// default.
func (c *Client) Geocode(ctx context.Context, query, provider string) (*Result, error) {
	key := fmt.Sprintf("geocode:%s:%s:%s", provider, c.locale, query)

	var cached Result
	if found, err := c.cache.Get(key, &cached); err == nil && found {
		return &cached, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("locale", c.locale)
	params.Set("key", c.apiKey)
	if provider != "" {
		params.Set("provider", provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding request failed with status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}

	if err := c.cache.Set(key, result, c.cacheTTL, "geocoder"); err != nil {
		return nil, fmt.Errorf("failed to cache geocoding result: %w", err)
	}
	return &result, nil
}

// Search serializes autocomplete lookups for a single input field.
// Every call gets a monotonically increasing id; a result is delivered
// only if no newer search started while it was in flight, so stale
// responses never overwrite fresher ones.
type Search struct {
	client  *Client
	nextID  atomic.Int64
	mu      sync.Mutex
	current int64
}

// NewSearch wraps a client for one input field.
func NewSearch(client *Client) *Search {
	return &Search{client: client}
}

// Run performs a geocoding lookup and calls onResult with the hits,
// unless a newer Run started in the meantime. The callback is not
// invoked for superseded results.
func (s *Search) Run(ctx context.Context, query, provider string, onResult func([]Hit)) error {
	id := s.nextID.Add(1)
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()

	result, err := s.client.Geocode(ctx, query, provider)
	if err != nil {
		return err
	}

	s.mu.Lock()
	stale := s.current != id
	s.mu.Unlock()
	if stale {
		return nil
	}

	onResult(result.Hits)
	return nil
}

// QueryText formats a hit as the text shown in the search box: name,
// street with house number, postcode and city, then country, skipping
// the name when it just repeats the street.
func QueryText(hit Hit) string {
	var b strings.Builder
	if hit.Name != hit.Street {
		b.WriteString(hit.Name + ", ")
	}
	b.WriteString(streetPart(hit))
	b.WriteString(cityPart(hit))
	b.WriteString(hit.Country)
	return strings.TrimSuffix(b.String(), ", ")
}

func streetPart(hit Hit) string {
	if hit.HouseNumber != "" && hit.Street != "" {
		return hit.Street + " " + hit.HouseNumber + ", "
	}
	if hit.Street != "" {
		return hit.Street + ", "
	}
	return ""
}

func cityPart(hit Hit) string {
	if hit.City != "" && hit.PostCode != "" {
		return hit.PostCode + " " + hit.City + ", "
	}
	if hit.City != "" {
		return hit.City + ", "
	}
	if hit.PostCode != "" {
		return hit.PostCode + ", "
	}
	return ""
}
