package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name string `json:"name"`
	Hits int    `json:"hits"`
}

func TestSetAndGet(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("geocode:berlin", testPayload{Name: "Berlin", Hits: 5}, time.Minute, "geocoder"))

	var got testPayload
	found, err := c.Get("geocode:berlin", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Berlin", got.Name)
	assert.Equal(t, 5, got.Hits)
}

func TestGetMissingKey(t *testing.T) {
	c := New()

	var got testPayload
	found, err := c.Get("nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiredEntryNotReturned(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("short", testPayload{Name: "gone"}, -time.Second, "test"))

	assert.True(t, c.IsStale("short"))

	var got testPayload
	found, err := c.Get("short", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCleanupStale(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("fresh", testPayload{}, time.Minute, "test"))
	require.NoError(t, c.Set("stale", testPayload{}, -time.Second, "test"))

	removed := c.CleanupStale()
	assert.Equal(t, 1, removed)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
}

func TestStartPeriodicCleanup(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("stale", testPayload{}, -time.Second, "test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartPeriodicCleanup(ctx, time.Millisecond)

	assert.Eventually(t, func() bool {
		return c.Stats().TotalEntries == 0
	}, time.Second, time.Millisecond)
}

func TestStats(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("fresh", testPayload{}, time.Minute, "test"))
	require.NoError(t, c.Set("stale", testPayload{}, -time.Second, "test"))

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
	assert.Equal(t, 1, stats.StaleEntries)
	assert.False(t, stats.OldestEntry.IsZero())
}

func TestClear(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("a", testPayload{}, time.Minute, "test"))
	c.Clear()
	assert.Zero(t, c.Stats().TotalEntries)
}
