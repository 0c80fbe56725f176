package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalThreshold(t *testing.T) {
	assert.Equal(t, 10.0, FinalThreshold(0))
	assert.Equal(t, 30.0, FinalThreshold(12))
	assert.Equal(t, 130.0, FinalThreshold(60))
}

func TestFinalAnnouncementFiresOncePerCrossing(t *testing.T) {
	gate := NewGate()
	avg := 30.0 // threshold 10+2*6*5 = 70m

	_, ok := gate.Update(500, 1, "turn right", avg)
	assert.False(t, ok)

	text, ok := gate.Update(65, 1, "turn right", avg)
	assert.True(t, ok, "crossing into the zone must announce")
	assert.Equal(t, "turn right", text)

	// still inside the zone: stay silent
	_, ok = gate.Update(50, 1, "turn right", avg)
	assert.False(t, ok)
	_, ok = gate.Update(50, 1, "turn right", avg)
	assert.False(t, ok, "stationary inside the zone must not repeat")
}

func TestFinalAnnouncementRefiresOnIndexChange(t *testing.T) {
	gate := NewGate()
	avg := 30.0

	_, ok := gate.Update(40, 1, "turn right", avg)
	assert.True(t, ok)

	// a new instruction close behind the previous one
	text, ok := gate.Update(45, 2, "turn left", avg)
	assert.True(t, ok, "index change re-arms the gate")
	assert.Equal(t, "turn left", text)
}

func TestEarlyAnnouncement(t *testing.T) {
	gate := NewGate()
	avg := 90.0 // motorway pace, final threshold 10+2*18*5 = 190m

	_, ok := gate.Update(1500, 1, "exit right", avg)
	assert.False(t, ok)

	text, ok := gate.Update(1100, 1, "exit right", avg)
	assert.True(t, ok)
	assert.Equal(t, "in 1 km exit right", text)

	// inside the early zone: no repeat
	_, ok = gate.Update(900, 1, "exit right", avg)
	assert.False(t, ok)

	// final crossing still fires
	text, ok = gate.Update(180, 1, "exit right", avg)
	assert.True(t, ok)
	assert.Equal(t, "exit right", text)
}

func TestEarlyAnnouncementMetersPhrase(t *testing.T) {
	gate := NewGate()
	avg := 40.0

	text, ok := gate.Update(430, 1, "turn left", avg)
	assert.True(t, ok)
	assert.Equal(t, "in 400 meters turn left", text)
}

func TestEarlyAnnouncementSkippedWhenSlow(t *testing.T) {
	gate := NewGate()

	_, ok := gate.Update(1000, 1, "turn left", 10)
	assert.False(t, ok, "no early announcement at walking pace")
}

func TestEarlyAnnouncementNeverOverlapsFinalZone(t *testing.T) {
	gate := NewGate()
	avg := 90.0 // final threshold 190m

	_, ok := gate.Update(300, 1, "turn left", avg)
	assert.True(t, ok, "300m is still early zone at this speed")

	gate = NewGate()
	_, ok = gate.Update(200, 1, "turn left", avg)
	assert.False(t, ok, "within final+50 buffer neither tier may fire early")
}
