package beat

import (
	"math"
	"sync"
	"time"
)

const (
	DefaultBPM = 120.0

	minBPM = 20.0
	maxBPM = 300.0

	// tapTimeout resets tap tempo when the previous tap is this old.
	tapTimeout = 2 * time.Second
	maxTaps    = 5

	// MIDI timing clock runs at 24 pulses per quarter note.
	clockPPQN    = 24
	clockWindow  = 2 * clockPPQN
	clockTimeout = 500 * time.Millisecond
)

// Metadata converts beat-relative durations to wall time.
type Metadata struct {
	LengthMs float64 `json:"lengthMs"`
	OffsetMs float64 `json:"offsetMs"`
}

func FromBPM(bpm float64) Metadata {
	return Metadata{LengthMs: 60000 / clampBPM(bpm)}
}

func (m Metadata) BPM() float64 {
	if m.LengthMs <= 0 {
		return 0
	}
	return 60000 / m.LengthMs
}

// Phase is the position within the current beat in [0,1).
func (m Metadata) Phase(now time.Time) float64 {
	if m.LengthMs <= 0 {
		return 0
	}
	ms := float64(now.UnixMilli()) - m.OffsetMs
	_, frac := math.Modf(ms / m.LengthMs)
	if frac < 0 {
		frac++
	}
	return frac
}

func clampBPM(bpm float64) float64 {
	if math.IsNaN(bpm) || bpm < minBPM {
		return minBPM
	}
	if bpm > maxBPM {
		return maxBPM
	}
	return bpm
}

// Clock is the live beat source. Tempo can be set directly, tapped, or
// followed from a MIDI timing clock.
type Clock struct {
	mu    sync.RWMutex
	meta  Metadata
	taps  []time.Time
	ticks []time.Time
}

func NewClock(bpm float64) *Clock {
	if bpm == 0 {
		bpm = DefaultBPM
	}
	return &Clock{meta: FromBPM(bpm)}
}

func (c *Clock) Metadata() Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta
}

func (c *Clock) SetBPM(bpm float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta.LengthMs = FromBPM(bpm).LengthMs
}

// Tap registers a tap-tempo press. The beat phase is aligned to the tap and
// the tempo follows the average interval of recent taps.
func (c *Clock) Tap(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.taps); n > 0 && now.Sub(c.taps[n-1]) > tapTimeout {
		c.taps = c.taps[:0]
	}
	c.taps = append(c.taps, now)
	if len(c.taps) > maxTaps {
		c.taps = c.taps[len(c.taps)-maxTaps:]
	}

	c.meta.OffsetMs = float64(now.UnixMilli())
	if len(c.taps) < 2 {
		return
	}
	span := c.taps[len(c.taps)-1].Sub(c.taps[0])
	avg := float64(span.Milliseconds()) / float64(len(c.taps)-1)
	c.meta.LengthMs = FromBPM(60000 / avg).LengthMs
}

// ClockTick feeds one MIDI timing clock pulse.
func (c *Clock) ClockTick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.ticks); n > 0 && now.Sub(c.ticks[n-1]) > clockTimeout {
		c.ticks = c.ticks[:0]
	}
	c.ticks = append(c.ticks, now)
	if len(c.ticks) > clockWindow+1 {
		c.ticks = c.ticks[len(c.ticks)-clockWindow-1:]
	}
	if len(c.ticks) < clockPPQN+1 {
		return
	}
	span := c.ticks[len(c.ticks)-1].Sub(c.ticks[0])
	perTick := float64(span.Microseconds()) / 1000 / float64(len(c.ticks)-1)
	c.meta.LengthMs = FromBPM(60000 / (perTick * clockPPQN)).LengthMs
}

// ClockStart aligns the beat phase to a MIDI start message.
func (c *Clock) ClockStart(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = c.ticks[:0]
	c.meta.OffsetMs = float64(now.UnixMilli())
}
