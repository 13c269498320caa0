// Package tile computes how strongly a tile is applied at a point in time and
// moves its transition state when it is toggled.
package tile

import (
	"math"
	"time"

	"tileshow/lib/beat"
	"tileshow/lib/project"
)

// offThreshold is the fader strength below which a toggle treats the tile as off.
const offThreshold = 0.1

func elapsedMs(since, now time.Time) float64 {
	return float64(now.Sub(since)) / float64(time.Millisecond)
}

// progress is elapsed/duration clamped to [0,1]. Zero elapsed time is zero
// progress even for a zero duration.
func progress(elapsed, duration float64) float64 {
	if elapsed == 0 {
		return 0
	}
	p := elapsed / duration
	if math.IsNaN(p) {
		return 0
	}
	return min(max(p, 0), 1)
}

func oneShotRunning(t *project.Tile, b beat.Metadata, start, now time.Time) bool {
	end := start.Add(time.Duration(t.LoopDuration.Millis(b.LengthMs) * float64(time.Millisecond)))
	return now.Before(end)
}

// Amount is the activation of a tile: 1 while it plays, 0 when it does not,
// or the externally driven strength.
func Amount(t *project.Tile, b beat.Metadata, now time.Time) float64 {
	switch tr := t.Transition.(type) {
	case project.AbsoluteStrength:
		return tr.Value
	case project.FadeInStartedAt:
		if !t.OneShot {
			return 1
		}
		if oneShotRunning(t, b, tr.At, now) {
			return 1
		}
		return 0
	}
	return 0
}

// Envelope is the instantaneous brightness of a tile including its fade
// ramps. Toggle keeps it continuous.
func Envelope(t *project.Tile, b beat.Metadata, now time.Time) float64 {
	switch tr := t.Transition.(type) {
	case project.AbsoluteStrength:
		return min(max(tr.Value, 0), 1)
	case project.FadeInStartedAt:
		if t.OneShot && !oneShotRunning(t, b, tr.At, now) {
			return 0
		}
		return fadeIn(t, b, tr.At, now)
	case project.FadeOutStartedAt:
		return fadeOut(t, b, tr.At, now)
	}
	return 0
}

func fadeOut(t *project.Tile, b beat.Metadata, start, now time.Time) float64 {
	d := t.FadeOutDuration.Millis(b.LengthMs)
	if d <= 0 && !now.Before(start) {
		return 0
	}
	return 1 - progress(elapsedMs(start, now), d)
}

func fadeIn(t *project.Tile, b beat.Metadata, start, now time.Time) float64 {
	if now.Before(start) {
		return 0
	}
	d := t.FadeInDuration.Millis(b.LengthMs)
	if d <= 0 {
		return 1
	}
	return progress(elapsedMs(start, now), d)
}

// Toggle flips a tile between fading in and fading out. It reports whether
// the state changed and whether the tile is now being enabled. One-shot tiles
// always restart.
func Toggle(t *project.Tile, b beat.Metadata, now time.Time) (modified, newlyEnabled bool) {
	if t.OneShot {
		t.Transition = project.FadeInStartedAt{At: now}
		return true, true
	}

	fadeInMs := t.FadeInDuration.Millis(b.LengthMs)
	fadeOutMs := t.FadeOutDuration.Millis(b.LengthMs)

	switch tr := t.Transition.(type) {
	case nil:
		t.Transition = fadeOutFrom(0, fadeOutMs, now)
		return true, false
	case project.AbsoluteStrength:
		if tr.Value < offThreshold {
			t.Transition = fadeOutFrom(min(max(tr.Value, 0), 1), fadeOutMs, now)
			return true, false
		}
	case project.FadeInStartedAt:
		t.Transition = fadeOutFrom(fadeIn(t, b, tr.At, now), fadeOutMs, now)
		return true, false
	case project.FadeOutStartedAt:
		back := math.Floor(fadeOut(t, b, tr.At, now) * fadeInMs)
		t.Transition = project.FadeInStartedAt{At: now.Add(-msDuration(back))}
		return true, true
	}
	return false, false
}

// fadeOutFrom starts a fade-out that is already at level at now.
func fadeOutFrom(level, fadeOutMs float64, now time.Time) project.FadeOutStartedAt {
	back := math.Floor((1 - level) * fadeOutMs)
	return project.FadeOutStartedAt{At: now.Add(-msDuration(back))}
}

// SetStrength stores a fader-driven strength, clamped to [0,1].
func SetStrength(t *project.Tile, s float64) {
	if math.IsNaN(s) {
		s = 0
	}
	t.Transition = project.AbsoluteStrength{Value: min(max(s, 0), 1)}
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
