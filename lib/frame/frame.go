// Package frame holds the per-tick representation of what an output device
// transmits next, and blends two such frames for cross-fades.
package frame

import (
	"math"

	"tileshow/lib/project"
)

const UniverseSize = 512

// Output is the mutable next transmission of one device. The variants are
// *DMX and *Wled.
type Output interface {
	OutputID() project.OutputID
	Latency() float64
	Clone() Output
	// Interpolate sets the receiver to the blend of a and b at t in [0,1].
	// Snapshots of another variant leave the receiver untouched.
	Interpolate(a, b Output, t float64)
	isOutput()
}

func clampUnit(t float64) float64 {
	if math.IsNaN(t) {
		return 0
	}
	return min(max(t, 0), 1)
}

func lerp(a, b uint8, t float64) uint8 {
	v := float64(a) + (float64(b)-float64(a))*t
	return uint8(math.Round(min(max(v, 0), 255)))
}

type DMX struct {
	Output    project.OutputID
	LatencyMs float64
	Universe  [UniverseSize]uint8
	// Stepped marks channels that switch instead of fading, such as color wheel slots.
	Stepped [UniverseSize]bool
}

func (d *DMX) isOutput() {}

func (d *DMX) OutputID() project.OutputID { return d.Output }
func (d *DMX) Latency() float64           { return d.LatencyMs }

func (d *DMX) Clone() Output {
	c := *d
	return &c
}

func (d *DMX) Interpolate(a, b Output, t float64) {
	da, ok := a.(*DMX)
	if !ok {
		return
	}
	db, ok := b.(*DMX)
	if !ok {
		return
	}
	t = clampUnit(t)
	for i := range d.Universe {
		stepped := da.Stepped[i] || db.Stepped[i]
		d.Stepped[i] = stepped
		if !stepped {
			d.Universe[i] = lerp(da.Universe[i], db.Universe[i], t)
			continue
		}
		if t <= 0.5 {
			d.Universe[i] = da.Universe[i]
		} else {
			d.Universe[i] = db.Universe[i]
		}
	}
}

type Color struct {
	R, G, B uint8
}

type Segment struct {
	Effect     int   `json:"fx"`
	Palette    int   `json:"pal"`
	Color      Color `json:"-"`
	Speed      uint8 `json:"sx"`
	Brightness uint8 `json:"bri"`
}

type Wled struct {
	Output    project.OutputID
	LatencyMs float64
	Segments  []Segment
}

func (w *Wled) isOutput() {}

func (w *Wled) OutputID() project.OutputID { return w.Output }
func (w *Wled) Latency() float64           { return w.LatencyMs }

func (w *Wled) Clone() Output {
	c := *w
	c.Segments = append([]Segment(nil), w.Segments...)
	return &c
}

// Interpolate copies discrete fields (effect, palette) from the dominant
// snapshot, a when t > 0.5 and b otherwise, then blends color, brightness
// and speed linearly.
func (w *Wled) Interpolate(a, b Output, t float64) {
	wa, ok := a.(*Wled)
	if !ok {
		return
	}
	wb, ok := b.(*Wled)
	if !ok {
		return
	}
	t = clampUnit(t)
	n := max(len(wa.Segments), len(wb.Segments))
	segs := make([]Segment, n)
	for i := range segs {
		sa, sb := segmentAt(wa, wb, i), segmentAt(wb, wa, i)
		if t > 0.5 {
			segs[i] = sa
		} else {
			segs[i] = sb
		}
		segs[i].Color = Color{
			R: lerp(sa.Color.R, sb.Color.R, t),
			G: lerp(sa.Color.G, sb.Color.G, t),
			B: lerp(sa.Color.B, sb.Color.B, t),
		}
		segs[i].Brightness = lerp(sa.Brightness, sb.Brightness, t)
		segs[i].Speed = lerp(sa.Speed, sb.Speed, t)
	}
	w.Segments = segs
}

// segmentAt returns segment i of w, falling back to other when w is shorter.
func segmentAt(w, other *Wled, i int) Segment {
	if i < len(w.Segments) {
		return w.Segments[i]
	}
	return other.Segments[i]
}
