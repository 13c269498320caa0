package frame

import (
	"fmt"
	"math"

	"tileshow/lib/project"
)

// AngleToDMX maps degrees within the channel's range onto 0-255.
func AngleToDMX(c project.ProfileChannel, degrees float64) (uint8, error) {
	span := c.MaxDegrees - c.MinDegrees
	if span <= 0 {
		return 0, fmt.Errorf("frame: angle channel at offset %d has empty range [%g, %g]", c.Offset, c.MinDegrees, c.MaxDegrees)
	}
	v := (degrees - c.MinDegrees) / span * 255
	return uint8(math.Round(min(max(v, 0), 255))), nil
}

func slot(f project.Fixture, c project.ProfileChannel) (int, error) {
	i := f.Channel - 1 + c.Offset
	if f.Channel < 1 || i < 0 || i >= UniverseSize {
		return 0, fmt.Errorf("frame: fixture %q channel offset %d lands outside the universe", f.ID, c.Offset)
	}
	return i, nil
}

// NewDefaultDMX seeds a universe with every patched fixture's profile
// defaults. A missing or malformed profile is an error.
func NewDefaultDMX(p *project.Project, out *project.Output) (*DMX, error) {
	d := &DMX{Output: out.ID, LatencyMs: out.LatencyMs}
	for _, f := range out.Fixtures {
		fp, err := p.Profile(f.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("frame: fixture %q: %w", f.ID, err)
		}
		for _, c := range fp.Channels {
			i, err := slot(f, c)
			if err != nil {
				return nil, err
			}
			switch {
			case c.Kind.IsAngle():
				v, err := AngleToDMX(c, c.DefaultDegrees)
				if err != nil {
					return nil, fmt.Errorf("frame: profile %q: %w", fp.ID, err)
				}
				d.Universe[i] = v
			case c.Kind == project.ColorWheel:
				d.Universe[i] = clampByte(c.Default)
				d.Stepped[i] = true
			default:
				d.Universe[i] = clampByte(c.Default)
			}
		}
	}
	return d, nil
}

// SetFixtureLevels writes levels onto the channels of one fixture. Kinds the
// profile lacks are ignored; angle kinds are given in degrees.
func (d *DMX) SetFixtureLevels(fp *project.FixtureProfile, f project.Fixture, levels map[project.ChannelKind]int) error {
	for _, c := range fp.Channels {
		v, ok := levels[c.Kind]
		if !ok {
			continue
		}
		i, err := slot(f, c)
		if err != nil {
			return err
		}
		if c.Kind.IsAngle() {
			b, err := AngleToDMX(c, float64(v))
			if err != nil {
				return err
			}
			d.Universe[i] = b
			continue
		}
		d.Universe[i] = clampByte(v)
	}
	return nil
}

// NewDefaultWled seeds one dark segment per patched fixture, ordered by the
// fixture's segment index.
func NewDefaultWled(out *project.Output) *Wled {
	n := 0
	for _, f := range out.Fixtures {
		n = max(n, f.Channel+1)
	}
	return &Wled{
		Output:    out.ID,
		LatencyMs: out.LatencyMs,
		Segments:  make([]Segment, n),
	}
}

// SetSegmentLevels writes levels onto segment i.
func (w *Wled) SetSegmentLevels(i int, levels map[project.ChannelKind]int) {
	if i < 0 || i >= len(w.Segments) {
		return
	}
	s := &w.Segments[i]
	for kind, v := range levels {
		switch kind {
		case project.Red:
			s.Color.R = clampByte(v)
		case project.Green:
			s.Color.G = clampByte(v)
		case project.Blue:
			s.Color.B = clampByte(v)
		case project.Intensity:
			s.Brightness = clampByte(v)
		case project.Speed:
			s.Speed = clampByte(v)
		case project.Effect:
			s.Effect = v
		case project.Palette:
			s.Palette = v
		}
	}
}

func clampByte(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}
