// Package render builds each output's frame from the static levels of the
// tiles that are currently lit.
package render

import (
	"context"
	"fmt"
	"time"

	"tileshow/lib/beat"
	"tileshow/lib/frame"
	"tileshow/lib/project"
	"tileshow/lib/target"
	"tileshow/lib/tile"
)

// Source gives read access to a consistent view of the project.
type Source interface {
	View(fn func(p *project.Project, b beat.Metadata, now time.Time) error) error
}

type Mixer struct {
	src Source
}

func NewMixer(src Source) *Mixer {
	return &Mixer{src: src}
}

// DefaultFrame seeds the frame an output shows with no tile lit.
func DefaultFrame(p *project.Project, out *project.Output) (frame.Output, error) {
	switch {
	case out.Kind.IsDMX():
		return frame.NewDefaultDMX(p, out)
	case out.Kind == project.Wled:
		return frame.NewDefaultWled(out), nil
	}
	return nil, fmt.Errorf("render: output %q has kind %q", out.ID, out.Kind)
}

func (m *Mixer) RenderFrame(ctx context.Context, id project.OutputID, counter uint64) (frame.Output, error) {
	var result frame.Output
	err := m.src.View(func(p *project.Project, b beat.Metadata, now time.Time) error {
		out := p.Output(id)
		if out == nil {
			return fmt.Errorf("render: output %q: %w", id, project.ErrUnknownOutput)
		}
		base, err := DefaultFrame(p, out)
		if err != nil {
			return err
		}
		for _, t := range p.Tiles() {
			env := tile.Envelope(t, b, now)
			if env <= 0 {
				continue
			}
			lit := base.Clone()
			n, err := applyTile(p, out, t, base, lit)
			if err != nil {
				return fmt.Errorf("render: tile %q: %w", t.ID, err)
			}
			if n > 0 {
				base.Interpolate(base, lit, env)
			}
		}
		result = base
		return nil
	})
	return result, err
}

// applyTile writes the tile's levels into lit for every fixture of out the
// tile targets and returns how many fixtures it touched.
func applyTile(p *project.Project, out *project.Output, t *project.Tile, base, lit frame.Output) (int, error) {
	n := 0
	for _, to := range t.Outputs {
		for _, ref := range target.Resolve(p, to.Target) {
			if ref.PatchID != p.ActivePatch || ref.OutputID != out.ID {
				continue
			}
			f := out.Fixture(ref.FixtureID)
			if f == nil {
				continue
			}
			switch lit := lit.(type) {
			case *frame.DMX:
				fp, err := p.Profile(f.ProfileID)
				if err != nil {
					return n, err
				}
				if err := lit.SetFixtureLevels(fp, *f, to.Levels); err != nil {
					return n, err
				}
			case *frame.Wled:
				lit.SetSegmentLevels(f.Channel, to.Levels)
				// effect and palette selectors cannot fade, so a lit tile
				// owns them on both sides of the blend
				base.(*frame.Wled).SetSegmentLevels(f.Channel, selectors(to.Levels))
			}
			n++
		}
	}
	return n, nil
}

func selectors(levels map[project.ChannelKind]int) map[project.ChannelKind]int {
	sel := map[project.ChannelKind]int{}
	for _, k := range []project.ChannelKind{project.Effect, project.Palette} {
		if v, ok := levels[k]; ok {
			sel[k] = v
		}
	}
	return sel
}
