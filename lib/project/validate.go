package project

import "fmt"

// Validate checks the invariants a loaded project must satisfy before it is
// played back. Group cycles are not checked here; resolution tolerates them.
func (p *Project) Validate() error {
	if p == nil {
		return fmt.Errorf("project is nil")
	}

	for id, fp := range p.Profiles {
		if fp.ID != id {
			return fmt.Errorf("profile key %q does not match id %q", id, fp.ID)
		}
		offsets := map[int]bool{}
		for _, c := range fp.Channels {
			if c.Offset < 0 || c.Offset >= 512 {
				return fmt.Errorf("profile %q has channel offset %d out of range", id, c.Offset)
			}
			if offsets[c.Offset] {
				return fmt.Errorf("profile %q has duplicate channel offset %d", id, c.Offset)
			}
			offsets[c.Offset] = true
			if c.Kind.IsAngle() && c.MaxDegrees <= c.MinDegrees {
				return fmt.Errorf("profile %q angle channel %d has empty degree range", id, c.Offset)
			}
		}
	}

	patchIDs := map[PatchID]bool{}
	for _, patch := range p.Patches {
		if patchIDs[patch.ID] {
			return fmt.Errorf("duplicate patch id %q", patch.ID)
		}
		patchIDs[patch.ID] = true

		outputIDs := map[OutputID]bool{}
		for _, out := range patch.Outputs {
			if outputIDs[out.ID] {
				return fmt.Errorf("patch %q has duplicate output id %q", patch.ID, out.ID)
			}
			outputIDs[out.ID] = true
			if !out.Kind.Valid() {
				return fmt.Errorf("output %q has unknown kind %q", out.ID, out.Kind)
			}
			if err := p.validateFixtures(&out); err != nil {
				return err
			}
		}
	}
	if p.ActivePatch != "" && !patchIDs[p.ActivePatch] {
		return fmt.Errorf("active patch %q not found", p.ActivePatch)
	}

	groupIDs := map[GroupID]bool{}
	for _, g := range p.Groups {
		if groupIDs[g.ID] {
			return fmt.Errorf("duplicate group id %q", g.ID)
		}
		groupIDs[g.ID] = true
	}

	tileIDs := map[TileID]bool{}
	for _, scene := range p.Scenes {
		for _, t := range scene.Tiles {
			if tileIDs[t.ID] {
				return fmt.Errorf("duplicate tile id %q", t.ID)
			}
			tileIDs[t.ID] = true
			for _, d := range []Duration{t.LoopDuration, t.FadeInDuration, t.FadeOutDuration} {
				if d.Unit != Millis && d.Unit != Beats && d.Unit != "" {
					return fmt.Errorf("tile %q has unknown duration unit %q", t.ID, d.Unit)
				}
				if d.Value < 0 {
					return fmt.Errorf("tile %q has negative duration %s", t.ID, d)
				}
			}
		}
	}

	return nil
}

func (p *Project) validateFixtures(out *Output) error {
	fixtureIDs := map[FixtureID]bool{}
	for _, f := range out.Fixtures {
		if fixtureIDs[f.ID] {
			return fmt.Errorf("output %q has duplicate fixture id %q", out.ID, f.ID)
		}
		fixtureIDs[f.ID] = true
		if !out.Kind.IsDMX() {
			continue
		}
		fp, err := p.Profile(f.ProfileID)
		if err != nil {
			return fmt.Errorf("fixture %q: %w", f.ID, err)
		}
		if f.Channel < 1 || f.Channel-1+fp.Footprint() > 512 {
			return fmt.Errorf("fixture %q at channel %d does not fit in the universe", f.ID, f.Channel)
		}
	}
	return nil
}
