package target

import (
	"fmt"

	"tileshow/lib/project"
)

// rewrite applies fn to every output target stored in the project. A target
// for which fn returns nil is removed from its list.
func rewrite(p *project.Project, fn func(project.OutputTarget) project.OutputTarget) {
	for gi := range p.Groups {
		g := &p.Groups[gi]
		kept := g.Targets[:0]
		for _, t := range g.Targets {
			if t = fn(t); t != nil {
				kept = append(kept, t)
			}
		}
		g.Targets = kept
	}
	for _, tile := range p.Tiles() {
		kept := tile.Outputs[:0]
		for _, out := range tile.Outputs {
			if out.Target = fn(out.Target); out.Target != nil {
				kept = append(kept, out)
			}
		}
		tile.Outputs = kept
	}
}

// DeleteFixture removes the fixture from its patch and every reference to it
// from groups and tile outputs. Fixture targets left empty are dropped.
func DeleteFixture(p *project.Project, ref project.FixtureReference) error {
	removed := false
	for pi := range p.Patches {
		patch := &p.Patches[pi]
		if patch.ID != ref.PatchID {
			continue
		}
		for oi := range patch.Outputs {
			out := &patch.Outputs[oi]
			if out.ID != ref.OutputID {
				continue
			}
			for fi, f := range out.Fixtures {
				if f.ID == ref.FixtureID {
					out.Fixtures = append(out.Fixtures[:fi], out.Fixtures[fi+1:]...)
					removed = true
					break
				}
			}
		}
	}
	if !removed {
		return fmt.Errorf("target: fixture %s: %w", ref, project.ErrUnknownFixture)
	}

	rewrite(p, func(t project.OutputTarget) project.OutputTarget {
		fixtures, ok := t.(project.FixturesTarget)
		if !ok {
			return t
		}
		var kept project.FixturesTarget
		for _, r := range fixtures {
			if r != ref {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		return kept
	})
	return nil
}

// DeleteTargetGroup removes the group and every group target pointing at it.
func DeleteTargetGroup(p *project.Project, id project.GroupID) error {
	idx := -1
	for i, g := range p.Groups {
		if g.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("target: group %q: %w", id, project.ErrUnknownGroup)
	}
	p.Groups = append(p.Groups[:idx], p.Groups[idx+1:]...)

	rewrite(p, func(t project.OutputTarget) project.OutputTarget {
		if g, ok := t.(project.GroupTarget); ok && project.GroupID(g) == id {
			return nil
		}
		return t
	})
	return nil
}
