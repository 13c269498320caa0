// Package target flattens output targets through the nested group hierarchy
// and keeps group membership acyclic and non-redundant while editing.
package target

import (
	"fmt"

	"tileshow/lib/project"
)

type fixtureSet struct {
	refs []project.FixtureReference
	seen map[project.FixtureReference]bool
}

func newFixtureSet() *fixtureSet {
	return &fixtureSet{seen: map[project.FixtureReference]bool{}}
}

func (s *fixtureSet) add(ref project.FixtureReference) {
	if s.seen[ref] {
		return
	}
	s.seen[ref] = true
	s.refs = append(s.refs, ref)
}

// Resolve returns the ordered, duplicate-free fixtures a target affects.
// Group cycles in loaded data end the recursion on the path that re-enters a
// group; unknown groups resolve to nothing.
func Resolve(p *project.Project, t project.OutputTarget) []project.FixtureReference {
	set := newFixtureSet()
	resolveInto(p, t, map[project.GroupID]bool{}, set)
	return set.refs
}

func resolveInto(p *project.Project, t project.OutputTarget, path map[project.GroupID]bool, set *fixtureSet) {
	switch t := t.(type) {
	case project.FixturesTarget:
		for _, ref := range t {
			set.add(ref)
		}
	case project.GroupTarget:
		id := project.GroupID(t)
		if path[id] {
			return
		}
		g := p.Group(id)
		if g == nil {
			return
		}
		path[id] = true
		for _, child := range g.Targets {
			resolveInto(p, child, path, set)
		}
		delete(path, id)
	}
}

// ResolveGroup is Resolve for a group id.
func ResolveGroup(p *project.Project, id project.GroupID) []project.FixtureReference {
	return Resolve(p, project.GroupTarget(id))
}

// Reaches reports whether group to is reachable from group from through
// nested group targets. A group reaches itself.
func Reaches(p *project.Project, from, to project.GroupID) bool {
	return reaches(p, from, to, map[project.GroupID]bool{})
}

func reaches(p *project.Project, from, to project.GroupID, visited map[project.GroupID]bool) bool {
	if from == to {
		return true
	}
	if visited[from] {
		return false
	}
	visited[from] = true
	g := p.Group(from)
	if g == nil {
		return false
	}
	for _, child := range g.Targets {
		if id, ok := child.(project.GroupTarget); ok && reaches(p, project.GroupID(id), to, visited) {
			return true
		}
	}
	return false
}

// coveredBy reports whether sub is non-empty and every element is in super.
func coveredBy(sub []project.FixtureReference, super map[project.FixtureReference]bool) bool {
	if len(sub) == 0 {
		return false
	}
	for _, ref := range sub {
		if !super[ref] {
			return false
		}
	}
	return true
}

func asSet(refs []project.FixtureReference) map[project.FixtureReference]bool {
	m := make(map[project.FixtureReference]bool, len(refs))
	for _, ref := range refs {
		m[ref] = true
	}
	return m
}

// ApplicableMembers lists the targets that may be added to a group: every
// other group and every fixture of the active patch, minus the group itself,
// groups that would close a cycle back to it, and candidates whose fixtures
// the group already covers.
func ApplicableMembers(p *project.Project, id project.GroupID) []project.OutputTarget {
	current := asSet(ResolveGroup(p, id))

	var candidates []project.OutputTarget
	for _, g := range p.Groups {
		if g.ID == id {
			continue
		}
		if Reaches(p, g.ID, id) {
			continue
		}
		if coveredBy(ResolveGroup(p, g.ID), current) {
			continue
		}
		candidates = append(candidates, project.GroupTarget(g.ID))
	}
	for _, ref := range p.FixtureRefs() {
		if current[ref] {
			continue
		}
		candidates = append(candidates, project.FixturesTarget{ref})
	}
	return candidates
}

// AddToGroup appends t to the group and drops existing targets whose fixtures
// t now covers. Fixture lists that share only some fixtures with another
// member are trimmed to the fixtures nothing else reaches. Two group targets
// that partially overlap are both kept, since neither can be trimmed without
// editing the other group or losing fixtures. Adding a target the group
// already holds is a no-op.
func AddToGroup(p *project.Project, id project.GroupID, t project.OutputTarget) error {
	g := p.Group(id)
	if g == nil {
		return fmt.Errorf("target: group %q: %w", id, project.ErrUnknownGroup)
	}
	for _, existing := range g.Targets {
		if project.SameTarget(existing, t) {
			return nil
		}
	}

	covered := asSet(Resolve(p, t))
	kept := make(project.Targets, 0, len(g.Targets)+1)
	for _, existing := range g.Targets {
		if coveredBy(Resolve(p, existing), covered) {
			continue
		}
		if f, ok := existing.(project.FixturesTarget); ok {
			existing = without(f, covered)
		}
		kept = append(kept, existing)
	}

	if f, ok := t.(project.FixturesTarget); ok {
		reached := map[project.FixtureReference]bool{}
		for _, k := range kept {
			if _, ok := k.(project.GroupTarget); ok {
				for _, ref := range Resolve(p, k) {
					reached[ref] = true
				}
			}
		}
		f = without(f, reached)
		if len(f) == 0 {
			g.Targets = kept
			return nil
		}
		t = f
	}
	g.Targets = append(kept, t)
	return nil
}

// without returns f minus the fixtures in drop.
func without(f project.FixturesTarget, drop map[project.FixtureReference]bool) project.FixturesTarget {
	out := make(project.FixturesTarget, 0, len(f))
	for _, ref := range f {
		if !drop[ref] {
			out = append(out, ref)
		}
	}
	return out
}
