package target

import (
	"errors"
	"testing"

	"tileshow/lib/project"
)

func ref(id string) project.FixtureReference {
	return project.FixtureReference{PatchID: "p", OutputID: "o", FixtureID: project.FixtureID(id)}
}

func fixtures(ids ...string) project.FixturesTarget {
	var t project.FixturesTarget
	for _, id := range ids {
		t = append(t, ref(id))
	}
	return t
}

func group(id string) project.GroupTarget {
	return project.GroupTarget(id)
}

func newProject(fixtureIDs []string, groups ...project.Group) *project.Project {
	p := project.New("test")
	out := project.Output{ID: "o", Kind: project.ArtNet}
	for _, id := range fixtureIDs {
		out.Fixtures = append(out.Fixtures, project.Fixture{ID: project.FixtureID(id)})
	}
	p.Patches = []project.Patch{{ID: "p", Outputs: []project.Output{out}}}
	p.ActivePatch = "p"
	p.Groups = groups
	return p
}

func ids(refs []project.FixtureReference) []string {
	var s []string
	for _, r := range refs {
		s = append(s, string(r.FixtureID))
	}
	return s
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResolveNestedOrderedUnion(t *testing.T) {
	p := newProject([]string{"f1", "f2", "f3"},
		project.Group{ID: "a", Targets: project.Targets{fixtures("f2", "f1")}},
		project.Group{ID: "b", Targets: project.Targets{group("a"), fixtures("f1", "f3")}},
	)
	got := ids(ResolveGroup(p, "b"))
	want := []string{"f2", "f1", "f3"}
	if !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveTerminatesOnCycle(t *testing.T) {
	p := newProject([]string{"f1", "f2"},
		project.Group{ID: "a", Targets: project.Targets{group("b"), fixtures("f1")}},
		project.Group{ID: "b", Targets: project.Targets{group("a"), fixtures("f2", "f1")}},
		project.Group{ID: "c", Targets: project.Targets{group("c")}},
	)
	got := ids(ResolveGroup(p, "a"))
	want := []string{"f2", "f1"}
	if !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := ResolveGroup(p, "c"); len(got) != 0 {
		t.Errorf("self-referencing group resolved to %v", got)
	}
}

func TestResolveUnknownGroupIsEmpty(t *testing.T) {
	p := newProject(nil)
	if got := ResolveGroup(p, "nope"); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestAddToGroupDropsRedundantTarget(t *testing.T) {
	p := newProject([]string{"F"},
		project.Group{ID: "A", Targets: project.Targets{fixtures("F")}},
		project.Group{ID: "B", Targets: project.Targets{fixtures("F")}},
	)
	if err := AddToGroup(p, "A", group("B")); err != nil {
		t.Fatal(err)
	}
	targets := p.Group("A").Targets
	if len(targets) != 1 || !project.SameTarget(targets[0], group("B")) {
		t.Errorf("got %v, want [group:B]", targets)
	}
}

func TestAddToGroupIsIdempotent(t *testing.T) {
	p := newProject([]string{"f1"},
		project.Group{ID: "A", Targets: project.Targets{fixtures("f1")}},
	)
	if err := AddToGroup(p, "A", fixtures("f1")); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Group("A").Targets); got != 1 {
		t.Errorf("got %d targets, want 1", got)
	}
}

func TestAddToGroupUnknownGroup(t *testing.T) {
	p := newProject(nil)
	err := AddToGroup(p, "missing", fixtures("f1"))
	if !errors.Is(err, project.ErrUnknownGroup) {
		t.Errorf("got %v, want ErrUnknownGroup", err)
	}
}

// overlap finds two members of targets that reach a common fixture. Pairs
// of group targets are skipped when groups is false.
func overlap(p *project.Project, targets project.Targets, groups bool) (string, bool) {
	for i := range targets {
		for j := i + 1; j < len(targets); j++ {
			_, gi := targets[i].(project.GroupTarget)
			_, gj := targets[j].(project.GroupTarget)
			if gi && gj && !groups {
				continue
			}
			seen := asSet(Resolve(p, targets[i]))
			for _, r := range Resolve(p, targets[j]) {
				if seen[r] {
					return project.TargetString(targets[i]) + " and " + project.TargetString(targets[j]) + " at " + string(r.FixtureID), true
				}
			}
		}
	}
	return "", false
}

func TestAddToGroupKeepsSupersetWithoutOverlap(t *testing.T) {
	for _, g := range project.GenerateMockProject(2, 12, 8, 0).Groups {
		// editing a nested group can overlap its parents, so every group
		// starts from a fresh copy
		p := project.GenerateMockProject(2, 12, 8, 0)
		if at, ok := overlap(p, p.Group(g.ID).Targets, false); ok {
			t.Fatalf("generated group %s: %s overlap", g.ID, at)
		}
		for _, candidate := range ApplicableMembers(p, g.ID) {
			before := asSet(ResolveGroup(p, g.ID))
			if err := AddToGroup(p, g.ID, candidate); err != nil {
				t.Fatal(err)
			}
			after := asSet(ResolveGroup(p, g.ID))
			for r := range before {
				if !after[r] {
					t.Fatalf("group %s lost %s after adding %s", g.ID, r, project.TargetString(candidate))
				}
			}
			for _, r := range Resolve(p, candidate) {
				if !after[r] {
					t.Fatalf("group %s does not reach %s after adding %s", g.ID, r, project.TargetString(candidate))
				}
			}
			if id := mustGroup(candidate); id != "" && Reaches(p, project.GroupID(id), g.ID) {
				t.Fatalf("adding %s to %s created a cycle", project.TargetString(candidate), g.ID)
			}
			if at, ok := overlap(p, p.Group(g.ID).Targets, false); ok {
				t.Fatalf("after adding %s to %s: %s overlap", project.TargetString(candidate), g.ID, at)
			}
		}
	}
}

func TestAddToGroupTrimsPartialFixtureOverlap(t *testing.T) {
	p := newProject([]string{"F1", "F2", "F3"},
		project.Group{ID: "G", Targets: project.Targets{fixtures("F1", "F2")}},
		project.Group{ID: "B", Targets: project.Targets{fixtures("F2", "F3")}},
	)
	if err := AddToGroup(p, "G", group("B")); err != nil {
		t.Fatal(err)
	}
	targets := p.Group("G").Targets
	if len(targets) != 2 || !project.SameTarget(targets[0], fixtures("F1")) || !project.SameTarget(targets[1], group("B")) {
		t.Errorf("got %v, want [fixtures[F1] group:B]", targets)
	}
	if got := ids(ResolveGroup(p, "G")); !equalStrings(got, []string{"F1", "F2", "F3"}) {
		t.Errorf("got %v, want [F1 F2 F3]", got)
	}
	if at, ok := overlap(p, targets, true); ok {
		t.Errorf("%s overlap", at)
	}
}

func TestAddToGroupTrimsNewFixturesReachedByGroup(t *testing.T) {
	p := newProject([]string{"F1", "F2", "F3"},
		project.Group{ID: "G", Targets: project.Targets{group("B")}},
		project.Group{ID: "B", Targets: project.Targets{fixtures("F1", "F2")}},
	)
	if err := AddToGroup(p, "G", fixtures("F2", "F3")); err != nil {
		t.Fatal(err)
	}
	targets := p.Group("G").Targets
	if len(targets) != 2 || !project.SameTarget(targets[1], fixtures("F3")) {
		t.Errorf("got %v, want [group:B fixtures[F3]]", targets)
	}

	if err := AddToGroup(p, "G", fixtures("F1")); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Group("G").Targets); got != 2 {
		t.Errorf("got %d targets after adding a reached fixture, want 2", got)
	}
}

func TestAddToGroupKeepsPartiallyOverlappingGroups(t *testing.T) {
	p := newProject([]string{"F1", "F2", "F3"},
		project.Group{ID: "G", Targets: project.Targets{group("A")}},
		project.Group{ID: "A", Targets: project.Targets{fixtures("F1", "F2")}},
		project.Group{ID: "B", Targets: project.Targets{fixtures("F2", "F3")}},
	)
	if err := AddToGroup(p, "G", group("B")); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Group("G").Targets); got != 2 {
		t.Errorf("got %d targets, want both groups kept", got)
	}
	if got := ids(ResolveGroup(p, "G")); !equalStrings(got, []string{"F1", "F2", "F3"}) {
		t.Errorf("got %v, want [F1 F2 F3]", got)
	}
}

func mustGroup(t project.OutputTarget) string {
	if g, ok := t.(project.GroupTarget); ok {
		return string(g)
	}
	return ""
}

func TestApplicableMembersExcludesCycles(t *testing.T) {
	p := newProject(nil,
		project.Group{ID: "A", Targets: project.Targets{group("B")}},
		project.Group{ID: "B", Targets: project.Targets{group("C")}},
		project.Group{ID: "C"},
	)
	if got := ApplicableMembers(p, "C"); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestApplicableMembersExcludesCoveredFixture(t *testing.T) {
	p := newProject([]string{"F", "G"},
		project.Group{ID: "A", Targets: project.Targets{fixtures("F")}},
		project.Group{ID: "B", Targets: project.Targets{group("A")}},
	)
	got := ApplicableMembers(p, "B")
	for _, c := range got {
		if project.SameTarget(c, fixtures("F")) {
			t.Errorf("candidate list %v includes covered fixture F", got)
		}
		if project.SameTarget(c, group("A")) {
			t.Errorf("candidate list %v includes covered group A", got)
		}
		if project.SameTarget(c, group("B")) {
			t.Errorf("candidate list %v includes the group itself", got)
		}
	}
	if len(got) != 1 || !project.SameTarget(got[0], fixtures("G")) {
		t.Errorf("got %v, want [fixtures G]", got)
	}
}

func TestApplicableMembersKeepsEmptyGroups(t *testing.T) {
	p := newProject([]string{"F"},
		project.Group{ID: "A", Targets: project.Targets{fixtures("F")}},
		project.Group{ID: "E"},
	)
	got := ApplicableMembers(p, "A")
	if len(got) != 1 || !project.SameTarget(got[0], group("E")) {
		t.Errorf("got %v, want [group:E]", got)
	}
}

func TestResolveNeverDuplicates(t *testing.T) {
	p := project.GenerateMockProject(3, 10, 20, 0)
	// close a few cycles the editor would have refused
	p.Groups[0].Targets = append(p.Groups[0].Targets, group("g19"), group("g0"))
	for _, g := range p.Groups {
		seen := map[project.FixtureReference]bool{}
		for _, r := range ResolveGroup(p, g.ID) {
			if seen[r] {
				t.Fatalf("group %s resolved %s twice", g.ID, r)
			}
			seen[r] = true
		}
	}
}

func BenchmarkResolve(b *testing.B) {
	p := project.GenerateMockProject(4, 40, 50, 0)
	b.ResetTimer()
	for range b.N {
		for _, g := range p.Groups {
			ResolveGroup(p, g.ID)
		}
	}
}
