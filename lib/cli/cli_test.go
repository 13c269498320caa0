package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"tileshow/lib/logging"
	"tileshow/lib/project"
	"tileshow/lib/show"
)

func setupProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"TILESHOW_PROJECT", "TILESHOW_FRAME_INTERVAL", "TILESHOW_HTTP_ADDR", "TILESHOW_OSC_ADDR", "TILESHOW_XTOUCH", "TILESHOW_CLOCK_PORT", "TILESHOW_STREAMDECK"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "show.json")
	run(t, path, "mock", "--outputs", "1", "--fixtures", "3", "--groups", "0", "--tiles", "2")
	return path
}

func execute(path string, args ...string) (string, error) {
	var out bytes.Buffer
	err := executeArgs(&out, append([]string{"--project", path}, args...))
	return out.String(), err
}

func run(t *testing.T, path string, args ...string) string {
	t.Helper()
	out, err := execute(path, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestMockRefusesOverwrite(t *testing.T) {
	path := setupProject(t)
	if _, err := execute(path, "mock"); err == nil {
		t.Error("expected error for existing project")
	}
	run(t, path, "mock", "--force", "--tiles", "1")
	if out := run(t, path, "tiles", "list"); strings.Contains(out, "t1") {
		t.Errorf("overwrite kept old tiles:\n%s", out)
	}
}

func TestTilesStrengthPersists(t *testing.T) {
	path := setupProject(t)
	run(t, path, "tiles", "strength", "t1", "0.5")

	out := run(t, path, "tiles", "list")
	var line string
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "t1 ") {
			line = l
		}
	}
	if !strings.Contains(line, "strength") || !strings.Contains(line, "0.50") {
		t.Errorf("got line %q in\n%s", line, out)
	}

	if _, err := execute(path, "tiles", "strength", "t1", "lots"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := execute(path, "tiles", "toggle", "nope"); !errors.Is(err, project.ErrUnknownTile) {
		t.Errorf("got %v, want ErrUnknownTile", err)
	}
}

func TestGroupEditing(t *testing.T) {
	path := setupProject(t)
	id := strings.TrimSpace(run(t, path, "groups", "new", "Front"))
	if id == "" {
		t.Fatal("no group id")
	}

	if out := run(t, path, "groups", "candidates", id); !strings.Contains(out, "main/out0/f0_2") {
		t.Errorf("candidates missing f0_2:\n%s", out)
	}

	out := run(t, path, "groups", "add", id, "main/out0/f0_0,main/out0/f0_1")
	if !strings.Contains(out, "2 fixtures") {
		t.Errorf("got %q", out)
	}
	if _, err := execute(path, "groups", "add", id, "main/out0/f0_0"); !errors.Is(err, show.ErrNotApplicable) {
		t.Errorf("got %v, want ErrNotApplicable", err)
	}

	run(t, path, "fixtures", "delete", "main/out0/f0_0")
	out = run(t, path, "groups", "resolve", id)
	if strings.Contains(out, "f0_0") || !strings.Contains(out, "main/out0/f0_1") {
		t.Errorf("got resolve\n%s", out)
	}

	run(t, path, "groups", "delete", id)
	if out := run(t, path, "groups", "list"); strings.Contains(out, id) {
		t.Errorf("deleted group still listed:\n%s", out)
	}
	if _, err := execute(path, "groups", "resolve", id); !errors.Is(err, project.ErrUnknownGroup) {
		t.Errorf("got %v, want ErrUnknownGroup", err)
	}
}

func TestOutputsAndFixturesList(t *testing.T) {
	path := setupProject(t)
	if out := run(t, path, "outputs", "list"); !strings.Contains(out, "out0") || !strings.Contains(out, "artnet") {
		t.Errorf("got\n%s", out)
	}
	if out := run(t, path, "fixtures", "list"); strings.Count(out, "main/out0/") != 3 {
		t.Errorf("got\n%s", out)
	}
}

func TestOutputsEnableDisable(t *testing.T) {
	path := setupProject(t)
	if out := run(t, path, "outputs", "disable", "out0"); !strings.Contains(out, "out0: disabled") {
		t.Errorf("got %q", out)
	}
	s, err := openShow()
	if err != nil {
		t.Fatal(err)
	}
	if out, err := s.Output("out0"); err != nil || out.Enabled {
		t.Errorf("got %+v, %v after disable", out, err)
	}

	run(t, path, "outputs", "enable", "out0")
	s, err = openShow()
	if err != nil {
		t.Fatal(err)
	}
	if out, err := s.Output("out0"); err != nil || !out.Enabled {
		t.Errorf("got %+v, %v after enable", out, err)
	}
	if _, err := execute(path, "outputs", "enable", "nope"); !errors.Is(err, project.ErrUnknownOutput) {
		t.Errorf("got %v, want ErrUnknownOutput", err)
	}
}

func TestParseTarget(t *testing.T) {
	tgt, err := parseTarget("group:g1")
	if err != nil || !project.SameTarget(tgt, project.GroupTarget("g1")) {
		t.Errorf("got %v, %v", tgt, err)
	}
	tgt, err = parseTarget(`{"fixtures":[{"patchId":"p","outputId":"o","fixtureId":"f"}]}`)
	if err != nil || project.TargetString(tgt) != "fixtures[p/o/f]" {
		t.Errorf("got %v, %v", tgt, err)
	}
	tgt, err = parseTarget("p/o/a, p/o/b")
	if err != nil || project.TargetString(tgt) != "fixtures[p/o/a p/o/b]" {
		t.Errorf("got %v, %v", tgt, err)
	}
	for _, bad := range []string{"group:", "p/o", "p//f"} {
		if _, err := parseTarget(bad); err == nil {
			t.Errorf("parseTarget(%q): expected error", bad)
		}
	}
}

func TestShellSession(t *testing.T) {
	path := setupProject(t)
	t.Cleanup(func() { logging.SetVerbosity(0) })

	var out bytes.Buffer
	s := shellSession{project: path, out: &out}

	if s.run("log --level debug") {
		t.Fatal("log exited the shell")
	}
	if s.verbosity != 2 || logging.Verbosity() != 2 {
		t.Errorf("got verbosity %d/%d, want 2", s.verbosity, logging.Verbosity())
	}

	out.Reset()
	s.run(`tiles strength t0 "0.25"`)
	s.run("tiles list")
	if !strings.Contains(out.String(), "0.25") {
		t.Errorf("got\n%s", out.String())
	}

	out.Reset()
	s.run("tiles toggle nope")
	if !strings.Contains(out.String(), "error:") {
		t.Errorf("got %q", out.String())
	}
	if !s.run("exit") {
		t.Error("exit did not end the shell")
	}
}
