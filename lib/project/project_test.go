package project

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateMockProjectValidates(t *testing.T) {
	p := GenerateMockProject(3, 20, 10, 12)
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Patch().Outputs); got != 3 {
		t.Errorf("got %d outputs, want 3", got)
	}
	if got := len(p.Tiles()); got != 12 {
		t.Errorf("got %d tiles, want 12", got)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "show.json"))
	if err != nil {
		t.Fatal(err)
	}
	p := GenerateMockProject(1, 4, 2, 2)
	at := time.UnixMilli(1_700_000_000_123)
	p.Scenes[0].Tiles[0].Transition = FadeOutStartedAt{At: at}
	p.Scenes[0].Tiles[1].Transition = AbsoluteStrength{Value: 0.25}
	if err := store.Save(p); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	tr, ok := loaded.Scenes[0].Tiles[0].Transition.(FadeOutStartedAt)
	if !ok {
		t.Fatalf("got %T, want FadeOutStartedAt", loaded.Scenes[0].Tiles[0].Transition)
	}
	if !tr.At.Equal(at) {
		t.Errorf("got %v, want %v", tr.At, at)
	}
	if got := loaded.Scenes[0].Tiles[1].Transition; got != (AbsoluteStrength{Value: 0.25}) {
		t.Errorf("got %#v, want strength 0.25", got)
	}
	if !SameTarget(loaded.Groups[0].Targets[0], p.Groups[0].Targets[0]) {
		t.Errorf("group target changed: %s vs %s", TargetString(loaded.Groups[0].Targets[0]), TargetString(p.Groups[0].Targets[0]))
	}
}

func TestStoreLoadMissingReturnsEmptyProject(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "new-show.json"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "new-show" {
		t.Errorf("got %q, want %q", p.Name, "new-show")
	}
}

func TestUnmarshalTargetRejectsAmbiguousShape(t *testing.T) {
	for _, in := range []string{`{}`, `{"group":"a","fixtures":[]}`, `{"scene":"x"}`} {
		if _, err := UnmarshalTarget([]byte(in)); err == nil {
			t.Errorf("%s: expected error", in)
		}
	}
	got, err := UnmarshalTarget([]byte(`{"fixtures":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(FixturesTarget); !ok {
		t.Errorf("got %T, want FixturesTarget", got)
	}
}

func TestTileRejectsTwoTransitionStates(t *testing.T) {
	var tile Tile
	err := json.Unmarshal([]byte(`{"id":"t","transition":{"fadeInStartedAt":1,"absoluteStrength":0.5}}`), &tile)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRejectsUnknownProfile(t *testing.T) {
	p := GenerateMockProject(1, 2, 0, 0)
	p.Patches[0].Outputs[0].Fixtures[0].ProfileID = "missing"
	err := p.Validate()
	if !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("got %v, want ErrUnknownProfile", err)
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	p := GenerateMockProject(1, 2, 0, 0)
	p.Patches[0].Outputs[0].Kind = "dali"
	if err := p.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestDurationMillis(t *testing.T) {
	if got := BeatCount(2).Millis(500); got != 1000 {
		t.Errorf("got %v, want 1000", got)
	}
	if got := Ms(250).Millis(500); got != 250 {
		t.Errorf("got %v, want 250", got)
	}
}
