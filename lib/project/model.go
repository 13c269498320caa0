package project

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUnknownGroup   = errors.New("unknown group")
	ErrUnknownOutput  = errors.New("unknown output")
	ErrUnknownTile    = errors.New("unknown tile")
	ErrUnknownProfile = errors.New("unknown fixture profile")
	ErrUnknownFixture = errors.New("unknown fixture")
)

type (
	PatchID   string
	OutputID  string
	FixtureID string
	GroupID   string
	TileID    string
	SceneID   string
	ProfileID string
)

// NewID returns a fresh random identifier for a new record.
func NewID() string {
	return uuid.NewString()
}

type OutputKind string

const (
	SerialDMX OutputKind = "serial-dmx"
	ArtNet    OutputKind = "artnet"
	Wled      OutputKind = "wled"
)

func (k OutputKind) IsDMX() bool {
	return k == SerialDMX || k == ArtNet
}

func (k OutputKind) Valid() bool {
	switch k {
	case SerialDMX, ArtNet, Wled:
		return true
	}
	return false
}

type ChannelKind string

const (
	Intensity  ChannelKind = "intensity"
	Red        ChannelKind = "red"
	Green      ChannelKind = "green"
	Blue       ChannelKind = "blue"
	White      ChannelKind = "white"
	Amber      ChannelKind = "amber"
	UV         ChannelKind = "uv"
	Pan        ChannelKind = "pan"
	Tilt       ChannelKind = "tilt"
	ColorWheel ChannelKind = "colorWheel"
	Strobe     ChannelKind = "strobe"
	Speed      ChannelKind = "speed"
	Effect     ChannelKind = "effect"
	Palette    ChannelKind = "palette"
	Other      ChannelKind = "other"
)

// IsAngle reports whether values of this kind are authored in degrees.
func (k ChannelKind) IsAngle() bool {
	return k == Pan || k == Tilt
}

type FixtureReference struct {
	PatchID   PatchID   `json:"patchId"`
	OutputID  OutputID  `json:"outputId"`
	FixtureID FixtureID `json:"fixtureId"`
}

func (r FixtureReference) String() string {
	return fmt.Sprintf("%s/%s/%s", r.PatchID, r.OutputID, r.FixtureID)
}

type ProfileChannel struct {
	Offset         int         `json:"offset"`
	Kind           ChannelKind `json:"kind"`
	Default        int         `json:"default,omitempty"`
	DefaultDegrees float64     `json:"defaultDegrees,omitempty"`
	MinDegrees     float64     `json:"minDegrees,omitempty"`
	MaxDegrees     float64     `json:"maxDegrees,omitempty"`
}

type FixtureProfile struct {
	ID       ProfileID        `json:"id"`
	Name     string           `json:"name"`
	Channels []ProfileChannel `json:"channels"`
}

// Footprint is the number of DMX slots the profile occupies.
func (fp *FixtureProfile) Footprint() int {
	n := 0
	for _, c := range fp.Channels {
		if c.Offset+1 > n {
			n = c.Offset + 1
		}
	}
	return n
}

type Fixture struct {
	ID        FixtureID `json:"id"`
	Name      string    `json:"name"`
	ProfileID ProfileID `json:"profileId,omitempty"`
	// Channel is the 1-based DMX start address, or the segment index on a WLED output.
	Channel int `json:"channel"`
}

type Output struct {
	ID        OutputID   `json:"id"`
	Name      string     `json:"name"`
	Kind      OutputKind `json:"kind"`
	Address   string     `json:"address"`
	Universe  int        `json:"universe,omitempty"`
	Enabled   bool       `json:"enabled"`
	LatencyMs float64    `json:"latencyMs,omitempty"`
	Fixtures  []Fixture  `json:"fixtures"`
}

func (o *Output) Fixture(id FixtureID) *Fixture {
	for i := range o.Fixtures {
		if o.Fixtures[i].ID == id {
			return &o.Fixtures[i]
		}
	}
	return nil
}

type Patch struct {
	ID      PatchID  `json:"id"`
	Name    string   `json:"name"`
	Outputs []Output `json:"outputs"`
}

type Group struct {
	ID      GroupID `json:"id"`
	Name    string  `json:"name"`
	Targets Targets `json:"targets"`
}

type Scene struct {
	ID    SceneID `json:"id"`
	Name  string  `json:"name"`
	Tiles []Tile  `json:"tiles"`
}

type Project struct {
	Name        string                       `json:"name"`
	ActivePatch PatchID                      `json:"activePatch"`
	BeatBPM     float64                      `json:"beatBpm,omitempty"`
	Patches     []Patch                      `json:"patches"`
	Profiles    map[ProfileID]FixtureProfile `json:"profiles"`
	Groups      []Group                      `json:"groups"`
	Scenes      []Scene                      `json:"scenes"`
}

func New(name string) *Project {
	return &Project{
		Name:     name,
		Profiles: map[ProfileID]FixtureProfile{},
	}
}

// Patch returns the active patch, or nil when none is selected.
func (p *Project) Patch() *Patch {
	for i := range p.Patches {
		if p.Patches[i].ID == p.ActivePatch {
			return &p.Patches[i]
		}
	}
	return nil
}

func (p *Project) Group(id GroupID) *Group {
	for i := range p.Groups {
		if p.Groups[i].ID == id {
			return &p.Groups[i]
		}
	}
	return nil
}

// Output looks up an output of the active patch.
func (p *Project) Output(id OutputID) *Output {
	patch := p.Patch()
	if patch == nil {
		return nil
	}
	for i := range patch.Outputs {
		if patch.Outputs[i].ID == id {
			return &patch.Outputs[i]
		}
	}
	return nil
}

func (p *Project) Tile(id TileID) *Tile {
	for si := range p.Scenes {
		tiles := p.Scenes[si].Tiles
		for ti := range tiles {
			if tiles[ti].ID == id {
				return &tiles[ti]
			}
		}
	}
	return nil
}

// Tiles returns pointers to every tile of every scene, in scene order.
func (p *Project) Tiles() []*Tile {
	var tiles []*Tile
	for si := range p.Scenes {
		for ti := range p.Scenes[si].Tiles {
			tiles = append(tiles, &p.Scenes[si].Tiles[ti])
		}
	}
	return tiles
}

// Fixture finds the fixture a reference points at, in any patch.
func (p *Project) Fixture(ref FixtureReference) *Fixture {
	for pi := range p.Patches {
		patch := &p.Patches[pi]
		if patch.ID != ref.PatchID {
			continue
		}
		for oi := range patch.Outputs {
			if patch.Outputs[oi].ID == ref.OutputID {
				return patch.Outputs[oi].Fixture(ref.FixtureID)
			}
		}
	}
	return nil
}

// FixtureRefs lists every fixture of the active patch in patch order.
func (p *Project) FixtureRefs() []FixtureReference {
	patch := p.Patch()
	if patch == nil {
		return nil
	}
	var refs []FixtureReference
	for _, out := range patch.Outputs {
		for _, f := range out.Fixtures {
			refs = append(refs, FixtureReference{PatchID: patch.ID, OutputID: out.ID, FixtureID: f.ID})
		}
	}
	return refs
}

func (p *Project) Profile(id ProfileID) (*FixtureProfile, error) {
	fp, ok := p.Profiles[id]
	if !ok {
		return nil, fmt.Errorf("project: profile %q: %w", id, ErrUnknownProfile)
	}
	return &fp, nil
}
