package project

import (
	"fmt"
	"math/rand/v2"
)

var groupNamePool = []string{
	"Front Wash", "Back Light", "Sidelight", "Uplights", "Truss", "Floor",
	"Audience", "Cyc", "Specials", "Movers", "Strips", "Practicals",
}

var tileNamePool = []string{
	"Wash", "Focus", "Amber", "Blue", "Cool", "Warm", "Flood",
	"Strobe", "Blackout", "Dim", "Bright", "Sunrise", "Chase",
}

// MockProfiles are the fixture profiles GenerateMockProject patches.
var MockProfiles = []FixtureProfile{
	{
		ID:   "rgbw-par",
		Name: "RGBW Par",
		Channels: []ProfileChannel{
			{Offset: 0, Kind: Intensity},
			{Offset: 1, Kind: Red},
			{Offset: 2, Kind: Green},
			{Offset: 3, Kind: Blue},
			{Offset: 4, Kind: White},
		},
	},
	{
		ID:   "spot-mover",
		Name: "Spot Mover",
		Channels: []ProfileChannel{
			{Offset: 0, Kind: Pan, DefaultDegrees: 270, MinDegrees: 0, MaxDegrees: 540},
			{Offset: 1, Kind: Tilt, DefaultDegrees: 0, MinDegrees: -135, MaxDegrees: 135},
			{Offset: 2, Kind: ColorWheel},
			{Offset: 3, Kind: Intensity},
			{Offset: 4, Kind: Strobe, Default: 255},
		},
	},
}

// GenerateMockProject builds a deterministic project with one Art-Net output
// per universe, nested groups that only reference earlier groups, and one
// scene of tiles.
func GenerateMockProject(numOutputs, fixturesPerOutput, numGroups, numTiles int) *Project {
	rng := rand.New(rand.NewPCG(42, 0))

	p := New("Mock Show")
	for _, fp := range MockProfiles {
		p.Profiles[fp.ID] = fp
	}

	patch := Patch{ID: "main", Name: "Main"}
	for o := range numOutputs {
		out := Output{
			ID:       OutputID(fmt.Sprintf("out%d", o)),
			Name:     fmt.Sprintf("Universe %d", o+1),
			Kind:     ArtNet,
			Address:  "127.0.0.1:6454",
			Universe: o,
			Enabled:  true,
		}
		addr := 1
		for f := range fixturesPerOutput {
			fp := MockProfiles[rng.IntN(len(MockProfiles))]
			if addr+fp.Footprint() > 513 {
				break
			}
			out.Fixtures = append(out.Fixtures, Fixture{
				ID:        FixtureID(fmt.Sprintf("f%d_%d", o, f)),
				Name:      fmt.Sprintf("%s %d.%d", fp.Name, o+1, f+1),
				ProfileID: fp.ID,
				Channel:   addr,
			})
			addr += fp.Footprint()
		}
		patch.Outputs = append(patch.Outputs, out)
	}
	p.Patches = append(p.Patches, patch)
	p.ActivePatch = patch.ID

	// reach tracks what each generated group resolves to, so a group's own
	// fixtures never repeat one its nested group already reaches.
	refs := p.FixtureRefs()
	reach := map[GroupID]map[FixtureReference]bool{}
	for g := range numGroups {
		name := groupNamePool[g%len(groupNamePool)]
		if g >= len(groupNamePool) {
			name = fmt.Sprintf("%s %d", name, g/len(groupNamePool)+1)
		}
		group := Group{ID: GroupID(fmt.Sprintf("g%d", g)), Name: name}
		reached := map[FixtureReference]bool{}
		if g > 0 && rng.Float64() < 0.4 {
			child := GroupID(fmt.Sprintf("g%d", rng.IntN(g)))
			group.Targets = append(group.Targets, GroupTarget(child))
			for ref := range reach[child] {
				reached[ref] = true
			}
		}
		if len(refs) > 0 {
			n := 1 + rng.IntN(4)
			var fixtures FixturesTarget
			for range n {
				ref := refs[rng.IntN(len(refs))]
				if reached[ref] {
					continue
				}
				reached[ref] = true
				fixtures = append(fixtures, ref)
			}
			if len(fixtures) > 0 {
				group.Targets = append(group.Targets, fixtures)
			}
		}
		reach[group.ID] = reached
		p.Groups = append(p.Groups, group)
	}

	scene := Scene{ID: "s0", Name: "Scene 1"}
	for t := range numTiles {
		tile := Tile{
			ID:              TileID(fmt.Sprintf("t%d", t)),
			Name:            tileNamePool[rng.IntN(len(tileNamePool))],
			OneShot:         rng.Float64() < 0.2,
			LoopDuration:    BeatCount(float64(1 + rng.IntN(8))),
			FadeInDuration:  Ms(float64(rng.IntN(2000))),
			FadeOutDuration: Ms(float64(rng.IntN(2000))),
		}
		if numGroups > 0 {
			tile.Outputs = append(tile.Outputs, TileOutput{
				Target: GroupTarget(fmt.Sprintf("g%d", rng.IntN(numGroups))),
				Levels: map[ChannelKind]int{
					Intensity: 255,
					Red:       rng.IntN(256),
					Green:     rng.IntN(256),
					Blue:      rng.IntN(256),
				},
			})
		}
		scene.Tiles = append(scene.Tiles, tile)
	}
	p.Scenes = append(p.Scenes, scene)

	return p
}
