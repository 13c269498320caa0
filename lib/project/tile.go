package project

import (
	"encoding/json"
	"fmt"
	"time"
)

type DurationUnit string

const (
	Millis DurationUnit = "ms"
	Beats  DurationUnit = "beats"
)

type Duration struct {
	Value float64      `json:"value"`
	Unit  DurationUnit `json:"unit"`
}

func Ms(v float64) Duration        { return Duration{Value: v, Unit: Millis} }
func BeatCount(v float64) Duration { return Duration{Value: v, Unit: Beats} }

// Millis resolves the duration against a beat length in milliseconds.
func (d Duration) Millis(beatLengthMs float64) float64 {
	if d.Unit == Beats {
		return d.Value * beatLengthMs
	}
	return d.Value
}

func (d Duration) String() string {
	if d.Unit == Beats {
		return fmt.Sprintf("%g beats", d.Value)
	}
	return fmt.Sprintf("%gms", d.Value)
}

// Transition is a tile's persisted activation state. A nil Transition is unset.
type Transition interface {
	isTransition()
}

type FadeInStartedAt struct{ At time.Time }

type FadeOutStartedAt struct{ At time.Time }

// AbsoluteStrength is driven from outside the fade logic, e.g. a hardware fader.
type AbsoluteStrength struct{ Value float64 }

func (FadeInStartedAt) isTransition()  {}
func (FadeOutStartedAt) isTransition() {}
func (AbsoluteStrength) isTransition() {}

type transitionJSON struct {
	FadeInStartedAt  *int64   `json:"fadeInStartedAt,omitempty"`
	FadeOutStartedAt *int64   `json:"fadeOutStartedAt,omitempty"`
	AbsoluteStrength *float64 `json:"absoluteStrength,omitempty"`
}

func encodeTransition(tr Transition) *transitionJSON {
	switch tr := tr.(type) {
	case FadeInStartedAt:
		ms := tr.At.UnixMilli()
		return &transitionJSON{FadeInStartedAt: &ms}
	case FadeOutStartedAt:
		ms := tr.At.UnixMilli()
		return &transitionJSON{FadeOutStartedAt: &ms}
	case AbsoluteStrength:
		v := tr.Value
		return &transitionJSON{AbsoluteStrength: &v}
	}
	return nil
}

func decodeTransition(tj *transitionJSON) (Transition, error) {
	if tj == nil {
		return nil, nil
	}
	set := 0
	var tr Transition
	if tj.FadeInStartedAt != nil {
		set++
		tr = FadeInStartedAt{At: time.UnixMilli(*tj.FadeInStartedAt)}
	}
	if tj.FadeOutStartedAt != nil {
		set++
		tr = FadeOutStartedAt{At: time.UnixMilli(*tj.FadeOutStartedAt)}
	}
	if tj.AbsoluteStrength != nil {
		set++
		tr = AbsoluteStrength{Value: *tj.AbsoluteStrength}
	}
	if set > 1 {
		return nil, fmt.Errorf("project: transition has %d states set", set)
	}
	return tr, nil
}

// TileOutput applies static channel levels to a target while the tile is active.
type TileOutput struct {
	Target OutputTarget
	Levels map[ChannelKind]int
}

type tileOutputJSON struct {
	Target json.RawMessage     `json:"target"`
	Levels map[ChannelKind]int `json:"levels,omitempty"`
}

func (o TileOutput) MarshalJSON() ([]byte, error) {
	target, err := MarshalTarget(o.Target)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tileOutputJSON{Target: target, Levels: o.Levels})
}

func (o *TileOutput) UnmarshalJSON(b []byte) error {
	var aux tileOutputJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	target, err := UnmarshalTarget(aux.Target)
	if err != nil {
		return err
	}
	o.Target = target
	o.Levels = aux.Levels
	return nil
}

type Tile struct {
	ID              TileID       `json:"id"`
	Name            string       `json:"name"`
	OneShot         bool         `json:"oneShot,omitempty"`
	LoopDuration    Duration     `json:"loopDuration"`
	FadeInDuration  Duration     `json:"fadeInDuration"`
	FadeOutDuration Duration     `json:"fadeOutDuration"`
	Transition      Transition   `json:"-"`
	Outputs         []TileOutput `json:"outputs,omitempty"`
}

func (t Tile) MarshalJSON() ([]byte, error) {
	type plain Tile
	return json.Marshal(struct {
		plain
		Transition *transitionJSON `json:"transition,omitempty"`
	}{plain(t), encodeTransition(t.Transition)})
}

func (t *Tile) UnmarshalJSON(b []byte) error {
	type plain Tile
	aux := struct {
		*plain
		Transition *transitionJSON `json:"transition"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	tr, err := decodeTransition(aux.Transition)
	if err != nil {
		return fmt.Errorf("tile %q: %w", t.ID, err)
	}
	t.Transition = tr
	return nil
}
