package project

import (
	"encoding/json"
	"fmt"
	"slices"
)

// OutputTarget says which fixtures something applies to. The variants are
// FixturesTarget and GroupTarget.
type OutputTarget interface {
	isOutputTarget()
}

type FixturesTarget []FixtureReference

type GroupTarget GroupID

func (FixturesTarget) isOutputTarget() {}
func (GroupTarget) isOutputTarget()    {}

// SameTarget reports whether a and b are the exact same reference.
func SameTarget(a, b OutputTarget) bool {
	switch a := a.(type) {
	case FixturesTarget:
		b, ok := b.(FixturesTarget)
		return ok && slices.Equal(a, b)
	case GroupTarget:
		b, ok := b.(GroupTarget)
		return ok && a == b
	}
	return false
}

func TargetString(t OutputTarget) string {
	switch t := t.(type) {
	case FixturesTarget:
		s := "fixtures["
		for i, ref := range t {
			if i > 0 {
				s += " "
			}
			s += ref.String()
		}
		return s + "]"
	case GroupTarget:
		return "group:" + string(t)
	}
	return "none"
}

func MarshalTarget(t OutputTarget) ([]byte, error) {
	switch t := t.(type) {
	case FixturesTarget:
		refs := []FixtureReference(t)
		if refs == nil {
			refs = []FixtureReference{}
		}
		return json.Marshal(struct {
			Fixtures []FixtureReference `json:"fixtures"`
		}{refs})
	case GroupTarget:
		return json.Marshal(struct {
			Group GroupID `json:"group"`
		}{GroupID(t)})
	}
	return nil, fmt.Errorf("project: cannot encode target %T", t)
}

func UnmarshalTarget(b []byte) (OutputTarget, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("project: target: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("project: target must have exactly one of fixtures or group, got %s", b)
	}
	if v, ok := raw["fixtures"]; ok {
		var refs []FixtureReference
		if err := json.Unmarshal(v, &refs); err != nil {
			return nil, fmt.Errorf("project: target fixtures: %w", err)
		}
		return FixturesTarget(refs), nil
	}
	if v, ok := raw["group"]; ok {
		var id GroupID
		if err := json.Unmarshal(v, &id); err != nil {
			return nil, fmt.Errorf("project: target group: %w", err)
		}
		return GroupTarget(id), nil
	}
	return nil, fmt.Errorf("project: unknown target shape %s", b)
}

type Targets []OutputTarget

func (ts Targets) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(ts))
	for _, t := range ts {
		b, err := MarshalTarget(t)
		if err != nil {
			return nil, err
		}
		raws = append(raws, b)
	}
	return json.Marshal(raws)
}

func (ts *Targets) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}
	out := make(Targets, 0, len(raws))
	for _, raw := range raws {
		t, err := UnmarshalTarget(raw)
		if err != nil {
			return err
		}
		out = append(out, t)
	}
	*ts = out
	return nil
}
