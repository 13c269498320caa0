// Package control binds hardware and network controllers to a running show.
package control

import (
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"tileshow/lib/logging"
	"tileshow/lib/osc"
	"tileshow/lib/project"
	"tileshow/lib/show"
)

// Target is the part of a show the controllers drive.
type Target interface {
	Toggle(id project.TileID) (modified, enabled bool, err error)
	SetStrength(id project.TileID, v float64) error
	Tiles() []show.TileState
	Tap()
	SetBPM(bpm float64)
	ClockTick()
	ClockStart()
}

// OSCHandler dispatches /tile/<id>/toggle, /tile/<id>/strength <f>,
// /beat/tap and /beat/bpm <f>.
func OSCHandler(t Target) osc.Handler {
	return func(m osc.Message) {
		parts := strings.Split(strings.Trim(m.Address, "/"), "/")
		switch {
		case len(parts) == 3 && parts[0] == "tile" && parts[2] == "toggle":
			if _, _, err := t.Toggle(project.TileID(parts[1])); err != nil {
				logging.Warnf("osc %s: %v", m.Address, err)
			}
		case len(parts) == 3 && parts[0] == "tile" && parts[2] == "strength":
			v, ok := firstFloat(m)
			if !ok {
				logging.Warnf("osc %s: missing numeric argument", m.Address)
				return
			}
			if err := t.SetStrength(project.TileID(parts[1]), v); err != nil {
				logging.Warnf("osc %s: %v", m.Address, err)
			}
		case m.Address == "/beat/tap":
			t.Tap()
		case m.Address == "/beat/bpm":
			if v, ok := firstFloat(m); ok {
				t.SetBPM(v)
			}
		default:
			logging.Debugf("osc: unhandled %s", m.Address)
		}
	}
}

func firstFloat(m osc.Message) (float64, bool) {
	if len(m.Args) == 0 {
		return 0, false
	}
	return osc.Float(m.Args[0])
}

const (
	midiTimingClock = 0xF8
	midiStart       = 0xFA
	midiContinue    = 0xFB
)

// ClockReceiver follows a MIDI timing clock: 24 pulses per beat set the
// tempo and Start aligns the beat phase.
func ClockReceiver(t Target) func(msg midi.Message, timestampms int32) {
	return func(msg midi.Message, timestampms int32) {
		if len(msg) != 1 {
			return
		}
		switch msg[0] {
		case midiTimingClock:
			t.ClockTick()
		case midiStart, midiContinue:
			t.ClockStart()
		}
	}
}
