// Package xtouch talks to a Behringer X-Touch (or Extender) in MIDI mode:
// faders and buttons in, motor faders, button LEDs and scribble strips out.
package xtouch

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	DeviceIDXTouch   = 0x14
	DeviceIDExtender = 0x15

	Strips = 8
)

const (
	CCFaderFirst   = 70
	CCFaderLast    = 77
	CCFaderMain    = 78
	CCEncoderFirst = 80
	CCEncoderLast  = 87
	CCMeterFirst   = 90
)

// Button rows of each channel strip, top to bottom.
const (
	NoteRecFirst    = 0
	NoteSoloFirst   = 8
	NoteMuteFirst   = 16
	NoteSelectFirst = 24
	NoteButtonLast  = 103

	NoteFaderTouchFirst = 110
	NoteFaderTouchLast  = 117
)

type Event interface {
	String() string
}

type ButtonEvent struct {
	Button  uint8
	Pressed bool
}

func (e ButtonEvent) String() string {
	if e.Pressed {
		return fmt.Sprintf("button %d pressed", e.Button)
	}
	return fmt.Sprintf("button %d released", e.Button)
}

// Strip returns the channel strip and row base of a strip button.
func (e ButtonEvent) Strip() (strip, row uint8, ok bool) {
	if e.Button >= NoteSelectFirst+Strips {
		return 0, 0, false
	}
	return e.Button % Strips, e.Button - e.Button%Strips, true
}

type FaderEvent struct {
	Fader uint8
	Value uint8
}

func (e FaderEvent) String() string {
	return fmt.Sprintf("fader %d = %d", e.Fader, e.Value)
}

type FaderTouchEvent struct {
	Fader   uint8
	Touched bool
}

func (e FaderTouchEvent) String() string {
	return fmt.Sprintf("fader %d touched=%v", e.Fader, e.Touched)
}

type EncoderEvent struct {
	Encoder uint8
	Delta   int
}

func (e EncoderEvent) String() string {
	return fmt.Sprintf("encoder %d %+d", e.Encoder, e.Delta)
}

func findPort[P fmt.Stringer](ports []P, substr string) (P, bool) {
	lower := strings.ToLower(substr)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), lower) {
			return p, true
		}
	}
	var zero P
	return zero, false
}

func FindInPort(substr string) (drivers.In, error) {
	if p, ok := findPort(midi.GetInPorts(), substr); ok {
		return p, nil
	}
	return nil, fmt.Errorf("xtouch: no MIDI input port matching %q", substr)
}

func FindOutPort(substr string) (drivers.Out, error) {
	if p, ok := findPort(midi.GetOutPorts(), substr); ok {
		return p, nil
	}
	return nil, fmt.Errorf("xtouch: no MIDI output port matching %q", substr)
}

// Decode turns a MIDI message into a surface event, or nil for messages the
// surface does not send. Encoders are read in relative mode.
func Decode(msg midi.Message) Event {
	var channel, a, b uint8
	switch {
	case msg.GetNoteOn(&channel, &a, &b):
		return decodeNote(a, b > 0)
	case msg.GetNoteOff(&channel, &a, &b):
		return decodeNote(a, false)
	case msg.GetControlChange(&channel, &a, &b):
		return decodeCC(a, b)
	}
	return nil
}

func decodeNote(key uint8, on bool) Event {
	switch {
	case key <= NoteButtonLast:
		return ButtonEvent{Button: key, Pressed: on}
	case key >= NoteFaderTouchFirst && key <= NoteFaderTouchLast:
		return FaderTouchEvent{Fader: key - NoteFaderTouchFirst, Touched: on}
	}
	return nil
}

func decodeCC(cc, value uint8) Event {
	switch {
	case cc >= CCFaderFirst && cc <= CCFaderLast:
		return FaderEvent{Fader: cc - CCFaderFirst, Value: value}
	case cc == CCFaderMain:
		return FaderEvent{Fader: Strips, Value: value}
	case cc >= CCEncoderFirst && cc <= CCEncoderLast:
		delta := 0
		switch value {
		case 65:
			delta = 1
		case 1:
			delta = -1
		}
		return EncoderEvent{Encoder: cc - CCEncoderFirst, Delta: delta}
	}
	return nil
}

// FaderStrength maps a 7-bit fader position onto [0,1].
func FaderStrength(v uint8) float64 {
	return float64(min(v, 127)) / 127
}

// FaderPosition maps a strength in [0,1] onto a 7-bit fader position.
func FaderPosition(s float64) uint8 {
	s = min(max(s, 0), 1)
	return uint8(s*127 + 0.5)
}
