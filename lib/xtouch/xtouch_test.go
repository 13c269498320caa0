package xtouch

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestDecodeFader(t *testing.T) {
	ev := Decode(midi.ControlChange(0, CCFaderFirst+3, 100))
	fe, ok := ev.(FaderEvent)
	if !ok {
		t.Fatalf("got %T, want FaderEvent", ev)
	}
	if fe.Fader != 3 || fe.Value != 100 {
		t.Errorf("got %+v", fe)
	}
	if ev := Decode(midi.ControlChange(0, CCFaderMain, 1)); ev.(FaderEvent).Fader != Strips {
		t.Errorf("got %v, want main fader", ev)
	}
}

func TestDecodeSelectButton(t *testing.T) {
	ev := Decode(midi.NoteOn(0, NoteSelectFirst+5, 127))
	be, ok := ev.(ButtonEvent)
	if !ok || !be.Pressed {
		t.Fatalf("got %#v", ev)
	}
	strip, row, ok := be.Strip()
	if !ok || strip != 5 || row != NoteSelectFirst {
		t.Errorf("got strip %d row %d ok %v", strip, row, ok)
	}
}

func TestDecodeEncoderAndTouch(t *testing.T) {
	if ev := Decode(midi.ControlChange(0, CCEncoderFirst+1, 1)); ev != (EncoderEvent{Encoder: 1, Delta: -1}) {
		t.Errorf("got %#v", ev)
	}
	if ev := Decode(midi.NoteOn(0, NoteFaderTouchFirst+2, 127)); ev != (FaderTouchEvent{Fader: 2, Touched: true}) {
		t.Errorf("got %#v", ev)
	}
	if ev := Decode(midi.ProgramChange(0, 3)); ev != nil {
		t.Errorf("got %#v, want nil", ev)
	}
}

func TestFaderScaling(t *testing.T) {
	if got := FaderStrength(127); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
	if got := FaderPosition(0.5); got != 64 {
		t.Errorf("got %d, want 64", got)
	}
	if got := FaderPosition(2); got != 127 {
		t.Errorf("got %d, want 127", got)
	}
	for v := uint8(0); v <= 127; v++ {
		if got := FaderPosition(FaderStrength(v)); got != v {
			t.Fatalf("round trip %d gave %d", v, got)
		}
	}
}

func TestOutputMessages(t *testing.T) {
	var sent []midi.Message
	out := NewOutputFunc(func(m midi.Message) error {
		sent = append(sent, m)
		return nil
	}, DeviceIDExtender)

	out.SetFader(2, 90)
	out.SetButtonLED(NoteSelectFirst, LEDOn)
	out.SetLCD(1, ColorCyan, "Wash", "\x01fade")

	if len(sent) != 3 {
		t.Fatalf("got %d messages, want 3", len(sent))
	}
	var ch, cc, val uint8
	if !sent[0].GetControlChange(&ch, &cc, &val) || cc != CCFaderFirst+2 || val != 90 {
		t.Errorf("fader: got % x", []byte(sent[0]))
	}
	var key, vel uint8
	if !sent[1].GetNoteOn(&ch, &key, &vel) || key != NoteSelectFirst || vel != 127 {
		t.Errorf("led: got % x", []byte(sent[1]))
	}
	var sysex []byte
	if !sent[2].GetSysEx(&sysex) {
		t.Fatalf("lcd: got % x", []byte(sent[2]))
	}
	want := append([]byte{0x00, 0x20, 0x32, DeviceIDExtender, 0x4C, 1, byte(ColorCyan)}, "Wash   ?fade  "...)
	if !bytes.Equal(sysex, want) {
		t.Errorf("lcd: got %q, want %q", sysex, want)
	}
}
