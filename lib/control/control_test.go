package control

import (
	"errors"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"tileshow/lib/osc"
	"tileshow/lib/project"
	"tileshow/lib/show"
	"tileshow/lib/streamdeck"
	"tileshow/lib/xtouch"
)

type fakeTarget struct {
	tiles    []show.TileState
	toggled  []project.TileID
	strength map[project.TileID]float64
	taps     int
	bpm      float64
	ticks    int
	starts   int
}

func newTarget(n int) *fakeTarget {
	f := &fakeTarget{strength: map[project.TileID]float64{}}
	for i := range n {
		id := project.TileID(string(rune('a' + i)))
		f.tiles = append(f.tiles, show.TileState{ID: id, Name: "Tile " + string(id), State: "unset"})
	}
	return f
}

func (f *fakeTarget) Toggle(id project.TileID) (bool, bool, error) {
	for _, t := range f.tiles {
		if t.ID == id {
			f.toggled = append(f.toggled, id)
			return true, true, nil
		}
	}
	return false, false, project.ErrUnknownTile
}

func (f *fakeTarget) SetStrength(id project.TileID, v float64) error {
	f.strength[id] = v
	return nil
}

func (f *fakeTarget) Tiles() []show.TileState { return f.tiles }
func (f *fakeTarget) Tap()                    { f.taps++ }
func (f *fakeTarget) SetBPM(bpm float64)      { f.bpm = bpm }
func (f *fakeTarget) ClockTick()              { f.ticks++ }
func (f *fakeTarget) ClockStart()             { f.starts++ }

func TestOSCHandler(t *testing.T) {
	target := newTarget(2)
	h := OSCHandler(target)

	h(osc.Message{Address: "/tile/a/toggle"})
	h(osc.Message{Address: "/tile/b/strength", Args: []any{float32(0.25)}})
	h(osc.Message{Address: "/tile/b/strength"})
	h(osc.Message{Address: "/beat/tap"})
	h(osc.Message{Address: "/beat/bpm", Args: []any{int32(96)}})
	h(osc.Message{Address: "/nothing"})

	if len(target.toggled) != 1 || target.toggled[0] != "a" {
		t.Errorf("got toggles %v", target.toggled)
	}
	if target.strength["b"] != 0.25 {
		t.Errorf("got strength %v, want 0.25", target.strength["b"])
	}
	if target.taps != 1 || target.bpm != 96 {
		t.Errorf("got taps %d bpm %v", target.taps, target.bpm)
	}
}

func TestClockReceiver(t *testing.T) {
	target := newTarget(0)
	recv := ClockReceiver(target)
	for range 24 {
		recv(midi.Message{midiTimingClock}, 0)
	}
	recv(midi.Message{midiStart}, 0)
	recv(midi.NoteOn(0, 1, 1), 0)
	if target.ticks != 24 || target.starts != 1 {
		t.Errorf("got %d ticks %d starts", target.ticks, target.starts)
	}
}

func newSurface(t *testing.T, tiles int) (*XTouch, *fakeTarget, *[]midi.Message) {
	t.Helper()
	target := newTarget(tiles)
	sent := &[]midi.Message{}
	out := xtouch.NewOutputFunc(func(m midi.Message) error {
		*sent = append(*sent, m)
		return nil
	}, xtouch.DeviceIDXTouch)
	return NewXTouch(target, out), target, sent
}

func TestXTouchFaderAndSelect(t *testing.T) {
	x, target, _ := newSurface(t, 10)

	x.HandleEvent(xtouch.FaderEvent{Fader: 1, Value: 127})
	if target.strength["b"] != 1 {
		t.Errorf("got %v, want 1", target.strength["b"])
	}
	x.HandleEvent(xtouch.ButtonEvent{Button: xtouch.NoteSelectFirst + 2, Pressed: true})
	x.HandleEvent(xtouch.ButtonEvent{Button: xtouch.NoteSelectFirst + 2, Pressed: false})
	x.HandleEvent(xtouch.ButtonEvent{Button: xtouch.NoteMuteFirst + 2, Pressed: true})
	if len(target.toggled) != 1 || target.toggled[0] != "c" {
		t.Errorf("got toggles %v", target.toggled)
	}

	x.HandleEvent(xtouch.EncoderEvent{Delta: 1})
	x.HandleEvent(xtouch.ButtonEvent{Button: xtouch.NoteSelectFirst + 1, Pressed: true})
	if target.toggled[len(target.toggled)-1] != "j" {
		t.Errorf("bank 2 strip 2 toggled %v, want j", target.toggled)
	}
	x.HandleEvent(xtouch.ButtonEvent{Button: xtouch.NoteSelectFirst + 5, Pressed: true})
	if len(target.toggled) != 2 {
		t.Errorf("empty strip toggled %v", target.toggled)
	}
}

func TestXTouchFeedbackOnlySendsChanges(t *testing.T) {
	x, target, sent := newSurface(t, 3)
	if err := x.Feedback(); err != nil {
		t.Fatal(err)
	}
	if got := len(*sent); got != 3*xtouch.Strips {
		t.Fatalf("first refresh sent %d messages, want %d", got, 3*xtouch.Strips)
	}

	*sent = nil
	if err := x.Feedback(); err != nil {
		t.Fatal(err)
	}
	if len(*sent) != 0 {
		t.Errorf("unchanged refresh sent %d messages", len(*sent))
	}

	target.tiles[0].State = "strength"
	target.tiles[0].Envelope = 0.5
	x.HandleEvent(xtouch.FaderTouchEvent{Fader: 0, Touched: true})
	if err := x.Feedback(); err != nil {
		t.Fatal(err)
	}
	if len(*sent) != 1 {
		t.Fatalf("got %d messages, want only the LED", len(*sent))
	}
	var ch, key, vel uint8
	if !(*sent)[0].GetNoteOn(&ch, &key, &vel) || key != xtouch.NoteSelectFirst || vel != uint8(xtouch.LEDOn) {
		t.Errorf("got % x", []byte((*sent)[0]))
	}
}

type fakeDeck struct {
	model streamdeck.Model
	drawn map[int]float64
	fail  error
}

func (d *fakeDeck) Model() *streamdeck.Model { return &d.model }

func (d *fakeDeck) SetTileKey(key int, name string, level float64) error {
	if d.fail != nil {
		return d.fail
	}
	d.drawn[key] = level
	return nil
}

func (d *fakeDeck) ReadKeys(ch chan<- streamdeck.KeyEvent) error { select {} }

func TestDeckRefreshAndPress(t *testing.T) {
	target := newTarget(2)
	dev := &fakeDeck{model: streamdeck.Model{Keys: 4, KeySize: 72}, drawn: map[int]float64{}}
	d := NewDeck(target, dev)

	if err := d.Refresh(); err != nil {
		t.Fatal(err)
	}
	if len(dev.drawn) != 4 {
		t.Fatalf("drew %d keys, want 4", len(dev.drawn))
	}

	dev.drawn = map[int]float64{}
	target.tiles[1].Envelope = 1
	if err := d.Refresh(); err != nil {
		t.Fatal(err)
	}
	if len(dev.drawn) != 1 || dev.drawn[1] != 1 {
		t.Errorf("got redraws %v", dev.drawn)
	}

	d.HandleKey(streamdeck.KeyEvent{Key: 1, Pressed: true})
	d.HandleKey(streamdeck.KeyEvent{Key: 3, Pressed: true})
	if len(target.toggled) != 1 || target.toggled[0] != "b" {
		t.Errorf("got toggles %v", target.toggled)
	}

	dev.fail = errors.New("unplugged")
	target.tiles[0].Envelope = 1
	if err := d.Refresh(); err == nil {
		t.Error("expected error")
	}
}
