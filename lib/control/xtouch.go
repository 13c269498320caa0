package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"tileshow/lib/logging"
	"tileshow/lib/show"
	"tileshow/lib/xtouch"
)

const feedbackInterval = 100 * time.Millisecond

type stripState struct {
	name  string
	led   xtouch.LEDState
	fader uint8
}

// XTouch maps eight consecutive tiles onto the surface's channel strips:
// faders set strength, select buttons toggle, and the motor faders, LEDs and
// scribble strips follow the tiles. The jog encoder pages through banks.
type XTouch struct {
	target Target
	out    *xtouch.Output

	mu      sync.Mutex
	bank    int
	touched [xtouch.Strips]bool
	shown   [xtouch.Strips]stripState
	primed  bool
}

func NewXTouch(t Target, out *xtouch.Output) *XTouch {
	return &XTouch{target: t, out: out}
}

func (x *XTouch) tileAt(strip uint8) (show.TileState, bool) {
	tiles := x.target.Tiles()
	i := x.bank*xtouch.Strips + int(strip)
	if i >= len(tiles) {
		return show.TileState{}, false
	}
	return tiles[i], true
}

func (x *XTouch) HandleEvent(ev xtouch.Event) {
	x.mu.Lock()
	defer x.mu.Unlock()

	switch ev := ev.(type) {
	case xtouch.FaderEvent:
		if ev.Fader >= xtouch.Strips {
			return
		}
		if t, ok := x.tileAt(ev.Fader); ok {
			if err := x.target.SetStrength(t.ID, xtouch.FaderStrength(ev.Value)); err != nil {
				logging.Warnf("xtouch: %v", err)
			}
			x.shown[ev.Fader].fader = ev.Value
		}
	case xtouch.FaderTouchEvent:
		if ev.Fader < xtouch.Strips {
			x.touched[ev.Fader] = ev.Touched
		}
	case xtouch.ButtonEvent:
		strip, row, ok := ev.Strip()
		if !ok || !ev.Pressed || row != xtouch.NoteSelectFirst {
			return
		}
		if t, ok := x.tileAt(strip); ok {
			if _, _, err := x.target.Toggle(t.ID); err != nil {
				logging.Warnf("xtouch: %v", err)
			}
		}
	case xtouch.EncoderEvent:
		banks := (len(x.target.Tiles()) + xtouch.Strips - 1) / xtouch.Strips
		x.bank = min(max(x.bank+ev.Delta, 0), max(banks-1, 0))
		x.primed = false
	}
}

func ledFor(t show.TileState) xtouch.LEDState {
	switch t.State {
	case "fade-in":
		if t.Envelope < 1 {
			return xtouch.LEDFlash
		}
		return xtouch.LEDOn
	case "fade-out":
		if t.Envelope > 0 {
			return xtouch.LEDFlash
		}
	case "strength":
		if t.Envelope > 0 {
			return xtouch.LEDOn
		}
	}
	return xtouch.LEDOff
}

// Feedback pushes tile state to the surface, sending only what changed.
func (x *XTouch) Feedback() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for strip := range uint8(xtouch.Strips) {
		t, ok := x.tileAt(strip)
		want := stripState{}
		if ok {
			want = stripState{name: t.Name, led: ledFor(t), fader: xtouch.FaderPosition(t.Envelope)}
		}
		have := &x.shown[strip]
		if !x.primed || have.name != want.name {
			color := xtouch.ColorBlack
			if ok {
				color = xtouch.ColorCyan
			}
			if err := x.out.SetLCD(strip, color, want.name, fmt.Sprintf("%d", x.bank*xtouch.Strips+int(strip)+1)); err != nil {
				return err
			}
		}
		if !x.primed || have.led != want.led {
			if err := x.out.SetButtonLED(xtouch.NoteSelectFirst+strip, want.led); err != nil {
				return err
			}
		}
		if !x.touched[strip] && (!x.primed || have.fader != want.fader) {
			if err := x.out.SetFader(strip, want.fader); err != nil {
				return err
			}
		}
		if x.touched[strip] {
			want.fader = have.fader
		}
		*have = want
	}
	x.primed = true
	return nil
}

// Run listens on in and refreshes feedback until ctx ends.
func (x *XTouch) Run(ctx context.Context, in drivers.In) error {
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		if ev := xtouch.Decode(msg); ev != nil {
			logging.Tracef("xtouch: %s", ev)
			x.HandleEvent(ev)
		}
	})
	if err != nil {
		return fmt.Errorf("control: listen xtouch: %w", err)
	}
	defer stop()

	ticker := time.NewTicker(feedbackInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := x.Feedback(); err != nil {
				logging.WarnOncef("xtouch-feedback", "xtouch: feedback: %v", err)
			}
		}
	}
}
