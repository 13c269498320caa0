package xtouch

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type LCDColor uint8

const (
	ColorBlack LCDColor = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
)

type LEDState uint8

const (
	LEDOff   LEDState = 0
	LEDFlash LEDState = 64
	LEDOn    LEDState = 127
)

type Output struct {
	send     func(msg midi.Message) error
	DeviceID uint8
}

func NewOutput(port drivers.Out, deviceID uint8) (*Output, error) {
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("xtouch: open output port: %w", err)
	}
	return NewOutputFunc(send, deviceID), nil
}

// NewOutputFunc builds an Output over an arbitrary send function.
func NewOutputFunc(send func(midi.Message) error, deviceID uint8) *Output {
	return &Output{send: send, DeviceID: deviceID}
}

func (o *Output) SetFader(fader uint8, value uint8) error {
	cc := CCFaderFirst + fader
	if fader == Strips {
		cc = CCFaderMain
	}
	return o.send(midi.ControlChange(0, cc, min(value, 127)))
}

func (o *Output) SetButtonLED(button uint8, state LEDState) error {
	return o.send(midi.NoteOn(0, button, uint8(state)))
}

func (o *Output) SetMeter(strip uint8, value uint8) error {
	return o.send(midi.ControlChange(0, CCMeterFirst+strip, min(value, 127)))
}

// SetLCD writes both seven-character lines of a scribble strip.
func (o *Output) SetLCD(strip uint8, color LCDColor, upper, lower string) error {
	data := []byte{0x00, 0x20, 0x32, o.DeviceID, 0x4C, strip, byte(color)}
	data = append(data, fit(upper, 7)...)
	data = append(data, fit(lower, 7)...)
	return o.send(midi.SysEx(data))
}

func fit(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	for i := 0; i < n && i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7E {
			c = '?'
		}
		b[i] = c
	}
	return b
}
