package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"tileshow/lib/xtouch"
)

var lcdColors = []xtouch.LCDColor{
	xtouch.ColorRed,
	xtouch.ColorGreen,
	xtouch.ColorYellow,
	xtouch.ColorBlue,
	xtouch.ColorMagenta,
	xtouch.ColorCyan,
	xtouch.ColorWhite,
}

var (
	faderValues [xtouch.Strips]uint8
	selected    [xtouch.Strips]bool
)

func updateLCD(out *xtouch.Output, strip uint8) {
	color := lcdColors[int(faderValues[strip])*len(lcdColors)/128]
	level := xtouch.FaderStrength(faderValues[strip])
	out.SetLCD(strip, color, fmt.Sprintf("Ch %d", strip+1), fmt.Sprintf("%5.1f%%", level*100))
}

func main() {
	defer midi.CloseDriver()

	name := "x-touch"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	inPort, err := xtouch.FindInPort(name)
	if err != nil {
		fmt.Println("Available MIDI input ports:")
		for _, p := range midi.GetInPorts() {
			fmt.Printf("  %s\n", p)
		}
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}

	outPort, err := xtouch.FindOutPort(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, err := xtouch.NewOutput(outPort, xtouch.DeviceIDXTouch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for i := range uint8(xtouch.Strips) {
		updateLCD(out, i)
		out.SetFader(i, 0)
		out.SetButtonLED(xtouch.NoteSelectFirst+i, xtouch.LEDOff)
	}

	fmt.Printf("Listening on: %s\n", inPort)

	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		event := xtouch.Decode(msg)
		if event == nil {
			return
		}
		fmt.Println(event)

		switch e := event.(type) {
		case xtouch.FaderEvent:
			if e.Fader >= xtouch.Strips {
				return
			}
			faderValues[e.Fader] = e.Value
			out.SetMeter(e.Fader, e.Value)
			updateLCD(out, e.Fader)

		case xtouch.ButtonEvent:
			strip, row, ok := e.Strip()
			if !ok || !e.Pressed || row != xtouch.NoteSelectFirst {
				return
			}
			selected[strip] = !selected[strip]
			led := xtouch.LEDOff
			if selected[strip] {
				led = xtouch.LEDOn
			}
			out.SetButtonLED(e.Button, led)

		case xtouch.EncoderEvent:
			if e.Encoder >= xtouch.Strips {
				return
			}
			v := int(faderValues[e.Encoder]) + e.Delta*4
			faderValues[e.Encoder] = uint8(min(max(v, 0), 127))
			out.SetFader(e.Encoder, faderValues[e.Encoder])
			updateLCD(out, e.Encoder)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listening: %v\n", err)
		os.Exit(1)
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println()
}
