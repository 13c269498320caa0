package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tileshow/lib/streamdeck"
)

var steps = []float64{0, 0.25, 0.5, 0.75, 1}

func main() {
	name := ""
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	dev, err := streamdeck.Open(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	m := dev.Model()
	fmt.Printf("Connected to: Stream Deck %s (%d keys)\n", m.Name, m.Keys)

	dev.SetBrightness(80)

	level := make([]int, m.Keys)
	for key := range m.Keys {
		level[key] = key % len(steps)
		if err := dev.SetTileKey(key, fmt.Sprintf("Tile %d", key+1), steps[level[key]]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	keys := make(chan streamdeck.KeyEvent, 64)
	go func() {
		if err := dev.ReadKeys(keys); err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev := <-keys:
			if !ev.Pressed {
				continue
			}
			level[ev.Key] = (level[ev.Key] + 1) % len(steps)
			dev.SetTileKey(ev.Key, fmt.Sprintf("Tile %d", ev.Key+1), steps[level[ev.Key]])
			fmt.Printf("Key %d level %.2f\n", ev.Key, steps[level[ev.Key]])
		case <-sig:
			dev.ClearAllKeys()
			fmt.Println()
			return
		}
	}
}
