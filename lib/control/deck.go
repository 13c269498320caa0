package control

import (
	"context"
	"math"
	"time"

	"tileshow/lib/logging"
	"tileshow/lib/streamdeck"
)

// KeyDeck is the part of a Stream Deck the bindings use.
type KeyDeck interface {
	Model() *streamdeck.Model
	SetTileKey(key int, name string, level float64) error
	ReadKeys(ch chan<- streamdeck.KeyEvent) error
}

type keyFace struct {
	name  string
	level int
}

// Deck shows one tile per key, lit by its envelope. Pressing a key toggles
// its tile.
type Deck struct {
	target Target
	dev    KeyDeck
	shown  map[int]keyFace
}

func NewDeck(t Target, dev KeyDeck) *Deck {
	return &Deck{target: t, dev: dev, shown: map[int]keyFace{}}
}

func (d *Deck) HandleKey(ev streamdeck.KeyEvent) {
	if !ev.Pressed {
		return
	}
	tiles := d.target.Tiles()
	if ev.Key >= len(tiles) {
		return
	}
	if _, _, err := d.target.Toggle(tiles[ev.Key].ID); err != nil {
		logging.Warnf("streamdeck: %v", err)
	}
}

// Refresh redraws keys whose tile name or quantized level changed.
func (d *Deck) Refresh() error {
	tiles := d.target.Tiles()
	for key := range d.dev.Model().Keys {
		face := keyFace{}
		if key < len(tiles) {
			face = keyFace{name: tiles[key].Name, level: int(math.Round(tiles[key].Envelope * 16))}
		}
		if old, ok := d.shown[key]; ok && old == face {
			continue
		}
		if err := d.dev.SetTileKey(key, face.name, float64(face.level)/16); err != nil {
			return err
		}
		d.shown[key] = face
	}
	return nil
}

func (d *Deck) Run(ctx context.Context) error {
	keys := make(chan streamdeck.KeyEvent, 16)
	readErr := make(chan error, 1)
	go func() { readErr <- d.dev.ReadKeys(keys) }()

	ticker := time.NewTicker(feedbackInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case ev := <-keys:
			d.HandleKey(ev)
		case <-ticker.C:
			if err := d.Refresh(); err != nil {
				logging.WarnOncef("deck-refresh", "streamdeck: refresh: %v", err)
			}
		}
	}
}
