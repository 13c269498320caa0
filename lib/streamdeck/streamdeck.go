// Package streamdeck drives the keys of an Elgato Stream Deck over USB HID.
package streamdeck

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"

	"rafaelmartins.com/p/usbhid"
)

const elgatoVendorID = 0x0fd9

type Model struct {
	Name     string
	Keys     int
	KeyCols  int
	KeySize  int
	FlipKeys bool
}

var (
	ModelXL   = Model{Name: "XL", Keys: 32, KeyCols: 8, KeySize: 96, FlipKeys: true}
	ModelMK2  = Model{Name: "MK.2", Keys: 15, KeyCols: 5, KeySize: 72, FlipKeys: true}
	ModelPlus = Model{Name: "Plus", Keys: 8, KeyCols: 4, KeySize: 120}
)

var productModels = map[uint16]*Model{
	0x006c: &ModelXL,
	0x008f: &ModelXL,
	0x0080: &ModelMK2,
	0x0084: &ModelPlus,
}

type Device struct {
	mu    sync.Mutex
	dev   *usbhid.Device
	model *Model
}

// Open finds the first supported deck whose model name contains name, or
// any supported deck when name is empty.
func Open(name string) (*Device, error) {
	devices, err := usbhid.Enumerate(func(dev *usbhid.Device) bool {
		m := productModels[dev.ProductId()]
		if dev.VendorId() != elgatoVendorID || m == nil {
			return false
		}
		return name == "" || strings.Contains(strings.ToLower(m.Name), strings.ToLower(name))
	})
	if err != nil {
		return nil, fmt.Errorf("streamdeck: enumerate: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("streamdeck: no device found")
	}

	dev := devices[0]
	if err := dev.Open(true); err != nil {
		return nil, fmt.Errorf("streamdeck: open: %w", err)
	}
	return &Device{dev: dev, model: productModels[dev.ProductId()]}, nil
}

func (d *Device) Model() *Model { return d.model }
func (d *Device) Close() error  { return d.dev.Close() }

func (d *Device) SetBrightness(percent byte) error {
	pl := make([]byte, d.dev.GetFeatureReportLength())
	pl[0] = 0x08
	pl[1] = min(percent, 100)
	return d.dev.SetFeatureReport(3, pl)
}

func (d *Device) SetKeyColor(key int, c color.Color) error {
	sz := d.model.KeySize
	img := image.NewRGBA(image.Rect(0, 0, sz, sz))
	xdraw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, xdraw.Src)
	return d.SetKeyImage(key, img)
}

func (d *Device) SetKeyImage(key int, img image.Image) error {
	if key < 0 || key >= d.model.Keys {
		return fmt.Errorf("streamdeck: invalid key %d", key)
	}
	data, err := EncodeKeyImage(d.model, img)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, page := range KeyImagePages(byte(key), data, int(d.dev.GetOutputReportLength())) {
		if err := d.dev.SetOutputReport(2, page); err != nil {
			return fmt.Errorf("streamdeck: key %d: %w", key, err)
		}
	}
	return nil
}

func (d *Device) ClearAllKeys() error {
	for i := range d.model.Keys {
		if err := d.SetKeyColor(i, color.Black); err != nil {
			return err
		}
	}
	return nil
}

// EncodeKeyImage scales img to the model's key size and encodes it the way
// the deck expects.
func EncodeKeyImage(m *Model, img image.Image) ([]byte, error) {
	sz := m.KeySize
	scaled := image.NewRGBA(image.Rect(0, 0, sz, sz))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)

	var src image.Image = scaled
	if m.FlipKeys {
		flipped := image.NewRGBA(scaled.Bounds())
		for y := range sz {
			for x := range sz {
				flipped.Set(sz-1-x, sz-1-y, scaled.At(x, y))
			}
		}
		src = flipped
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("streamdeck: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// KeyImagePages splits image data into output reports of reportLen bytes,
// each with an 8-byte header.
func KeyImagePages(key byte, data []byte, reportLen int) [][]byte {
	const hdrLen = 8
	payloadLen := reportLen - hdrLen
	var pages [][]byte
	for start, page := 0, 0; start < len(data); page++ {
		end := min(start+payloadLen, len(data))
		last := byte(0)
		if end == len(data) {
			last = 1
		}
		chunk := data[start:end]
		report := make([]byte, reportLen)
		copy(report, []byte{
			0x02, 0x07, key, last,
			byte(len(chunk)), byte(len(chunk) >> 8),
			byte(page), byte(page >> 8),
		})
		copy(report[hdrLen:], chunk)
		pages = append(pages, report)
		start = end
	}
	return pages
}

type KeyEvent struct {
	Key     int
	Pressed bool
}

// keyChanges compares a key input report against the last known states.
func keyChanges(buf []byte, states []byte) []KeyEvent {
	const keyStart = 3
	var events []KeyEvent
	if len(buf) < keyStart+1 || buf[0] != 0x00 {
		return nil
	}
	for i := range states {
		if keyStart+i >= len(buf) {
			break
		}
		if st := buf[keyStart+i]; st != states[i] {
			events = append(events, KeyEvent{Key: i, Pressed: st > 0})
			states[i] = st
		}
	}
	return events
}

// ReadKeys blocks delivering key changes until the device read fails.
func (d *Device) ReadKeys(ch chan<- KeyEvent) error {
	states := make([]byte, d.model.Keys)
	for {
		_, buf, err := d.dev.GetInputReport()
		if err != nil {
			return fmt.Errorf("streamdeck: read: %w", err)
		}
		for _, ev := range keyChanges(buf, states) {
			ch <- ev
		}
	}
}
