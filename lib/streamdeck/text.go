package streamdeck

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextImage renders centered lines of text on a square key of size pixels.
func TextImage(size int, bg, fg color.Color, lines ...string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	startY := (size-lineHeight*len(lines))/2 + metrics.Ascent.Ceil()

	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		d := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{fg},
			Face: face,
			Dot:  fixed.P((size-width)/2, startY+i*lineHeight),
		}
		d.DrawString(line)
	}
	return img
}

// TileImage draws a tile key: the name on a background lit in proportion to
// level, with a level bar along the bottom edge.
func TileImage(size int, name string, level float64) *image.RGBA {
	level = min(max(level, 0), 1)
	bg := color.RGBA{R: uint8(200 * level), G: uint8(140 * level), B: 20, A: 255}
	fg := color.Color(color.White)
	if level > 0.6 {
		fg = color.Black
	}
	img := TextImage(size, bg, fg, wrap(name, size/7)...)

	barH := max(size/16, 2)
	bar := image.Rect(0, size-barH, int(float64(size)*level), size)
	draw.Draw(img, bar, &image.Uniform{color.RGBA{R: 255, G: 220, B: 120, A: 255}}, image.Point{}, draw.Src)
	return img
}

func wrap(s string, width int) []string {
	var lines []string
	var cur string
	for _, w := range strings.Fields(s) {
		switch {
		case cur == "":
			cur = w
		case len(cur)+1+len(w) <= width:
			cur += " " + w
		default:
			lines = append(lines, cur)
			cur = w
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func (d *Device) SetKeyText(key int, bg, fg color.Color, text string) error {
	return d.SetKeyImage(key, TextImage(d.model.KeySize, bg, fg, strings.Split(text, "\n")...))
}

func (d *Device) SetTileKey(key int, name string, level float64) error {
	return d.SetKeyImage(key, TileImage(d.model.KeySize, name, level))
}
