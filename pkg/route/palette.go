package route

import (
	"fmt"
	"image/color"
	"math"
)

type Color struct {
	R, G, B uint8
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NRGBA returns the color with alpha in [0, 1].
func (c Color) NRGBA(alpha float64) color.NRGBA {
	a := math.Max(0, math.Min(1, alpha))
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(a * 255))}
}

// Palette is matplotlib's tab10 qualitative colormap.
var Palette = [...]Color{
	{0x1f, 0x77, 0xb4},
	{0xff, 0x7f, 0x0e},
	{0x2c, 0xa0, 0x2c},
	{0xd6, 0x27, 0x28},
	{0x94, 0x67, 0xbd},
	{0x8c, 0x56, 0x4b},
	{0xe3, 0x77, 0xc2},
	{0x7f, 0x7f, 0x7f},
	{0xbc, 0xbd, 0x22},
	{0x17, 0xbe, 0xcf},
}

// PaletteColor maps an itinerary index to its slot, cycling through Palette.
func PaletteColor(itinerary int) Color {
	n := len(Palette)
	i := itinerary % n
	if i < 0 {
		i += n
	}
	return Palette[i]
}
