package converter

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/soniakeys/quant/median"
)

const maxPaletteColors = 256

// quantize reduces img to a median-cut palette of at most 256 colors and maps
// pixels onto it with Floyd-Steinberg error diffusion.
func quantize(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok && len(p.Palette) <= maxPaletteColors {
		return p
	}

	bounds := img.Bounds()
	palette := median.Quantizer(maxPaletteColors).Quantize(make(color.Palette, 0, maxPaletteColors), img)
	if len(palette) == 0 {
		palette = color.Palette{color.Transparent}
	}

	dst := image.NewPaletted(bounds, palette)
	draw.FloydSteinberg.Draw(dst, bounds, img, bounds.Min)
	return dst
}
