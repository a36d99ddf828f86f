package converter

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Modifier is one step of the transform pipeline.
type Modifier interface {
	Modify(img image.Image) image.Image
}

// Apply runs img through modifiers in order.
func Apply(img image.Image, modifiers ...Modifier) image.Image {
	for _, m := range modifiers {
		img = m.Modify(img)
	}
	return img
}

// Rotator turns an image clockwise by an exact quarter turn.
type Rotator struct {
	Rotation Rotation
}

// Modify implements Modifier. imaging rotates counter-clockwise, so a
// clockwise quarter turn is its 270.
func (r Rotator) Modify(img image.Image) image.Image {
	switch r.Rotation.normalize() {
	case Rotate90:
		return imaging.Rotate270(img)
	case Rotate180:
		return imaging.Rotate180(img)
	case Rotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Resizer scales an image into a Width x Height box. With KeepAspectRatio it
// fits inside the box and never upscales; otherwise it stretches to the exact
// size. A zero axis is unconstrained.
type Resizer struct {
	Width           int
	Height          int
	KeepAspectRatio bool
}

// Modify implements Modifier.
func (r Resizer) Modify(img image.Image) image.Image {
	if r.Width <= 0 && r.Height <= 0 {
		return img
	}

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	if w == 0 || h == 0 {
		return img
	}

	if !r.KeepAspectRatio {
		return imaging.Resize(img, max(r.Width, 0), max(r.Height, 0), imaging.Lanczos)
	}

	ratio := 0.0
	if r.Width > 0 {
		ratio = w / float64(r.Width)
	}
	if r.Height > 0 {
		if hRatio := h / float64(r.Height); hRatio > ratio {
			ratio = hRatio
		}
	}

	// Already fits.
	if ratio <= 1 {
		return img
	}

	dstW := max(int(math.Round(w/ratio)), 1)
	dstH := max(int(math.Round(h/ratio)), 1)
	return imaging.Resize(img, dstW, dstH, imaging.Lanczos)
}

// Orienter undoes the EXIF orientation so the image displays upright.
type Orienter struct {
	Orientation int
}

// Modify implements Modifier.
func (o Orienter) Modify(img image.Image) image.Image {
	switch o.Orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
