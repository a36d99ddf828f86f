package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"morph/pkg/imgutil"
)

// source is a decoded input. Animated GIFs keep one fully composited canvas
// per frame; everything else has a single frame.
type source struct {
	kind   imgutil.Kind
	raw    []byte
	frames []image.Image
	delays []int
}

func loadSource(path string) (*source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrDecode, path, err)
	}

	kind, err := imgutil.DetectHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}

	src := &source{kind: kind, raw: data}
	r := bytes.NewReader(data)

	var img image.Image
	switch kind {
	case imgutil.KindPNG:
		img, err = png.Decode(r)
	case imgutil.KindJPEG:
		img, err = jpeg.Decode(r)
	case imgutil.KindWEBP:
		img, err = webp.Decode(r)
	case imgutil.KindGIF:
		var g *gif.GIF
		g, err = gif.DecodeAll(r)
		if err == nil {
			src.frames, src.delays = compositeGIF(g)
		}
	default:
		return nil, fmt.Errorf("%w: %s is not a supported image", ErrDecode, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}

	if img != nil {
		src.frames = []image.Image{img}
	}
	if len(src.frames) == 0 {
		return nil, fmt.Errorf("%w: %s contains no frames", ErrDecode, path)
	}

	return src, nil
}

// compositeGIF replays the frames of g onto a canvas honouring each frame's
// disposal method, so every returned frame is a complete picture.
func compositeGIF(g *gif.GIF) ([]image.Image, []int) {
	if len(g.Image) == 1 {
		return []image.Image{g.Image[0]}, g.Delay
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}

	canvas := image.NewRGBA(bounds)
	frames := make([]image.Image, 0, len(g.Image))

	for i, frame := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(canvas))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return frames, g.Delay
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func encode(w io.Writer, format Format, frames []image.Image, delays []int, opts Options) error {
	first := frames[0]

	switch format {
	case FormatJPEG:
		return jpeg.Encode(w, flatten(first), &jpeg.Options{Quality: opts.JPEGQuality})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: pngCompressionLevel(opts.PNGCompression)}
		return enc.Encode(w, first)
	case FormatWEBP:
		return webp.Encode(w, first, &webp.Options{
			Lossless: opts.WebPLossless,
			Quality:  float32(opts.WebPQuality),
		})
	case FormatGIF:
		return encodeGIF(w, frames, delays, opts.LoopCount)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func encodeGIF(w io.Writer, frames []image.Image, delays []int, loops int) error {
	out := &gif.GIF{LoopCount: gifLoopCount(loops)}
	for i, frame := range frames {
		delay := 0
		if i < len(delays) {
			delay = delays[i]
		}
		out.Image = append(out.Image, quantize(frame))
		out.Delay = append(out.Delay, delay)
		out.Disposal = append(out.Disposal, gif.DisposalNone)
	}
	return gif.EncodeAll(w, out)
}

// gifLoopCount maps "play n times, 0 forever" onto the GIF loop field, which
// counts restarts and uses -1 for a single pass.
func gifLoopCount(loops int) int {
	switch {
	case loops <= 0:
		return 0
	case loops == 1:
		return -1
	default:
		return loops - 1
	}
}

// pngCompressionLevel folds the 0-9 zlib scale onto the encoder's levels.
func pngCompressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// flatten composites translucent images onto white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Point{}, 1.0)
}
