package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"morph/internal/converter"
	"morph/internal/preset"
)

// optionFlags holds the conversion flags shared by convert, batch and
// preset save. Values only apply when the flag was given, so config
// defaults and presets show through otherwise.
type optionFlags struct {
	format         string
	preset         string
	quality        int
	webpQuality    int
	lossless       bool
	pngCompression int
	width          int
	height         int
	stretch        bool
	rotate         int
	loop           int
	autoOrient     bool
	keepStructure  bool
}

func (f *optionFlags) bind(cmd *cobra.Command, withFormat bool) {
	flags := cmd.Flags()
	if withFormat {
		flags.StringVarP(&f.format, "format", "f", "", "target format: png, jpg, gif or webp")
	}
	flags.StringVar(&f.preset, "preset", "", "start from a saved preset")
	flags.IntVarP(&f.quality, "quality", "q", 75, "JPEG quality (1-100)")
	flags.IntVar(&f.webpQuality, "webp-quality", 75, "WebP quality (1-100)")
	flags.BoolVar(&f.lossless, "lossless", false, "lossless WebP")
	flags.IntVar(&f.pngCompression, "png-compression", 6, "PNG compression level (0-9)")
	flags.IntVar(&f.width, "width", 0, "target width in pixels, 0 leaves it unconstrained")
	flags.IntVar(&f.height, "height", 0, "target height in pixels, 0 leaves it unconstrained")
	flags.BoolVar(&f.stretch, "stretch", false, "resize to exactly width x height instead of fitting inside")
	flags.IntVar(&f.rotate, "rotate", 0, "clockwise rotation in degrees, a multiple of 90")
	flags.IntVar(&f.loop, "loop", 0, "animated GIF loop count, 0 loops forever")
	flags.BoolVar(&f.autoOrient, "auto-orient", false, "apply the EXIF orientation of JPEG sources")
	flags.BoolVar(&f.keepStructure, "keep-structure", false, "mirror source subdirectories in the destination")
}

// resolve layers config defaults, the preset and explicitly set flags.
func (f *optionFlags) resolve(cmd *cobra.Command) (converter.Format, converter.Options, error) {
	format, err := converter.ParseFormat(cfg.Defaults.Format)
	if err != nil {
		return "", converter.Options{}, err
	}
	opts := cfg.Defaults.Options

	if f.preset != "" {
		store, err := preset.Open(cfg.Presets.Path)
		if err != nil {
			return "", opts, err
		}
		p, err := store.Get(f.preset)
		if err != nil {
			return "", opts, err
		}
		format, opts = p.Format, p.Options
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		if format, err = converter.ParseFormat(f.format); err != nil {
			return "", opts, err
		}
	}
	if flags.Changed("quality") {
		opts.JPEGQuality = f.quality
	}
	if flags.Changed("webp-quality") {
		opts.WebPQuality = f.webpQuality
	}
	if flags.Changed("lossless") {
		opts.WebPLossless = f.lossless
	}
	if flags.Changed("png-compression") {
		opts.PNGCompression = f.pngCompression
	}
	if flags.Changed("width") {
		opts.Width = f.width
	}
	if flags.Changed("height") {
		opts.Height = f.height
	}
	if flags.Changed("stretch") {
		opts.KeepAspectRatio = !f.stretch
	}
	if flags.Changed("rotate") {
		r, err := converter.ParseRotation(f.rotate)
		if err != nil {
			return "", opts, err
		}
		opts.Rotation = r
	}
	if flags.Changed("loop") {
		opts.LoopCount = f.loop
	}
	if flags.Changed("auto-orient") {
		opts.AutoOrient = f.autoOrient
	}
	if flags.Changed("keep-structure") {
		opts.PreserveStructure = f.keepStructure
	}

	if err := opts.Validate(); err != nil {
		return "", opts, fmt.Errorf("invalid options: %w", err)
	}
	return format, opts, nil
}
