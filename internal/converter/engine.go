// Package converter turns one source image into an encoded image of another
// format, applying orientation, rotation and resizing on the way.
package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"morph/pkg/fsutil"
	"morph/pkg/imgutil"
)

// Engine is stateless and safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// NewEngine returns an Engine logging through logger, or slog.Default when nil.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Convert decodes sourcePath, applies opts and returns the image encoded as
// format. ctx is only consulted before any work starts; a conversion that
// has begun always runs to completion.
func (e *Engine) Convert(ctx context.Context, sourcePath string, format Format, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	started := time.Now()

	src, err := loadSource(sourcePath)
	if err != nil {
		return nil, err
	}

	modifiers := e.modifiers(src, opts)
	frames := src.frames
	if format != FormatGIF {
		frames = frames[:1]
	}
	out := make([]image.Image, len(frames))
	for i, frame := range frames {
		out[i] = Apply(frame, modifiers...)
	}

	var buf bytes.Buffer
	if err := encode(&buf, format, out, src.delays, opts); err != nil {
		return nil, fmt.Errorf("%w: %s as %s: %w", ErrEncode, sourcePath, format, err)
	}

	e.logger.Debug("Converted image",
		"source", sourcePath,
		"source_kind", src.kind.String(),
		"format", format.String(),
		"frames", len(out),
		"bytes", buf.Len(),
		"elapsed", time.Since(started),
	)

	return buf.Bytes(), nil
}

// ConvertToFile converts sourcePath into destinationPath, taking the output
// format from the destination extension. The file is replaced atomically.
func (e *Engine) ConvertToFile(ctx context.Context, sourcePath, destinationPath string, opts Options) error {
	format, err := FormatFromPath(destinationPath)
	if err != nil {
		return err
	}

	data, err := e.Convert(ctx, sourcePath, format, opts)
	if err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(destinationPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, destinationPath, err)
	}
	return nil
}

func (e *Engine) modifiers(src *source, opts Options) []Modifier {
	var mods []Modifier
	if opts.AutoOrient && src.kind == imgutil.KindJPEG {
		if orientation := exifOrientation(src.raw); orientation != 1 {
			mods = append(mods, Orienter{Orientation: orientation})
		}
	}
	if opts.Rotation != RotateNone {
		mods = append(mods, Rotator{Rotation: opts.Rotation})
	}
	if opts.Width > 0 || opts.Height > 0 {
		mods = append(mods, Resizer{Width: opts.Width, Height: opts.Height, KeepAspectRatio: opts.KeepAspectRatio})
	}
	return mods
}
