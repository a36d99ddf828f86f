package converter

import (
	"fmt"
)

// Rotation is a clockwise quarter-turn count expressed in degrees.
type Rotation int

const (
	RotateNone Rotation = 0
	Rotate90   Rotation = 90
	Rotate180  Rotation = 180
	Rotate270  Rotation = 270
)

// RotateRight returns the rotation a further 90 degrees clockwise.
func (r Rotation) RotateRight() Rotation {
	return Rotation((int(r.normalize()) + 90) % 360)
}

// RotateLeft returns the rotation 90 degrees counter-clockwise.
func (r Rotation) RotateLeft() Rotation {
	return Rotation((int(r.normalize()) + 270) % 360)
}

// Valid reports whether r is one of the four quarter turns.
func (r Rotation) Valid() bool {
	switch r {
	case RotateNone, Rotate90, Rotate180, Rotate270:
		return true
	default:
		return false
	}
}

func (r Rotation) normalize() Rotation {
	return Rotation(((int(r) % 360) + 360) % 360)
}

// ParseRotation accepts any multiple of 90 degrees, negative values rotating
// counter-clockwise, and returns the equivalent clockwise rotation.
func ParseRotation(degrees int) (Rotation, error) {
	if degrees%90 != 0 {
		return RotateNone, fmt.Errorf("rotation must be a multiple of 90 degrees, got %d", degrees)
	}
	return Rotation(degrees).normalize(), nil
}

// Options is the parameter set for one conversion. It is copied by value into
// every queued item, so later edits never reach work that is already queued.
type Options struct {
	JPEGQuality       int      `yaml:"jpeg_quality"       json:"jpeg_quality"`
	WebPQuality       int      `yaml:"webp_quality"       json:"webp_quality"`
	WebPLossless      bool     `yaml:"webp_lossless"      json:"webp_lossless"`
	PNGCompression    int      `yaml:"png_compression"    json:"png_compression"`
	Width             int      `yaml:"width"              json:"width"`
	Height            int      `yaml:"height"             json:"height"`
	KeepAspectRatio   bool     `yaml:"keep_aspect_ratio"  json:"keep_aspect_ratio"`
	Rotation          Rotation `yaml:"rotation"           json:"rotation"`
	LoopCount         int      `yaml:"loop_count"         json:"loop_count"` // 0 loops forever
	AutoOrient        bool     `yaml:"auto_orient"        json:"auto_orient"`
	PreserveStructure bool     `yaml:"preserve_structure" json:"preserve_structure"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		JPEGQuality:     75,
		WebPQuality:     75,
		PNGCompression:  6,
		KeepAspectRatio: true,
		Rotation:        RotateNone,
		LoopCount:       0,
	}
}

// Validate checks the format-specific ranges. The engine never calls it;
// callers that accept options from users do.
func (o Options) Validate() error {
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", o.JPEGQuality)
	}
	if o.WebPQuality < 1 || o.WebPQuality > 100 {
		return fmt.Errorf("webp quality must be between 1 and 100, got %d", o.WebPQuality)
	}
	if o.PNGCompression < 0 || o.PNGCompression > 9 {
		return fmt.Errorf("png compression must be between 0 and 9, got %d", o.PNGCompression)
	}
	if o.Width < 0 || o.Height < 0 {
		return fmt.Errorf("dimensions must not be negative, got %dx%d", o.Width, o.Height)
	}
	if !o.Rotation.Valid() {
		return fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", o.Rotation)
	}
	if o.LoopCount < 0 {
		return fmt.Errorf("loop count must not be negative, got %d", o.LoopCount)
	}
	return nil
}
