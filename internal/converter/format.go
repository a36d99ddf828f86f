package converter

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an output image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
)

// Formats lists every supported output format.
var Formats = []Format{FormatPNG, FormatJPEG, FormatGIF, FormatWEBP}

var inputExtensions = map[string]Format{
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".gif":  FormatGIF,
	".webp": FormatWEBP,
}

// ParseFormat accepts names such as "jpg", "JPEG" or ".webp".
func ParseFormat(name string) (Format, error) {
	key := "." + strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	if f, ok := inputExtensions[key]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return ParseFormat(ext)
}

// IsSupportedInput reports whether path carries a convertible extension.
func IsSupportedInput(path string) bool {
	_, ok := inputExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Valid reports whether f is one of Formats.
func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Ext returns the canonical file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatGIF:
		return "image/gif"
	case FormatWEBP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func (f Format) String() string {
	return string(f)
}
