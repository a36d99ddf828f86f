package imgutil

import (
	"errors"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// Kind identifies a supported image type.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindGIF
	KindWEBP
)

// HeaderSize is the number of leading bytes needed to identify a file.
const HeaderSize = 262

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindGIF:
		return "gif"
	case KindWEBP:
		return "webp"
	default:
		return "unknown"
	}
}

// DetectHeader inspects the leading bytes of a file for known image signatures.
func DetectHeader(header []byte) (Kind, error) {
	if len(header) < 8 {
		return KindUnknown, errors.New("header too short")
	}

	kind, err := filetype.Image(header)
	if err != nil {
		// filetype reports non-image content as an error; that is just unknown here.
		return KindUnknown, nil
	}

	switch kind.Extension {
	case "jpg":
		return KindJPEG, nil
	case "png":
		return KindPNG, nil
	case "gif":
		return KindGIF, nil
	case "webp":
		return KindWEBP, nil
	default:
		return KindUnknown, nil
	}
}

// SniffFile reads the header of a file to determine its type.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	return SniffReader(f)
}

// SniffReader reads up to HeaderSize bytes from r and determines its type.
func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return KindUnknown, err
	}

	return DetectHeader(header[:n])
}
