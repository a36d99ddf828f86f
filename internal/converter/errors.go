package converter

import "errors"

var (
	// ErrUnsupportedFormat marks a destination format outside Formats.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrDecode marks a source that cannot be read or is not a supported image.
	ErrDecode = errors.New("decode failed")
	// ErrEncode marks a codec failure while producing the output.
	ErrEncode = errors.New("encode failed")
	// ErrIO marks a failure writing the destination file.
	ErrIO = errors.New("write failed")
	// ErrCancelled is returned when the context was done before work began.
	ErrCancelled = errors.New("operation cancelled")
)
