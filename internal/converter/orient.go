package converter

import (
	"bytes"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// exifOrientation returns the EXIF Orientation tag of data, or 1 (upright)
// when the image has no usable EXIF block.
func exifOrientation(data []byte) int {
	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(bytes.NewReader(data), nil, true)
	if err != nil {
		return 1
	}

	for _, tag := range tags {
		if tag.TagName != "Orientation" || strings.Contains(tag.IfdPath, "IFD1") {
			continue
		}
		switch v := tag.Value.(type) {
		case []uint16:
			if len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
				return int(v[0])
			}
		}
	}

	return 1
}
