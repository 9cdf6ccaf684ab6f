package imagehost

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // PNG thumbnails from players

	"github.com/nfnt/resize"
)

const jpegQuality = 90

// Prepare downscales artwork to fit within maxSize pixels and re-encodes it
// as JPEG. Data that cannot be decoded is returned unchanged, and so is a
// JPEG that already fits.
func Prepare(data []byte, maxSize uint) []byte {
	if len(data) == 0 || maxSize == 0 {
		return data
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	b := img.Bounds()
	fits := uint(b.Dx()) <= maxSize && uint(b.Dy()) <= maxSize //nolint:gosec // bounds are non-negative
	if fits && format == "jpeg" {
		return data
	}
	if !fits {
		img = resize.Thumbnail(maxSize, maxSize, img, resize.Lanczos3)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return data
	}
	return out.Bytes()
}
