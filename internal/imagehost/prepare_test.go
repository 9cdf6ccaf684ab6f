package imagehost

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255}) //nolint:gosec // test pattern
		}
	}
	return img
}

func TestPrepare_DownscalesLargePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(1000, 800)))

	out := Prepare(buf.Bytes(), 512)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, img.Bounds().Dx(), 512)
	assert.LessOrEqual(t, img.Bounds().Dy(), 512)
	assert.Equal(t, 512, img.Bounds().Dx(), "aspect ratio kept, long side at max")
}

func TestPrepare_SmallJPEGUnchanged(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(100, 100), nil))

	out := Prepare(buf.Bytes(), 512)
	assert.Equal(t, buf.Bytes(), out)
}

func TestPrepare_SmallPNGReencoded(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(64, 64)))

	out := Prepare(buf.Bytes(), 512)
	_, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestPrepare_UndecodableUnchanged(t *testing.T) {
	data := []byte("not an image")
	assert.Equal(t, data, Prepare(data, 512))
	assert.Nil(t, Prepare(nil, 512))
}
