package thumbnail

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

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestResize(t *testing.T) {
	t.Run("scales down preserving aspect ratio", func(t *testing.T) {
		original := encodePNG(t, 80, 40)

		out, err := Resize(original, 20)
		require.NoError(t, err)

		img, format, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 20, img.Bounds().Dx())
		assert.Equal(t, 10, img.Bounds().Dy())
	})

	t.Run("keeps the source format", func(t *testing.T) {
		original := encodeJPEG(t, 60, 60)

		out, err := Resize(original, 30)
		require.NoError(t, err)

		_, format, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})

	t.Run("output differs from the input", func(t *testing.T) {
		original := encodePNG(t, 100, 100)

		out, err := Resize(original, 50)
		require.NoError(t, err)
		assert.NotEqual(t, original, out)
	})

	t.Run("very wide images never collapse to zero height", func(t *testing.T) {
		original := encodePNG(t, 400, 2)

		out, err := Resize(original, 100)
		require.NoError(t, err)

		img, _, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, img.Bounds().Dy(), 1)
	})

	t.Run("corrupt data", func(t *testing.T) {
		_, err := Resize([]byte("definitely not an image"), 100)
		assert.Error(t, err)
	})

	t.Run("invalid width", func(t *testing.T) {
		_, err := Resize(encodePNG(t, 10, 10), 0)
		assert.Error(t, err)
	})
}
