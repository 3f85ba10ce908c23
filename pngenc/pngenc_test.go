package pngenc

import (
	"bytes"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgrab/sgrab/core"
)

// decodeRGB decodes a PNG and flattens it back to R,G,B triples.
func decodeRGB(t *testing.T, data []byte) (rgb []byte, w, h int) {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	bounds := img.Bounds()
	w, h = bounds.Dx(), bounds.Dy()
	rgb = make([]byte, 0, w*h*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rgb = append(rgb, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	return rgb, w, h
}

func bgraToRGB(bgra []byte) []byte {
	rgb := make([]byte, 0, len(bgra)/4*3)
	for i := 0; i < len(bgra); i += 4 {
		rgb = append(rgb, bgra[i+2], bgra[i+1], bgra[i])
	}
	return rgb
}

func TestEncode_BlueGreen(t *testing.T) {
	// A blue pixel and a green pixel, 2x1, level 6.
	bgra := []byte{0xFF, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF}

	data, err := Encode(bgra, 2, 1, 6)
	require.NoError(t, err)

	rgb, w, h := decodeRGB(t, data)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, rgb)
}

func TestEncode_RoundTripAllLevels(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const w, h = 37, 23 // deliberately not 16-aligned
	bgra := make([]byte, w*h*4)
	rng.Read(bgra)

	for level := 0; level <= 9; level++ {
		data, err := Encode(bgra, w, h, level)
		require.NoError(t, err, "level %d", level)

		rgb, gotW, gotH := decodeRGB(t, data)
		assert.Equal(t, w, gotW, "level %d", level)
		assert.Equal(t, h, gotH, "level %d", level)
		assert.Equal(t, bgraToRGB(bgra), rgb, "level %d", level)
	}
}

func TestEncode_Signature(t *testing.T) {
	data, err := Encode(make([]byte, 4), 1, 1, 6)
	require.NoError(t, err)

	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte{137, 80, 78, 71, 13, 10, 26, 10}, data[:8])
	// IHDR follows immediately: length 13, then the type.
	assert.Equal(t, []byte{0, 0, 0, 13, 'I', 'H', 'D', 'R'}, data[8:16])
	// The stream ends with an empty IEND chunk.
	assert.Equal(t, []byte("IEND"), data[len(data)-8:len(data)-4])
}

func TestEncode_InvalidLevel(t *testing.T) {
	bgra := make([]byte, 4)

	for _, level := range []int{-1, 10, 99} {
		_, err := Encode(bgra, 1, 1, level)
		assert.Equal(t, core.ErrInvalidArgument, core.KindOf(err), "level %d", level)
	}
}

func TestEncode_BadGeometry(t *testing.T) {
	_, err := Encode(make([]byte, 4), 0, 1, 6)
	assert.Equal(t, core.ErrInvalidArgument, core.KindOf(err))

	_, err = Encode(make([]byte, 5), 1, 1, 6)
	assert.Equal(t, core.ErrInvalidArgument, core.KindOf(err))
}

func TestEncodeTo(t *testing.T) {
	var buf bytes.Buffer
	bgra := make([]byte, 3*2*4)

	require.NoError(t, EncodeTo(&buf, bgra, 3, 2, 0))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	bgra := []byte{0x01, 0x02, 0x03, 0xFF}

	require.NoError(t, WriteFile(path, bgra, 1, 1, 9))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	rgb, _, _ := decodeRGB(t, data)
	assert.Equal(t, []byte{0x03, 0x02, 0x01}, rgb)
}

func TestWriteFile_BadPath(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "shot.png"), make([]byte, 4), 1, 1, 6)
	assert.Equal(t, core.ErrEncoder, core.KindOf(err))
}
