package capture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrab/sgrab/screenshot"
)

func solidShot(t *testing.T, m screenshot.Monitor, b, g, r byte) *screenshot.Screenshot {
	t.Helper()
	raw := make([]byte, m.Width*m.Height*4)
	for i := 0; i < len(raw); i += 4 {
		raw[i], raw[i+1], raw[i+2], raw[i+3] = b, g, r, 0xFF
	}
	shot, err := screenshot.New(raw, m)
	require.NoError(t, err)
	return shot
}

func cursorShot(t *testing.T, m screenshot.Monitor, b, g, r, a byte) *screenshot.Screenshot {
	t.Helper()
	raw := make([]byte, m.Width*m.Height*4)
	for i := 0; i < len(raw); i += 4 {
		raw[i], raw[i+1], raw[i+2], raw[i+3] = b, g, r, a
	}
	shot, err := screenshot.New(raw, m)
	require.NoError(t, err)
	return shot
}

func TestMergeCursor_Opaque(t *testing.T) {
	shot := solidShot(t, screenshot.Monitor{Width: 4, Height: 4}, 0, 0, 0)
	cursor := cursorShot(t, screenshot.Monitor{Left: 1, Top: 1, Width: 2, Height: 2}, 0, 0, 0xFF, 0xFF)

	mergeCursor(shot, cursor)

	px, err := shot.Pixel(1, 1)
	require.NoError(t, err)
	require.Equal(t, screenshot.Pixel{R: 0xFF}, px)

	px, err = shot.Pixel(0, 0)
	require.NoError(t, err)
	require.Equal(t, screenshot.Pixel{}, px)

	px, err = shot.Pixel(3, 3)
	require.NoError(t, err)
	require.Equal(t, screenshot.Pixel{}, px)
}

func TestMergeCursor_TransparentPixelsSkipped(t *testing.T) {
	shot := solidShot(t, screenshot.Monitor{Width: 2, Height: 2}, 0x10, 0x20, 0x30)
	cursor := cursorShot(t, screenshot.Monitor{Width: 2, Height: 2}, 0xFF, 0xFF, 0xFF, 0x00)

	mergeCursor(shot, cursor)

	px, err := shot.Pixel(0, 0)
	require.NoError(t, err)
	require.Equal(t, screenshot.Pixel{R: 0x30, G: 0x20, B: 0x10}, px)
}

func TestMergeCursor_AlphaBlend(t *testing.T) {
	// Black screen, white cursor at ~50% alpha.
	shot := solidShot(t, screenshot.Monitor{Width: 1, Height: 1}, 0, 0, 0)
	cursor := cursorShot(t, screenshot.Monitor{Width: 1, Height: 1}, 0xFF, 0xFF, 0xFF, 128)

	mergeCursor(shot, cursor)

	px, err := shot.Pixel(0, 0)
	require.NoError(t, err)
	require.InDelta(t, 128, int(px.R), 1)
	require.InDelta(t, 128, int(px.G), 1)
	require.InDelta(t, 128, int(px.B), 1)
}

func TestMergeCursor_ClippedAtEdges(t *testing.T) {
	// Cursor hot spot pushes the image partly outside the capture; only
	// the overlapping quadrant lands.
	shot := solidShot(t, screenshot.Monitor{Width: 3, Height: 3}, 0, 0, 0)
	cursor := cursorShot(t, screenshot.Monitor{Left: -1, Top: -1, Width: 2, Height: 2}, 0, 0xFF, 0, 0xFF)

	mergeCursor(shot, cursor)

	px, err := shot.Pixel(0, 0)
	require.NoError(t, err)
	require.Equal(t, screenshot.Pixel{G: 0xFF}, px)

	px, err = shot.Pixel(1, 1)
	require.NoError(t, err)
	require.Equal(t, screenshot.Pixel{}, px)
}

func TestMergeCursor_NoOverlap(t *testing.T) {
	shot := solidShot(t, screenshot.Monitor{Width: 2, Height: 2}, 1, 2, 3)
	cursor := cursorShot(t, screenshot.Monitor{Left: 10, Top: 10, Width: 2, Height: 2}, 0xFF, 0xFF, 0xFF, 0xFF)

	before := shot.BGRA()
	mergeCursor(shot, cursor)

	require.Equal(t, before, shot.Raw())
}

func TestMergeCursor_OffsetCapture(t *testing.T) {
	// Capture not at the origin: cursor coordinates are global.
	shot := solidShot(t, screenshot.Monitor{Left: 100, Top: 200, Width: 2, Height: 2}, 0, 0, 0)
	cursor := cursorShot(t, screenshot.Monitor{Left: 101, Top: 200, Width: 1, Height: 1}, 0xFF, 0, 0, 0xFF)

	mergeCursor(shot, cursor)

	px, err := shot.Pixel(1, 0)
	require.NoError(t, err)
	require.Equal(t, screenshot.Pixel{B: 0xFF}, px)
}
