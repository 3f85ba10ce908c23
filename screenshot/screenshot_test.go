package screenshot

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgrab/sgrab/core"
)

// twoPixels is a blue pixel followed by a green pixel in BGRA order.
var twoPixels = []byte{
	0xFF, 0x00, 0x00, 0xFF,
	0x00, 0xFF, 0x00, 0xFF,
}

func TestNew_BufferLength(t *testing.T) {
	region := Monitor{Left: 10, Top: 20, Width: 2, Height: 1}

	s, err := New(twoPixels, region)
	require.NoError(t, err)

	assert.Equal(t, Pos{Left: 10, Top: 20}, s.Pos())
	assert.Equal(t, Size{Width: 2, Height: 1}, s.Size())
	assert.Len(t, s.Raw(), 4*region.Width*region.Height)
}

func TestNew_BadBuffer(t *testing.T) {
	_, err := New(twoPixels[:7], Monitor{Width: 2, Height: 1})
	assert.Equal(t, core.ErrInvalidArgument, core.KindOf(err))

	_, err = New(nil, Monitor{Width: 0, Height: 1})
	assert.Equal(t, core.ErrInvalidArgument, core.KindOf(err))
}

func TestRGB(t *testing.T) {
	s, err := FromSize(twoPixels, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, s.RGB())
}

func TestRGB_IndexProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	raw := make([]byte, 16*9*4)
	rng.Read(raw)

	s, err := FromSize(raw, 16, 9)
	require.NoError(t, err)

	rgb := s.RGB()
	require.Len(t, rgb, 16*9*3)
	for i := 0; i < 16*9; i++ {
		assert.Equal(t, raw[4*i+2], rgb[3*i], "R at pixel %d", i)
		assert.Equal(t, raw[4*i+1], rgb[3*i+1], "G at pixel %d", i)
		assert.Equal(t, raw[4*i], rgb[3*i+2], "B at pixel %d", i)
	}
}

func TestBGRA_IsCopy(t *testing.T) {
	s, err := FromSize(append([]byte(nil), twoPixels...), 2, 1)
	require.NoError(t, err)

	bgra := s.BGRA()
	bgra[0] = 0x42

	assert.NotEqual(t, bgra[0], s.Raw()[0])
}

func TestPixel(t *testing.T) {
	s, err := FromSize(twoPixels, 2, 1)
	require.NoError(t, err)

	p, err := s.Pixel(0, 0)
	require.NoError(t, err)
	assert.Equal(t, Pixel{R: 0, G: 0, B: 0xFF}, p)

	p, err = s.Pixel(1, 0)
	require.NoError(t, err)
	assert.Equal(t, Pixel{R: 0, G: 0xFF, B: 0}, p)
}

func TestPixel_OutOfRange(t *testing.T) {
	s, err := FromSize(twoPixels, 2, 1)
	require.NoError(t, err)

	for _, coord := range [][2]int{{2, 0}, {0, 1}, {-1, 0}, {0, -1}} {
		_, err := s.Pixel(coord[0], coord[1])
		assert.Equal(t, core.ErrInvalidArgument, core.KindOf(err), "coord %v", coord)
	}
}

func TestPixels_RowGrouping(t *testing.T) {
	raw := make([]byte, 3*2*4)
	for i := range raw {
		raw[i] = byte(i)
	}
	s, err := FromSize(raw, 3, 2)
	require.NoError(t, err)

	rows := s.Pixels()
	require.Len(t, rows, 2)
	require.Len(t, rows[0], 3)

	// Second pixel of the second row starts at byte (1*3+1)*4 = 16.
	assert.Equal(t, Pixel{R: raw[18], G: raw[17], B: raw[16]}, rows[1][1])
}

func TestArray(t *testing.T) {
	s, err := FromSize(twoPixels, 2, 1)
	require.NoError(t, err)

	desc := s.Array()

	assert.Equal(t, 3, desc.Version)
	assert.Equal(t, [3]int{1, 2, 4}, desc.Shape)
	assert.Equal(t, "|u1", desc.Typestr)
	assert.True(t, desc.Data.ReadOnly)
	assert.NotZero(t, desc.Data.Ptr)
}

func TestImage(t *testing.T) {
	s, err := FromSize(twoPixels, 2, 1)
	require.NoError(t, err)

	img := s.Image()

	assert.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())
	assert.Equal(t, color.RGBA{B: 0xFF, A: 0xFF}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{G: 0xFF, A: 0xFF}, img.RGBAAt(1, 0))
}

func TestAccessors(t *testing.T) {
	s, err := New(twoPixels, Monitor{Left: -5, Top: 7, Width: 2, Height: 1})
	require.NoError(t, err)

	assert.Equal(t, -5, s.Left())
	assert.Equal(t, 7, s.Top())
	assert.Equal(t, 2, s.Width())
	assert.Equal(t, 1, s.Height())
}

func TestNewSized_ScaledCapture(t *testing.T) {
	// A Retina grab can return more pixels than the requested region.
	raw := make([]byte, 4*2*4)
	s, err := NewSized(raw, Monitor{Left: 3, Top: 4, Width: 2, Height: 1}, Size{Width: 4, Height: 2})
	require.NoError(t, err)

	assert.Equal(t, Pos{Left: 3, Top: 4}, s.Pos())
	assert.Equal(t, Size{Width: 4, Height: 2}, s.Size())
}
