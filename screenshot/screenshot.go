package screenshot

import (
	"image"
	"unsafe"

	"github.com/sgrab/sgrab/core"
)

// Pos is the top-left corner a capture originated from.
type Pos struct {
	Left int
	Top  int
}

// Size is the dimensions of a captured area.
type Size struct {
	Width  int
	Height int
}

// Pixel is one RGB sample.
type Pixel struct {
	R uint8
	G uint8
	B uint8
}

// Screenshot is an immutable container for one capture: raw BGRA pixels
// plus the geometry they came from. Projections (RGB, per-pixel, array
// interface) are computed on demand.
type Screenshot struct {
	raw  []byte
	pos  Pos
	size Size
}

// New wraps raw BGRA pixels captured from the given region. The buffer
// must hold exactly width*height*4 bytes.
func New(raw []byte, region Monitor) (*Screenshot, error) {
	return newSized(raw, region, Size{Width: region.Width, Height: region.Height})
}

// NewSized wraps raw pixels whose dimensions differ from the requested
// region, e.g. a scaled Retina capture. The position still reports where
// the capture originated.
func NewSized(raw []byte, region Monitor, size Size) (*Screenshot, error) {
	return newSized(raw, region, size)
}

// FromSize wraps raw pixels with no meaningful position.
func FromSize(raw []byte, width, height int) (*Screenshot, error) {
	return newSized(raw, Monitor{Width: width, Height: height}, Size{Width: width, Height: height})
}

func newSized(raw []byte, region Monitor, size Size) (*Screenshot, error) {
	want := size.Width * size.Height * 4
	if size.Width <= 0 || size.Height <= 0 {
		return nil, core.Errorf(core.ErrInvalidArgument, "screenshot size %dx%d is not positive", size.Width, size.Height)
	}
	if len(raw) != want {
		return nil, core.Errorf(core.ErrInvalidArgument,
			"pixel buffer holds %d bytes, want %d for %dx%d BGRA", len(raw), want, size.Width, size.Height)
	}
	return &Screenshot{
		raw:  raw,
		pos:  Pos{Left: region.Left, Top: region.Top},
		size: size,
	}, nil
}

// Raw returns the underlying BGRA buffer: width*height*4 bytes, row-major,
// no padding between rows. It is a live view, not a copy; cursor
// compositing writes through it before the screenshot is handed out.
func (s *Screenshot) Raw() []byte { return s.raw }

// BGRA returns a copy of the raw BGRA pixels. The alpha channel may or may
// not carry meaningful values depending on the platform.
func (s *Screenshot) BGRA() []byte {
	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out
}

// RGB re-orders the pixels to R,G,B triples, 3 bytes per pixel.
func (s *Screenshot) RGB() []byte {
	out := make([]byte, s.size.Width*s.size.Height*3)
	raw := s.raw
	for i, j := 0, 0; j < len(raw); i, j = i+3, j+4 {
		out[i] = raw[j+2]
		out[i+1] = raw[j+1]
		out[i+2] = raw[j]
	}
	return out
}

// Pixel returns the RGB value at (x, y).
func (s *Screenshot) Pixel(x, y int) (Pixel, error) {
	if x < 0 || y < 0 || x >= s.size.Width || y >= s.size.Height {
		return Pixel{}, core.Errorf(core.ErrInvalidArgument, "pixel location (%d, %d) is out of range", x, y)
	}
	off := (y*s.size.Width + x) * 4
	return Pixel{R: s.raw[off+2], G: s.raw[off+1], B: s.raw[off]}, nil
}

// Pixels returns the capture as rows of RGB samples.
func (s *Screenshot) Pixels() [][]Pixel {
	rows := make([][]Pixel, s.size.Height)
	for y := range rows {
		row := make([]Pixel, s.size.Width)
		base := y * s.size.Width * 4
		for x := range row {
			off := base + x*4
			row[x] = Pixel{R: s.raw[off+2], G: s.raw[off+1], B: s.raw[off]}
		}
		rows[y] = row
	}
	return rows
}

// ArrayInterface describes the raw buffer in the de-facto standard array
// interface protocol of the scientific-computing ecosystem, for zero-copy
// interop.
type ArrayInterface struct {
	Version int
	// Shape is (height, width, 4) in HWC order.
	Shape [3]int
	// Typestr is "|u1": unsigned 8-bit, no byte order.
	Typestr string
	// Data is the address of the first byte and a read-only flag.
	Data ArrayData
}

// ArrayData is the (pointer, read_only) pair of the array interface.
type ArrayData struct {
	Ptr      uintptr
	ReadOnly bool
}

// Array returns the array interface descriptor for the raw BGRA buffer.
// The descriptor is only valid while the screenshot is reachable.
func (s *Screenshot) Array() ArrayInterface {
	return ArrayInterface{
		Version: 3,
		Shape:   [3]int{s.size.Height, s.size.Width, 4},
		Typestr: "|u1",
		Data: ArrayData{
			Ptr:      uintptr(unsafe.Pointer(&s.raw[0])),
			ReadOnly: true,
		},
	}
}

// Image converts the capture to a stdlib image.RGBA for interop with the
// wider imaging ecosystem. The pixels are copied and re-ordered.
func (s *Screenshot) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.size.Width, s.size.Height))
	raw := s.raw
	for i, j := 0, 0; j < len(raw); i, j = i+4, j+4 {
		img.Pix[i] = raw[j+2]
		img.Pix[i+1] = raw[j+1]
		img.Pix[i+2] = raw[j]
		img.Pix[i+3] = raw[j+3]
	}
	return img
}

// Pos returns where the capture originated.
func (s *Screenshot) Pos() Pos { return s.pos }

// Size returns the captured dimensions.
func (s *Screenshot) Size() Size { return s.size }

// Left is a convenience accessor for the left position.
func (s *Screenshot) Left() int { return s.pos.Left }

// Top is a convenience accessor for the top position.
func (s *Screenshot) Top() int { return s.pos.Top }

// Width is a convenience accessor for the width.
func (s *Screenshot) Width() int { return s.size.Width }

// Height is a convenience accessor for the height.
func (s *Screenshot) Height() int { return s.size.Height }
