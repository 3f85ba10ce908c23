// Package pngenc encodes raw BGRA pixel buffers into PNG byte streams
// without any imaging dependency: an 8-byte signature, an IHDR for 8-bit
// RGB truecolour, one deflate-compressed IDAT, and an IEND.
package pngenc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"

	"github.com/sgrab/sgrab/core"
)

var signature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// Encode converts a BGRA buffer of width*height pixels into a complete PNG
// byte stream compressed at the given deflate level (0..9).
func Encode(bgra []byte, width, height, level int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, bgra, width, height, level); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo streams the PNG to w instead of returning bytes.
func EncodeTo(w io.Writer, bgra []byte, width, height, level int) error {
	if level < 0 || level > 9 {
		return core.Errorf(core.ErrInvalidArgument, "compression level %d out of range 0..9", level)
	}
	if width <= 0 || height <= 0 {
		return core.Errorf(core.ErrInvalidArgument, "image size %dx%d is not positive", width, height)
	}
	if len(bgra) != width*height*4 {
		return core.Errorf(core.ErrInvalidArgument,
			"pixel buffer holds %d bytes, want %d for %dx%d BGRA", len(bgra), width*height*4, width, height)
	}

	if _, err := w.Write(signature); err != nil {
		return core.WrapError(core.ErrEncoder, err, "write signature")
	}

	// IHDR: width, height, bit depth 8, colour type 2 (RGB), deflate,
	// adaptive filtering, no interlace.
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(width))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(height))
	ihdr[8] = 8
	ihdr[9] = 2
	if err := writeChunk(w, "IHDR", ihdr); err != nil {
		return err
	}

	idat, err := deflateScanlines(bgra, width, height, level)
	if err != nil {
		return err
	}
	if err := writeChunk(w, "IDAT", idat); err != nil {
		return err
	}

	return writeChunk(w, "IEND", nil)
}

// WriteFile writes the PNG to the named file, forcing the data to disk
// before returning.
func WriteFile(path string, bgra []byte, width, height, level int) error {
	f, err := os.Create(path)
	if err != nil {
		return core.WrapError(core.ErrEncoder, err, fmt.Sprintf("create %s", path))
	}
	defer f.Close()

	if err := EncodeTo(f, bgra, width, height, level); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return core.WrapError(core.ErrEncoder, err, fmt.Sprintf("sync %s", path))
	}
	if err := f.Close(); err != nil {
		return core.WrapError(core.ErrEncoder, err, fmt.Sprintf("close %s", path))
	}
	return nil
}

// deflateScanlines converts BGRA to RGB in a single sequential pass,
// prefixing each row with the None filter byte, and compresses the whole
// concatenation.
func deflateScanlines(bgra []byte, width, height, level int) ([]byte, error) {
	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, level)
	if err != nil {
		return nil, core.WrapError(core.ErrEncoder, err, "init deflate")
	}

	row := make([]byte, 1+width*3)
	for y := 0; y < height; y++ {
		src := bgra[y*width*4:]
		for x := 0; x < width; x++ {
			row[1+x*3] = src[x*4+2]
			row[2+x*3] = src[x*4+1]
			row[3+x*3] = src[x*4]
		}
		if _, err := zw.Write(row); err != nil {
			zw.Close()
			return nil, core.WrapError(core.ErrEncoder, err, "deflate scanline")
		}
	}
	if err := zw.Close(); err != nil {
		return nil, core.WrapError(core.ErrEncoder, err, "finish deflate")
	}
	return out.Bytes(), nil
}

func writeChunk(w io.Writer, name string, data []byte) error {
	var head [8]byte
	binary.BigEndian.PutUint32(head[0:], uint32(len(data)))
	copy(head[4:], name)

	crc := crc32.NewIEEE()
	crc.Write(head[4:])
	crc.Write(data)
	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], crc.Sum32())

	for _, part := range [][]byte{head[:], data, tail[:]} {
		if len(part) == 0 {
			continue
		}
		if _, err := w.Write(part); err != nil {
			return core.WrapError(core.ErrEncoder, err, fmt.Sprintf("write %s chunk", name))
		}
	}
	return nil
}
