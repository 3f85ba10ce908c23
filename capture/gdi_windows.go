//go:build windows

package capture

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/sgrab/sgrab/core"
	"github.com/sgrab/sgrab/screenshot"
)

const (
	srccopy      = 0x00CC0020
	captureblt   = 0x40000000
	dibRGBColors = 0
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")
	shcore = windows.NewLazySystemDLL("shcore.dll")

	procGetWindowDC             = user32.NewProc("GetWindowDC")
	procReleaseDC               = user32.NewProc("ReleaseDC")
	procEnumDisplayMonitors     = user32.NewProc("EnumDisplayMonitors")
	procSetProcessDPIAware      = user32.NewProc("SetProcessDPIAware")
	procGetCursorInfo           = user32.NewProc("GetCursorInfo")
	procGetIconInfo             = user32.NewProc("GetIconInfo")
	procDrawIcon                = user32.NewProc("DrawIcon")
	procCreateCompatibleDC      = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap  = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject            = gdi32.NewProc("SelectObject")
	procDeleteObject            = gdi32.NewProc("DeleteObject")
	procDeleteDC                = gdi32.NewProc("DeleteDC")
	procBitBlt                  = gdi32.NewProc("BitBlt")
	procGetDIBits               = gdi32.NewProc("GetDIBits")
	procSetProcessDpiAwareness  = shcore.NewProc("SetProcessDpiAwareness")
	procGetScaleFactorForDevice = shcore.NewProc("GetScaleFactorForDevice")
)

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	Colors [3]uint32
}

type rect struct {
	Left, Top, Right, Bottom int32
}

type point struct {
	X, Y int32
}

type cursorInfo struct {
	CbSize      uint32
	Flags       uint32
	HCursor     uintptr
	PtScreenPos point
}

type iconInfo struct {
	FIcon    int32
	XHotspot uint32
	YHotspot uint32
	HbmMask  uintptr
	HbmColor uintptr
}

// threadHandles holds the GDI objects of one OS thread. Device contexts
// are not sharable across threads, so concurrent grabs from distinct
// threads each get their own set, created on first access.
type threadHandles struct {
	srcdc  uintptr
	memdc  uintptr
	bmp    uintptr
	width  int
	height int
	data   []byte
	bmi    bitmapInfo
}

// gdiBackend captures via Gdi32.BitBlt into a 32 bpp top-down DIB.
type gdiBackend struct {
	log *core.Logger

	// handles maps OS thread id to that thread's device contexts.
	// Entries are created on first access and destroyed only in Close.
	handles sync.Map
}

func newGDIBackend(opts core.Options, log *core.Logger) (*gdiBackend, error) {
	b := &gdiBackend{log: log}
	b.setDPIAware()
	log.Info("selected backend gdi")
	return b, nil
}

// setDPIAware announces process-wide DPI awareness so Hi-DPI monitors are
// captured at full resolution. Silent no-op on Windows versions without
// the calls.
func (b *gdiBackend) setDPIAware() {
	if procSetProcessDpiAwareness.Find() == nil {
		// 2 = PROCESS_PER_MONITOR_DPI_AWARE (Windows 8.1+).
		procSetProcessDpiAwareness.Call(2)
		return
	}
	if procSetProcessDPIAware.Find() == nil {
		procSetProcessDPIAware.Call()
	}
}

func (b *gdiBackend) Monitors() ([]screenshot.Monitor, error) {
	var monitors []screenshot.Monitor

	callback := syscall.NewCallback(func(hmon, hdc uintptr, r *rect, lparam uintptr) uintptr {
		monitors = append(monitors, screenshot.Monitor{
			Left:   int(r.Left),
			Top:    int(r.Top),
			Width:  int(r.Right - r.Left),
			Height: int(r.Bottom - r.Top),
		})
		return 1
	})

	ret, _, _ := procEnumDisplayMonitors.Call(0, 0, callback, 0)
	if ret == 0 {
		return nil, core.NewError(core.ErrNativeCallFailed, "EnumDisplayMonitors failed").
			WithDetail("call", "EnumDisplayMonitors")
	}
	return monitors, nil
}

func (b *gdiBackend) Grab(region screenshot.Monitor) (*screenshot.Screenshot, error) {
	h, err := b.threadDC()
	if err != nil {
		return nil, err
	}
	if err := b.resize(h, region.Width, region.Height); err != nil {
		return nil, err
	}

	ret, _, _ := procBitBlt.Call(h.memdc, 0, 0, uintptr(region.Width), uintptr(region.Height),
		h.srcdc, uintptr(region.Left), uintptr(region.Top), srccopy|captureblt)
	if ret == 0 {
		return nil, b.lastError("BitBlt")
	}

	if err := b.readBits(h, region.Height); err != nil {
		return nil, err
	}

	raw := make([]byte, len(h.data))
	copy(raw, h.data)
	return screenshot.New(raw, region)
}

// Cursor reads the current cursor as a 32x32 BGRA image positioned at its
// hot spot. Monochrome cursors report zero alpha everywhere, so alpha is
// rebuilt from the colour bits.
func (b *gdiBackend) Cursor() (*screenshot.Screenshot, error) {
	h, err := b.threadDC()
	if err != nil {
		return nil, err
	}

	ci := cursorInfo{CbSize: uint32(unsafe.Sizeof(cursorInfo{}))}
	if ret, _, _ := procGetCursorInfo.Call(uintptr(unsafe.Pointer(&ci))); ret == 0 {
		return nil, b.lastError("GetCursorInfo")
	}
	if ci.HCursor == 0 {
		return nil, nil
	}

	const side = 32
	if err := b.resize(h, side, side); err != nil {
		return nil, err
	}

	if ret, _, _ := procDrawIcon.Call(h.memdc, 0, 0, ci.HCursor); ret == 0 {
		return nil, b.lastError("DrawIcon")
	}
	if err := b.readBits(h, side); err != nil {
		return nil, err
	}

	var ii iconInfo
	if ret, _, _ := procGetIconInfo.Call(ci.HCursor, uintptr(unsafe.Pointer(&ii))); ret == 0 {
		return nil, b.lastError("GetIconInfo")
	}
	if ii.HbmMask != 0 {
		procDeleteObject.Call(ii.HbmMask)
	}
	if ii.HbmColor != 0 {
		procDeleteObject.Call(ii.HbmColor)
	}

	data := make([]byte, len(h.data))
	copy(data, h.data)
	if ii.HbmColor == 0 {
		// Monochrome cursor: DrawIcon leaves alpha at zero, so every
		// non-black pixel becomes opaque.
		for i := 3; i < len(data); i += 4 {
			if data[i-3] == 0 && data[i-2] == 0 && data[i-1] == 0 {
				data[i] = 0
			} else {
				data[i] = opaque
			}
		}
	}

	ratio := b.scaleFactor()
	region := screenshot.Monitor{
		Left:   int(float64(ci.PtScreenPos.X)*ratio) - int(ii.XHotspot),
		Top:    int(float64(ci.PtScreenPos.Y)*ratio) - int(ii.YHotspot),
		Width:  side,
		Height: side,
	}
	return screenshot.New(data, region)
}

func (b *gdiBackend) Close() error {
	b.handles.Range(func(key, value any) bool {
		h := value.(*threadHandles)
		if h.bmp != 0 {
			procDeleteObject.Call(h.bmp)
		}
		if h.memdc != 0 {
			procDeleteDC.Call(h.memdc)
		}
		if h.srcdc != 0 {
			procReleaseDC.Call(0, h.srcdc)
		}
		b.handles.Delete(key)
		return true
	})
	return nil
}

// threadDC returns the calling thread's device contexts, creating them on
// first access from a previously-unseen thread.
func (b *gdiBackend) threadDC() (*threadHandles, error) {
	tid := windows.GetCurrentThreadId()
	if v, ok := b.handles.Load(tid); ok {
		return v.(*threadHandles), nil
	}

	srcdc, _, _ := procGetWindowDC.Call(0)
	if srcdc == 0 {
		return nil, b.lastError("GetWindowDC")
	}
	memdc, _, _ := procCreateCompatibleDC.Call(srcdc)
	if memdc == 0 {
		procReleaseDC.Call(0, srcdc)
		return nil, b.lastError("CreateCompatibleDC")
	}

	h := &threadHandles{srcdc: srcdc, memdc: memdc}
	h.bmi.Header.BiSize = uint32(unsafe.Sizeof(bitmapInfoHeader{}))
	h.bmi.Header.BiPlanes = 1
	h.bmi.Header.BiBitCount = 32
	h.bmi.Header.BiCompression = 0 // BI_RGB

	b.handles.Store(tid, h)
	b.log.Debug("gdi: created device contexts for thread %d", tid)
	return h, nil
}

// resize re-creates the thread's bitmap and pixel buffer when the
// requested size changes. A negative height selects a top-down DIB so
// rows come out in natural order.
func (b *gdiBackend) resize(h *threadHandles, width, height int) error {
	if h.width == width && h.height == height {
		return nil
	}

	h.bmi.Header.BiWidth = int32(width)
	h.bmi.Header.BiHeight = -int32(height)
	h.data = make([]byte, width*height*4)

	if h.bmp != 0 {
		procDeleteObject.Call(h.bmp)
		h.bmp = 0
	}
	bmp, _, _ := procCreateCompatibleBitmap.Call(h.srcdc, uintptr(width), uintptr(height))
	if bmp == 0 {
		return b.lastError("CreateCompatibleBitmap")
	}
	h.bmp = bmp
	procSelectObject.Call(h.memdc, bmp)

	h.width, h.height = width, height
	return nil
}

func (b *gdiBackend) readBits(h *threadHandles, height int) error {
	lines, _, _ := procGetDIBits.Call(h.memdc, h.bmp, 0, uintptr(height),
		uintptr(unsafe.Pointer(&h.data[0])), uintptr(unsafe.Pointer(&h.bmi)), dibRGBColors)
	if int(lines) != height {
		return b.lastError("GetDIBits")
	}
	return nil
}

func (b *gdiBackend) scaleFactor() float64 {
	if procGetScaleFactorForDevice.Find() != nil {
		return 1
	}
	factor, _, _ := procGetScaleFactorForDevice.Call(0)
	if factor == 0 {
		return 1
	}
	return float64(factor) / 100
}

func (b *gdiBackend) lastError(call string) error {
	err := core.Errorf(core.ErrNativeCallFailed, "%s failed", call).WithDetail("call", call)
	if errno, ok := windows.GetLastError().(syscall.Errno); ok {
		err.WithDetail("code", uint32(errno))
	}
	return err
}
