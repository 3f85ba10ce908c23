//go:build linux && cgo

package capture

/*
#cgo LDFLAGS: -lX11 -lXrandr -lXfixes

#include <stdlib.h>
#include <X11/Xlib.h>
#include <X11/Xutil.h>
#include <X11/extensions/Xrandr.h>
#include <X11/extensions/Xfixes.h>

int sgrabErrorHandler(Display *dpy, XErrorEvent *ev);

static XErrorHandler sgrab_install_error_handler(void) {
	return XSetErrorHandler(sgrabErrorHandler);
}

static void sgrab_restore_error_handler(XErrorHandler prev) {
	XSetErrorHandler(prev);
}

// XDestroyImage and AllPlanes are macros, out of cgo's reach.
static void sgrab_destroy_image(XImage *img) {
	XDestroyImage(img);
}

static unsigned long sgrab_all_planes(void) {
	return AllPlanes;
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/sgrab/sgrab/core"
	"github.com/sgrab/sgrab/screenshot"
)

// xErrorRecord is the structured trap of one X protocol error, filled in
// by the process-wide error handler instead of letting Xlib's default
// handler terminate the process.
type xErrorRecord struct {
	Serial      uint64
	ErrorCode   uint8
	RequestCode uint8
	MinorCode   uint8
	ResourceID  uint64
}

// xlibState guards everything process-wide about Xlib: libX11 without
// XInitThreads is not thread-safe and the error handler is global, so all
// Xlib calls are serialised here. The handler is installed by the first
// session and restored by the last one to close, tracked by refs.
var xlibState struct {
	mu      sync.Mutex
	refs    int
	prev    C.XErrorHandler
	lastErr *xErrorRecord
}

func recordXError(rec xErrorRecord) {
	// Called from the handler while an Xlib call holds xlibState.mu.
	xlibState.lastErr = &rec
}

func takeXError() *xErrorRecord {
	rec := xlibState.lastErr
	xlibState.lastErr = nil
	return rec
}

// xlibBackend is the legacy Xlib capture path, retained for environments
// without working XCB libraries.
type xlibBackend struct {
	dpy       *C.Display
	root      C.Window
	hasCursor bool
	log       *core.Logger
}

func newXlibBackend(opts core.Options, log *core.Logger) (*xlibBackend, error) {
	display, err := opts.DisplayName()
	if err != nil {
		return nil, err
	}

	xlibState.mu.Lock()
	defer xlibState.mu.Unlock()

	if xlibState.refs == 0 {
		xlibState.prev = C.sgrab_install_error_handler()
	}
	xlibState.refs++

	cdisplay := C.CString(display)
	defer C.free(unsafe.Pointer(cdisplay))

	dpy := C.XOpenDisplay(cdisplay)
	if dpy == nil {
		releaseErrorHandlerLocked()
		return nil, core.Errorf(core.ErrDisplayUnavailable, "unable to open display %q", display)
	}
	takeXError()

	b := &xlibBackend{dpy: dpy, root: C.XDefaultRootWindow(dpy), log: log}

	var ev, er C.int
	if C.XRRQueryExtension(dpy, &ev, &er) == 0 {
		C.XCloseDisplay(dpy)
		releaseErrorHandlerLocked()
		return nil, core.NewError(core.ErrNativeCallFailed, "Xrandr not enabled").
			WithDetail("call", "XRRQueryExtension")
	}

	if opts.WithCursor {
		if C.XFixesQueryExtension(dpy, &ev, &er) != 0 {
			b.hasCursor = true
		} else {
			log.Warn("xlib: XFixes not available, cursor capture disabled")
		}
	}

	log.Info("selected backend xlib")
	return b, nil
}

func releaseErrorHandlerLocked() {
	xlibState.refs--
	if xlibState.refs == 0 {
		C.sgrab_restore_error_handler(xlibState.prev)
		xlibState.prev = nil
		xlibState.lastErr = nil
	}
}

func (b *xlibBackend) Monitors() ([]screenshot.Monitor, error) {
	xlibState.mu.Lock()
	defer xlibState.mu.Unlock()
	takeXError()

	var major, minor C.int
	C.XRRQueryVersion(b.dpy, &major, &minor)

	// XRRGetScreenResourcesCurrent skips the hardware re-probe and is
	// dramatically faster, but needs RandR 1.3.
	var res *C.XRRScreenResources
	if major > 1 || (major == 1 && minor >= 3) {
		res = C.XRRGetScreenResourcesCurrent(b.dpy, b.root)
	} else {
		res = C.XRRGetScreenResources(b.dpy, b.root)
	}
	if res == nil {
		return nil, b.xlibError("XRRGetScreenResources")
	}
	defer C.XRRFreeScreenResources(res)

	crtcs := unsafe.Slice(res.crtcs, int(res.ncrtc))
	monitors := make([]screenshot.Monitor, 0, len(crtcs))
	for _, crtc := range crtcs {
		info := C.XRRGetCrtcInfo(b.dpy, res, crtc)
		if info == nil {
			return nil, b.xlibError("XRRGetCrtcInfo")
		}
		if info.noutput > 0 {
			monitors = append(monitors, screenshot.Monitor{
				Left:   int(info.x),
				Top:    int(info.y),
				Width:  int(info.width),
				Height: int(info.height),
			})
		}
		C.XRRFreeCrtcInfo(info)
	}
	if rec := takeXError(); rec != nil {
		return nil, b.xlibErrorFrom("XRRGetCrtcInfo", rec)
	}
	return monitors, nil
}

func (b *xlibBackend) Grab(region screenshot.Monitor) (*screenshot.Screenshot, error) {
	xlibState.mu.Lock()
	defer xlibState.mu.Unlock()
	takeXError()

	img := C.XGetImage(b.dpy, C.Drawable(b.root),
		C.int(region.Left), C.int(region.Top), C.uint(region.Width), C.uint(region.Height),
		C.sgrab_all_planes(), C.ZPixmap)
	if img == nil {
		return nil, b.xlibError("XGetImage")
	}
	defer C.sgrab_destroy_image(img)

	if int(img.bits_per_pixel) != 32 {
		return nil, core.Errorf(core.ErrUnsupportedDepth,
			"bits per pixel not (yet?) implemented: %d", int(img.bits_per_pixel))
	}

	stride := int(img.bytes_per_line)
	data := C.GoBytes(unsafe.Pointer(img.data), C.int(stride*region.Height))
	raw := repackRows(data, region.Width, region.Height, stride)
	raw = orderBGRA(raw, uint32(img.red_mask), uint32(img.green_mask), uint32(img.blue_mask))

	return screenshot.New(raw, region)
}

// Cursor reads the XFixes cursor image: one unsigned long per pixel, ARGB
// in the low 32 bits, straight alpha.
func (b *xlibBackend) Cursor() (*screenshot.Screenshot, error) {
	if !b.hasCursor {
		return nil, nil
	}

	xlibState.mu.Lock()
	defer xlibState.mu.Unlock()
	takeXError()

	img := C.XFixesGetCursorImage(b.dpy)
	if img == nil {
		return nil, b.xlibError("XFixesGetCursorImage")
	}
	defer C.XFree(unsafe.Pointer(img))

	w, h := int(img.width), int(img.height)
	if w == 0 || h == 0 {
		return nil, nil
	}

	pixels := unsafe.Slice(img.pixels, w*h)
	data := make([]byte, w*h*4)
	for i, v := range pixels {
		px := uint32(v)
		data[i*4] = byte(px)
		data[i*4+1] = byte(px >> 8)
		data[i*4+2] = byte(px >> 16)
		data[i*4+3] = byte(px >> 24)
	}

	region := screenshot.Monitor{
		Left:   int(img.x) - int(img.xhot),
		Top:    int(img.y) - int(img.yhot),
		Width:  w,
		Height: h,
	}
	return screenshot.New(data, region)
}

func (b *xlibBackend) Close() error {
	xlibState.mu.Lock()
	defer xlibState.mu.Unlock()

	if b.dpy != nil {
		C.XCloseDisplay(b.dpy)
		b.dpy = nil
		releaseErrorHandlerLocked()
	}
	return nil
}

// xlibError builds a native-call-failed error for call, attaching the
// trapped X error details when the handler fired.
func (b *xlibBackend) xlibError(call string) error {
	return b.xlibErrorFrom(call, takeXError())
}

func (b *xlibBackend) xlibErrorFrom(call string, rec *xErrorRecord) error {
	err := core.Errorf(core.ErrNativeCallFailed, "%s failed", call).WithDetail("call", call)
	if rec != nil {
		var buf [256]C.char
		C.XGetErrorText(b.dpy, C.int(rec.ErrorCode), &buf[0], C.int(len(buf)))
		err.WithDetail("error", C.GoString(&buf[0])).
			WithDetail("error_code", rec.ErrorCode).
			WithDetail("request_code", rec.RequestCode).
			WithDetail("minor_code", rec.MinorCode).
			WithDetail("serial", rec.Serial).
			WithDetail("resourceid", rec.ResourceID)
	}
	return err
}

// orderBGRA rebuilds the buffer as B,G,R,A using the image's channel
// masks. The usual little-endian 0xFF0000/0xFF00/0xFF layout is already
// BGRA and returned untouched.
func orderBGRA(data []byte, rmask, gmask, bmask uint32) []byte {
	if rmask == 0xFF0000 && gmask == 0xFF00 && bmask == 0xFF {
		return data
	}
	rs, gs, bs := maskShift(rmask), maskShift(gmask), maskShift(bmask)
	for i := 0; i+3 < len(data); i += 4 {
		px := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		data[i] = byte((px & bmask) >> bs)
		data[i+1] = byte((px & gmask) >> gs)
		data[i+2] = byte((px & rmask) >> rs)
		data[i+3] = opaque
	}
	return data
}

func maskShift(mask uint32) uint {
	if mask == 0 {
		return 0
	}
	var s uint
	for mask&1 == 0 {
		mask >>= 1
		s++
	}
	return s
}
