//go:build darwin

package capture

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation

#include <stdlib.h>
#include <string.h>
#include <CoreGraphics/CoreGraphics.h>

typedef struct {
	int32_t left, top, width, height;
} sgrab_rect;

static int sgrab_displays(uint32_t max, sgrab_rect *out, uint32_t *count) {
	CGDirectDisplayID ids[max];
	if (CGGetActiveDisplayList(max, ids, count) != kCGErrorSuccess) {
		return -1;
	}
	for (uint32_t i = 0; i < *count; i++) {
		CGRect r = CGRectStandardize(CGDisplayBounds(ids[i]));
		double w = r.size.width, h = r.size.height;
		float rot = CGDisplayRotation(ids[i]);
		if (rot == 90.0f || rot == -90.0f) {
			double t = w; w = h; h = t;
		}
		out[i].left = (int32_t)r.origin.x;
		out[i].top = (int32_t)r.origin.y;
		out[i].width = (int32_t)w;
		out[i].height = (int32_t)h;
	}
	return 0;
}

// sgrab_grab reads the requested rectangle into a malloc'd BGRA buffer.
// Every CF object the graphics API hands back is released before
// returning; the caller frees *out.
static int sgrab_grab(int32_t x, int32_t y, int32_t w, int32_t h, uint32_t image_opts,
                      uint8_t **out, size_t *out_len, size_t *out_w, size_t *out_h, size_t *out_stride) {
	CGRect rect = CGRectMake(x, y, w, h);
	CGImageRef image = CGWindowListCreateImage(rect, kCGWindowListOptionOnScreenOnly,
	                                           kCGNullWindowID, image_opts);
	if (image == NULL) {
		return -1;
	}

	// The provider follows the Get rule and must not be released.
	CGDataProviderRef prov = CGImageGetDataProvider(image);
	CFDataRef data = CGDataProviderCopyData(prov);
	if (data == NULL) {
		CGImageRelease(image);
		return -2;
	}

	size_t len = (size_t)CFDataGetLength(data);
	uint8_t *copy = malloc(len);
	if (copy == NULL) {
		CFRelease(data);
		CGImageRelease(image);
		return -3;
	}
	memcpy(copy, CFDataGetBytePtr(data), len);

	*out = copy;
	*out_len = len;
	*out_w = CGImageGetWidth(image);
	*out_h = CGImageGetHeight(image);
	*out_stride = CGImageGetBytesPerRow(image);

	CFRelease(data);
	CGImageRelease(image);
	return 0;
}
*/
import "C"

import (
	"unsafe"

	"github.com/sgrab/sgrab/core"
	"github.com/sgrab/sgrab/screenshot"
)

const (
	// CGWindowImageOption bits: best forces Retina-resolution readback,
	// nominal keeps one point per pixel for speed.
	cgImageBestResolution    = 1 << 3
	cgImageNominalResolution = 1 << 4
)

// quartzBackend captures through CoreGraphics window-list images in BGRA
// 8-bit premultiplied-first layout. The backend itself is stateless
// beyond its options; CoreGraphics owns the display handles.
type quartzBackend struct {
	maxDisplays int
	imageOpts   uint32
	log         *core.Logger
}

func newQuartzBackend(opts core.Options, log *core.Logger) (*quartzBackend, error) {
	b := &quartzBackend{
		maxDisplays: opts.MaxDisplays,
		imageOpts:   cgImageNominalResolution,
		log:         log,
	}
	if opts.ScaledCapture {
		b.imageOpts = cgImageBestResolution
	}
	log.Info("selected backend quartz")
	return b, nil
}

func (b *quartzBackend) Monitors() ([]screenshot.Monitor, error) {
	rects := make([]C.sgrab_rect, b.maxDisplays)
	var count C.uint32_t
	if C.sgrab_displays(C.uint32_t(b.maxDisplays), &rects[0], &count) != 0 {
		return nil, core.NewError(core.ErrNativeCallFailed, "CGGetActiveDisplayList failed").
			WithDetail("call", "CGGetActiveDisplayList")
	}
	if count == 0 {
		return nil, core.NewError(core.ErrDisplayUnavailable, "no active display")
	}

	monitors := make([]screenshot.Monitor, 0, int(count))
	for _, r := range rects[:count] {
		monitors = append(monitors, screenshot.Monitor{
			Left:   int(r.left),
			Top:    int(r.top),
			Width:  int(r.width),
			Height: int(r.height),
		})
	}
	return monitors, nil
}

func (b *quartzBackend) Grab(region screenshot.Monitor) (*screenshot.Screenshot, error) {
	var (
		out       *C.uint8_t
		outLen    C.size_t
		w, h, str C.size_t
	)
	rc := C.sgrab_grab(C.int32_t(region.Left), C.int32_t(region.Top),
		C.int32_t(region.Width), C.int32_t(region.Height), C.uint32_t(b.imageOpts),
		&out, &outLen, &w, &h, &str)
	if rc != 0 {
		return nil, core.Errorf(core.ErrNativeCallFailed, "CGWindowListCreateImage failed").
			WithDetail("call", "CGWindowListCreateImage").
			WithDetail("code", int(rc))
	}
	defer C.free(unsafe.Pointer(out))

	width, height, stride := int(w), int(h), int(str)
	data := C.GoBytes(unsafe.Pointer(out), C.int(outLen))

	// CoreGraphics rounds rows up to an alignment: a width that is not a
	// multiple of 16 comes back with padding pixels, which are dropped
	// so the result is exactly the image width.
	raw := repackRows(data, width, height, stride)
	return screenshot.NewSized(raw, region, screenshot.Size{Width: width, Height: height})
}

// Cursor is a documented no-op: the one-shot window-list readback cannot
// include the cursor image.
func (b *quartzBackend) Cursor() (*screenshot.Screenshot, error) {
	return nil, nil
}

func (b *quartzBackend) Close() error {
	return nil
}
