//go:build linux && cgo

package capture

/*
#include <X11/Xlib.h>
*/
import "C"

// sgrabErrorHandler traps X protocol errors into a structured record
// instead of letting the default handler terminate the process. Returning
// zero tells Xlib the error was consumed.
//
//export sgrabErrorHandler
func sgrabErrorHandler(dpy *C.Display, ev *C.XErrorEvent) C.int {
	recordXError(xErrorRecord{
		Serial:      uint64(ev.serial),
		ErrorCode:   uint8(ev.error_code),
		RequestCode: uint8(ev.request_code),
		MinorCode:   uint8(ev.minor_code),
		ResourceID:  uint64(ev.resourceid),
	})
	return 0
}
