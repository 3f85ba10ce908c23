//go:build linux && !cgo

package capture

import "github.com/sgrab/sgrab/core"

// The xlib backend binds libX11 through cgo and is unavailable in
// pure-Go builds; the XCB backends cover those.
func newXlibBackend(opts core.Options, log *core.Logger) (Backend, error) {
	return nil, core.NewError(core.ErrUnsupportedPlatform, "xlib backend requires cgo")
}
