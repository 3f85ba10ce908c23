//go:build linux

package capture

import "github.com/sgrab/sgrab/core"

// newBackend selects the Linux backend. The default is the MIT-SHM fast
// path with its automatic XGetImage fallback; the only reason to force
// xgetimage is knowing up front that SHM cannot work, and xlib remains
// for environments without working XCB libraries.
func newBackend(opts core.Options, log *core.Logger) (Backend, error) {
	switch opts.Backend {
	case core.BackendDefault, core.BackendXShmGetImage:
		return newXSHMBackend(opts, log)
	case core.BackendXGetImage:
		return newXGetImageBackend(opts, log)
	case core.BackendXlib:
		return newXlibBackend(opts, log)
	default:
		return nil, core.Errorf(core.ErrInvalidArgument, "backend %q not (yet?) implemented", opts.Backend)
	}
}
