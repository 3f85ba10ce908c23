//go:build linux

package capture

import (
	"github.com/sgrab/sgrab/core"
	"github.com/sgrab/sgrab/screenshot"
)

// xgetImageBackend captures through plain XCB GetImage requests. It works
// on any X connection but is slower than the shared-memory path; the
// xshmgetimage backend falls back to it automatically.
type xgetImageBackend struct {
	*xcbBase
}

func newXGetImageBackend(opts core.Options, log *core.Logger) (*xgetImageBackend, error) {
	base, err := newXCBBase(opts, log)
	if err != nil {
		return nil, err
	}
	log.Info("selected backend xgetimage")
	return &xgetImageBackend{xcbBase: base}, nil
}

func (b *xgetImageBackend) Grab(region screenshot.Monitor) (*screenshot.Screenshot, error) {
	return b.grabGetImage(region)
}
