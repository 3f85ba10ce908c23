//go:build !linux && !darwin && !windows

package capture

import (
	"runtime"

	"github.com/sgrab/sgrab/core"
)

func newBackend(opts core.Options, log *core.Logger) (Backend, error) {
	return nil, core.Errorf(core.ErrUnsupportedPlatform, "system %q not (yet?) implemented", runtime.GOOS)
}
