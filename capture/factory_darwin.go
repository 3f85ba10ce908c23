//go:build darwin

package capture

import "github.com/sgrab/sgrab/core"

func newBackend(opts core.Options, log *core.Logger) (Backend, error) {
	if opts.Backend != core.BackendDefault {
		return nil, core.Errorf(core.ErrInvalidArgument,
			`the only valid backend on this platform is "default", got %q`, opts.Backend)
	}
	return newQuartzBackend(opts, log)
}
