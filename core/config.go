package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackendName selects a platform backend implementation. Only Linux offers
// more than one; other platforms accept BackendDefault alone.
type BackendName string

const (
	BackendDefault      BackendName = "default"
	BackendXShmGetImage BackendName = "xshmgetimage"
	BackendXGetImage    BackendName = "xgetimage"
	BackendXlib         BackendName = "xlib"
)

// Backends lists every recognized backend selector.
var Backends = []BackendName{BackendDefault, BackendXShmGetImage, BackendXGetImage, BackendXlib}

const (
	// DefaultCompressionLevel is the deflate level used for PNG output.
	DefaultCompressionLevel = 6
	// DefaultMaxDisplays bounds display enumeration on macOS.
	DefaultMaxDisplays = 32
)

// Options configures a capture session. The zero value is not usable;
// start from DefaultOptions.
type Options struct {
	// CompressionLevel is the PNG compression strength, 0..9.
	CompressionLevel int `yaml:"level"`

	// Display is the X server display name, e.g. ":0.0" (Linux only).
	// When empty, the DISPLAY environment variable is used.
	Display string `yaml:"display"`

	// MaxDisplays caps physical display enumeration (macOS only).
	MaxDisplays int `yaml:"max_displays"`

	// WithCursor composites the mouse cursor into captures on platforms
	// that support it; elsewhere it is a silent no-op.
	WithCursor bool `yaml:"with_cursor"`

	// ScaledCapture forces Retina-resolution readback (macOS only).
	// The default captures at nominal resolution for speed.
	ScaledCapture bool `yaml:"scaled_capture"`

	// Backend selects the Linux backend implementation.
	Backend BackendName `yaml:"backend"`

	// Output is the default filename template for the save path.
	Output string `yaml:"output"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
}

// DefaultOptions returns the options used when the caller specifies nothing.
func DefaultOptions() Options {
	return Options{
		CompressionLevel: DefaultCompressionLevel,
		MaxDisplays:      DefaultMaxDisplays,
		Backend:          BackendDefault,
		Output:           "monitor-{mon}.png",
	}
}

// Validate checks option values that no backend should have to re-check.
func (o Options) Validate() error {
	if o.CompressionLevel < 0 || o.CompressionLevel > 9 {
		return Errorf(ErrInvalidArgument, "compression level %d out of range 0..9", o.CompressionLevel)
	}
	if o.MaxDisplays <= 0 {
		return Errorf(ErrInvalidArgument, "max displays must be positive, got %d", o.MaxDisplays)
	}
	if !o.Backend.known() {
		return Errorf(ErrInvalidArgument, "unknown backend %q (valid: %s)", o.Backend, backendList())
	}
	return nil
}

// DisplayName resolves the X display to connect to: the explicit option if
// set, otherwise the DISPLAY environment variable.
func (o Options) DisplayName() (string, error) {
	display := o.Display
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		return "", NewError(ErrDisplayUnavailable, "$DISPLAY not set")
	}
	if !strings.Contains(display, ":") {
		return "", Errorf(ErrDisplayUnavailable, "bad display value: %q", display)
	}
	return display, nil
}

// LoadOptions reads a capture profile from a YAML file, applying defaults
// for anything the file leaves out. An empty path returns the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse profile: %w", err)
	}
	if opts.Backend == "" {
		opts.Backend = BackendDefault
	}
	if opts.Output == "" {
		opts.Output = "monitor-{mon}.png"
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (b BackendName) known() bool {
	for _, name := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

func backendList() string {
	names := make([]string, len(Backends))
	for i, b := range Backends {
		names[i] = string(b)
	}
	return strings.Join(names, "|")
}
