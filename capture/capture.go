// Package capture opens screen-capture sessions. A Session wraps the
// platform backend selected at construction time and exposes monitor
// enumeration, pixel grabs, and the save orchestrator; all native-call
// failures surface as core.CaptureError values.
package capture

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sgrab/sgrab/core"
	"github.com/sgrab/sgrab/screenshot"
)

// Backend is the per-platform capture implementation. Implementations are
// not safe for concurrent use; the Session serialises access.
type Backend interface {
	// Monitors enumerates physical monitors in OS-reported order, without
	// the virtual entry.
	Monitors() ([]screenshot.Monitor, error)

	// Grab reads the pixels of an arbitrary rectangle. Regions outside
	// every physical monitor are still accepted; the OS fills them.
	Grab(region screenshot.Monitor) (*screenshot.Screenshot, error)

	// Cursor returns the current cursor image with straight alpha, or
	// (nil, nil) when the platform cannot report one.
	Cursor() (*screenshot.Screenshot, error)

	// Close releases every native handle. Called at most once.
	Close() error
}

// Session is one capture session: the facade over a platform backend. It
// owns the monitor list and the native handles for its lifetime. All
// methods are safe for concurrent use; grabs within one session are
// strictly serialised, while independent sessions capture concurrently.
type Session struct {
	id   string
	opts core.Options
	log  *core.Logger

	mu       sync.Mutex
	backend  Backend
	monitors []screenshot.Monitor
	closed   bool

	// DateFormat overrides the {date} template formatter when set.
	// It must be set before the first Save call.
	DateFormat func() string
}

// NewSession opens a capture session with the given options. The logger
// may be nil.
func NewSession(opts core.Options, logger *core.Logger) (*Session, error) {
	if logger == nil {
		logger = core.NewLogger(opts.Debug)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	backend, err := newBackend(opts, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("session %s: backend ready", id)
	return &Session{id: id, opts: opts, log: logger, backend: backend}, nil
}

// Open opens a session with default options.
func Open() (*Session, error) {
	return NewSession(core.DefaultOptions(), nil)
}

// ID returns the session identifier used in log lines.
func (s *Session) ID() string { return s.id }

// Options returns the options the session was opened with.
func (s *Session) Options() core.Options { return s.opts }

// Monitors returns the ordered monitor list: the virtual "all monitors"
// bounding box at index 0, physical monitors at 1..N. The list is computed
// once per session.
func (s *Session) Monitors() ([]screenshot.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed()
	}
	if s.monitors == nil {
		physical, err := s.backend.Monitors()
		if err != nil {
			return nil, err
		}
		s.monitors = screenshot.WithVirtual(physical)
	}
	out := make([]screenshot.Monitor, len(s.monitors))
	copy(out, s.monitors)
	return out, nil
}

// PrimaryMonitor returns the first physical monitor, or an error when no
// display is attached.
func (s *Session) PrimaryMonitor() (screenshot.Monitor, error) {
	monitors, err := s.Monitors()
	if err != nil {
		return screenshot.Monitor{}, err
	}
	if len(monitors) < 2 {
		return screenshot.Monitor{}, core.NewError(core.ErrDisplayUnavailable, "no monitor found")
	}
	return monitors[1], nil
}

// Grab reads the pixels of the given region. The region may be any
// rectangle, not necessarily a reported monitor; a zero-area region fails
// with invalid-argument. When the session was opened with WithCursor, the
// cursor image is composited in on platforms that report one.
func (s *Session) Grab(region screenshot.Monitor) (*screenshot.Screenshot, error) {
	if region.Empty() {
		return nil, core.Errorf(core.ErrInvalidArgument, "region has zero or negative size: %s", region)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosed()
	}

	shot, err := s.backend.Grab(region)
	if err != nil {
		return nil, err
	}
	if s.opts.WithCursor {
		cursor, err := s.backend.Cursor()
		if err != nil {
			s.log.Warn("session %s: cursor capture failed: %v", s.id, err)
		} else if cursor != nil {
			mergeCursor(shot, cursor)
		}
	}
	return shot, nil
}

// GrabBox grabs the (left, top, right, bottom) bounding box.
func (s *Session) GrabBox(left, top, right, bottom int) (*screenshot.Screenshot, error) {
	return s.Grab(screenshot.FromBox(left, top, right, bottom))
}

// Close releases every native handle in reverse acquisition order. It is
// safe to call multiple times; further grabs fail with session-closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	err := s.backend.Close()
	if err != nil {
		s.log.Warn("session %s: close: %v", s.id, err)
	}
	s.log.Debug("session %s: closed", s.id)
	return err
}

func errClosed() error {
	return core.NewError(core.ErrSessionClosed, "session is closed")
}
