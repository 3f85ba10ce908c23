package capture

import (
	"iter"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sgrab/sgrab/core"
	"github.com/sgrab/sgrab/pngenc"
	"github.com/sgrab/sgrab/screenshot"
)

// DefaultDateFormat renders {date} values in filename templates.
const DefaultDateFormat = "2006-01-02_15-04-05"

// SelectAll is the monitor selector for one combined capture of the
// virtual monitor; SelectEach iterates every physical monitor. Positive
// values select that physical monitor.
const (
	SelectAll  = -1
	SelectEach = 0
)

// ExpandTemplate instantiates a filename template for one monitor. The
// recognised placeholders are {mon}, {top}, {left}, {width}, {height},
// and {date}.
func ExpandTemplate(output string, mon int, m screenshot.Monitor, date func() string) string {
	r := strings.NewReplacer(
		"{mon}", strconv.Itoa(mon),
		"{top}", strconv.Itoa(m.Top),
		"{left}", strconv.Itoa(m.Left),
		"{width}", strconv.Itoa(m.Width),
		"{height}", strconv.Itoa(m.Height),
	)
	out := r.Replace(output)
	if strings.Contains(out, "{date}") {
		out = strings.ReplaceAll(out, "{date}", date())
	}
	return out
}

// Save captures the selected monitors and writes one PNG file each,
// yielding the resolved paths as a lazy, single-pass sequence. The
// selector follows SelectAll/SelectEach semantics. The callback, when
// non-nil, is notified with each resolved path before that file is
// written; its outcome is not consulted. A failure on one monitor does
// not abort the remaining monitors unless the error is terminal.
func (s *Session) Save(mon int, output string, callback func(path string)) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		targets, err := s.saveTargets(mon)
		if err != nil {
			yield("", err)
			return
		}

		for _, target := range targets {
			fname := ExpandTemplate(output, target.index, target.monitor, s.dateFormatter())
			if callback != nil {
				callback(fname)
			}

			err := s.saveOne(fname, target.monitor)
			if err != nil {
				if !yield("", err) || core.KindOf(err).Terminal() {
					return
				}
				continue
			}
			if !yield(fname, nil) {
				return
			}
		}
	}
}

// SaveBytes captures the selected monitors and yields in-memory PNG
// buffers instead of writing files.
func (s *Session) SaveBytes(mon int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		targets, err := s.saveTargets(mon)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, target := range targets {
			shot, err := s.Grab(target.monitor)
			if err != nil {
				if !yield(nil, err) || core.KindOf(err).Terminal() {
					return
				}
				continue
			}
			data, err := pngenc.Encode(shot.Raw(), shot.Width(), shot.Height(), s.opts.CompressionLevel)
			if !yield(data, err) {
				return
			}
		}
	}
}

// Shot saves a screenshot of the first physical monitor using the
// session's output template and returns the created path.
func (s *Session) Shot() (string, error) {
	for path, err := range s.Save(1, s.opts.Output, nil) {
		return path, err
	}
	return "", core.NewError(core.ErrDisplayUnavailable, "no monitor found")
}

type saveTarget struct {
	index   int
	monitor screenshot.Monitor
}

func (s *Session) saveTargets(mon int) ([]saveTarget, error) {
	monitors, err := s.Monitors()
	if err != nil {
		return nil, err
	}
	if len(monitors) == 0 {
		return nil, core.NewError(core.ErrDisplayUnavailable, "no monitor found")
	}

	if mon == SelectEach {
		targets := make([]saveTarget, 0, len(monitors)-1)
		for idx, m := range monitors[1:] {
			targets = append(targets, saveTarget{index: idx + 1, monitor: m})
		}
		return targets, nil
	}

	idx := mon
	if mon == SelectAll {
		idx = 0
	}
	if idx < 0 || idx >= len(monitors) {
		return nil, core.Errorf(core.ErrInvalidArgument, "monitor %d does not exist", mon)
	}
	return []saveTarget{{index: idx, monitor: monitors[idx]}}, nil
}

func (s *Session) saveOne(fname string, m screenshot.Monitor) error {
	shot, err := s.Grab(m)
	if err != nil {
		return err
	}
	if err := pngenc.WriteFile(fname, shot.Raw(), shot.Width(), shot.Height(), s.opts.CompressionLevel); err != nil {
		s.log.Error("session %s: save %s: %v", s.id, filepath.Base(fname), err)
		return err
	}
	s.log.Debug("session %s: saved %s", s.id, fname)
	return nil
}

func (s *Session) dateFormatter() func() string {
	if s.DateFormat != nil {
		return s.DateFormat
	}
	return func() string { return time.Now().Format(DefaultDateFormat) }
}
