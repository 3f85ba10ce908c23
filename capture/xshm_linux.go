//go:build linux

package capture

import (
	sysvshm "github.com/gen2brain/shm"
	"github.com/jezek/xgb/shm"
	"github.com/jezek/xgb/xproto"

	"github.com/sgrab/sgrab/core"
	"github.com/sgrab/sgrab/screenshot"
)

// shmStatus tracks whether the MIT-SHM fast path is usable.
type shmStatus int

const (
	// shmUnknown: the segment attached, but no ShmGetImage has succeeded
	// yet, so a runtime failure may still demote to XGetImage.
	shmUnknown shmStatus = iota
	// shmAvailable: ShmGetImage has succeeded at least once.
	shmAvailable
	// shmUnavailable: SHM is unusable; every grab goes through XGetImage.
	shmUnavailable
)

// xshmBackend captures through MIT-SHM XShmGetImage: a shared-memory
// segment sized for the whole root is attached once and reused across
// captures. When SHM is unavailable at construction or fails at runtime
// before its first successful capture, the backend transparently falls
// back to XGetImage and records why. A failure after SHM has succeeded
// once is returned to the caller; no fallback happens then.
type xshmBackend struct {
	*xcbBase

	seg     shm.Seg
	shmID   int
	buf     []byte
	bufSize int

	status         shmStatus
	fallbackReason string
}

func newXSHMBackend(opts core.Options, log *core.Logger) (*xshmBackend, error) {
	base, err := newXCBBase(opts, log)
	if err != nil {
		return nil, err
	}

	b := &xshmBackend{xcbBase: base, shmID: -1}
	b.status = b.setupSHM()
	switch b.status {
	case shmUnavailable:
		log.Info("selected backend xshmgetimage (falling back to XGetImage: %s)", b.fallbackReason)
	default:
		log.Info("selected backend xshmgetimage")
	}
	return b, nil
}

// setupSHM probes the MIT-SHM extension and attaches a segment large
// enough for the whole root window, so monitor resizes below the root
// size need no reallocation.
func (b *xshmBackend) setupSHM() shmStatus {
	if err := shm.Init(b.conn); err != nil {
		b.reportFallback("MIT-SHM extension not present", err)
		return shmUnavailable
	}
	ver, err := shm.QueryVersion(b.conn).Reply()
	if err != nil {
		b.reportFallback("MIT-SHM version query failed", err)
		return shmUnavailable
	}
	b.log.Debug("xshm: MIT-SHM %d.%d", ver.MajorVersion, ver.MinorVersion)

	b.bufSize = int(b.screen.WidthInPixels) * int(b.screen.HeightInPixels) * 4

	shmID, err := sysvshm.Get(sysvshm.IPC_PRIVATE, b.bufSize, sysvshm.IPC_CREAT|0o600)
	if err != nil {
		b.reportFallback("shmget failed", err)
		return shmUnavailable
	}
	b.shmID = shmID

	buf, err := sysvshm.At(shmID, 0, 0)
	if err != nil {
		b.reportFallback("shmat failed", err)
		b.shutdownSHM()
		return shmUnavailable
	}
	b.buf = buf

	seg, err := shm.NewSegId(b.conn)
	if err != nil {
		b.reportFallback("cannot allocate SHM segment id", err)
		b.shutdownSHM()
		return shmUnavailable
	}
	b.seg = seg

	// This is what fails on remote connections: the server cannot map a
	// segment that only exists on the client machine.
	if err := shm.AttachChecked(b.conn, seg, uint32(shmID), false).Check(); err != nil {
		b.reportFallback("cannot attach MIT-SHM segment", err)
		b.shutdownSHM()
		return shmUnavailable
	}

	return shmUnknown
}

func (b *xshmBackend) reportFallback(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	b.fallbackReason = msg
	b.log.Debug("xshm: %s", msg)
}

// FallbackReason returns why SHM captures are disabled, or "" while the
// fast path is in use.
func (b *xshmBackend) FallbackReason() string { return b.fallbackReason }

func (b *xshmBackend) Grab(region screenshot.Monitor) (*screenshot.Screenshot, error) {
	if b.status == shmUnavailable {
		return b.grabGetImage(region)
	}

	shot, err := b.grabShmGetImage(region)
	if err == nil {
		b.status = shmAvailable
		return shot, nil
	}
	if b.status != shmUnknown || !core.IsKind(err, core.ErrNativeCallFailed) {
		// SHM has worked before (or the failure is not a protocol
		// error), so the request itself is at fault. Re-raise.
		return nil, err
	}

	// SHM failed before ever succeeding. The same request through
	// XGetImage decides whether SHM is unusable or the request was bad
	// (out-of-bounds, capture-restricted server).
	shot, getImageErr := b.grabGetImage(region)
	if getImageErr != nil {
		return nil, getImageErr
	}
	b.reportFallback("MIT-SHM GetImage failed", err)
	b.status = shmUnavailable
	b.shutdownSHM()
	return shot, nil
}

func (b *xshmBackend) grabShmGetImage(region screenshot.Monitor) (*screenshot.Screenshot, error) {
	want := region.Width * region.Height * 4
	if want > b.bufSize {
		return nil, core.Errorf(core.ErrInvalidArgument,
			"capture size %dx%d exceeds the shared buffer; reopen the session after a screen resize",
			region.Width, region.Height)
	}

	reply, err := shm.GetImage(b.conn, b.drawable,
		int16(region.Left), int16(region.Top), uint16(region.Width), uint16(region.Height),
		allPlanes, xproto.ImageFormatZPixmap, b.seg, 0).Reply()
	if err != nil {
		return nil, xcbError("shm.GetImage", err)
	}
	if reply.Depth != b.depth || reply.Visual != b.visual {
		return nil, core.Errorf(core.ErrUnsupportedDepth,
			"server returned depth %d visual 0x%x, expected %d 0x%x",
			reply.Depth, reply.Visual, b.depth, b.visual)
	}

	raw := make([]byte, want)
	copy(raw, b.buf)
	return screenshot.New(raw, region)
}

// shutdownSHM releases the segment on the server and client sides. Safe
// on partial initialisation and called from failure paths.
func (b *xshmBackend) shutdownSHM() {
	if b.seg != 0 {
		shm.Detach(b.conn, b.seg)
		b.seg = 0
	}
	if b.buf != nil {
		sysvshm.Dt(b.buf)
		b.buf = nil
	}
	if b.shmID >= 0 {
		sysvshm.Rm(b.shmID)
		b.shmID = -1
	}
}

func (b *xshmBackend) Close() error {
	b.shutdownSHM()
	return b.xcbBase.Close()
}
