//go:build linux

package capture

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xproto"

	"github.com/sgrab/sgrab/core"
	"github.com/sgrab/sgrab/screenshot"
)

const allPlanes = 0xFFFFFFFF

// xcbBase holds the XCB connection state shared by the xgetimage and
// xshmgetimage backends: the connection, root geometry, and the RandR and
// XFixes extension state.
type xcbBase struct {
	conn      *xgb.Conn
	screen    *xproto.ScreenInfo
	drawable  xproto.Drawable
	depth     byte
	visual    xproto.Visualid
	randrVer  [2]uint32
	hasCursor bool
	log       *core.Logger
}

func newXCBBase(opts core.Options, log *core.Logger) (*xcbBase, error) {
	display, err := opts.DisplayName()
	if err != nil {
		return nil, err
	}

	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, core.WrapError(core.ErrDisplayUnavailable, err, fmt.Sprintf("unable to open display %q", display))
	}

	setup := xproto.Setup(conn)
	scr := setup.DefaultScreen(conn)
	b := &xcbBase{
		conn:     conn,
		screen:   scr,
		drawable: xproto.Drawable(scr.Root),
		depth:    scr.RootDepth,
		visual:   scr.RootVisual,
		log:      log,
	}

	// The capture path assumes 32 bits per pixel for the root depth.
	var bpp byte
	for _, f := range setup.PixmapFormats {
		if f.Depth == scr.RootDepth {
			bpp = f.BitsPerPixel
			break
		}
	}
	if bpp != 32 {
		conn.Close()
		return nil, core.Errorf(core.ErrUnsupportedDepth, "bits per pixel not (yet?) implemented: %d", bpp)
	}

	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, core.WrapError(core.ErrNativeCallFailed, err, "RandR extension unavailable").
			WithDetail("call", "randr.Init")
	}
	ver, err := randr.QueryVersion(conn, 1, 4).Reply()
	if err != nil {
		conn.Close()
		return nil, xcbError("randr.QueryVersion", err)
	}
	b.randrVer = [2]uint32{ver.MajorVersion, ver.MinorVersion}

	if opts.WithCursor {
		if err := b.initXFixes(); err != nil {
			log.Warn("xcb: cursor capture disabled: %v", err)
		} else {
			b.hasCursor = true
		}
	}
	return b, nil
}

func (b *xcbBase) initXFixes() error {
	if err := xfixes.Init(b.conn); err != nil {
		return err
	}
	// The server rejects XFixes requests until the client announces the
	// version it speaks.
	if _, err := xfixes.QueryVersion(b.conn, 4, 0).Reply(); err != nil {
		return err
	}
	return nil
}

// Monitors enumerates RandR CRTCs. CRTCs driving no output are skipped;
// CRTC geometry already reflects rotation, so width and height come out
// as displayed.
func (b *xcbBase) Monitors() ([]screenshot.Monitor, error) {
	crtcs, configTS, err := b.screenResources()
	if err != nil {
		return nil, err
	}

	monitors := make([]screenshot.Monitor, 0, len(crtcs))
	for _, crtc := range crtcs {
		info, err := randr.GetCrtcInfo(b.conn, crtc, configTS).Reply()
		if err != nil {
			return nil, xcbError("randr.GetCrtcInfo", err)
		}
		if info.NumOutputs == 0 {
			continue
		}
		monitors = append(monitors, screenshot.Monitor{
			Left:   int(info.X),
			Top:    int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		})
	}
	return monitors, nil
}

// screenResources prefers GetScreenResourcesCurrent, which avoids a
// hardware re-probe and is dramatically faster, when the server speaks
// RandR 1.3.
func (b *xcbBase) screenResources() ([]randr.Crtc, xproto.Timestamp, error) {
	if b.randrVer[0] > 1 || (b.randrVer[0] == 1 && b.randrVer[1] >= 3) {
		res, err := randr.GetScreenResourcesCurrent(b.conn, b.screen.Root).Reply()
		if err != nil {
			return nil, 0, xcbError("randr.GetScreenResourcesCurrent", err)
		}
		return res.Crtcs, res.ConfigTimestamp, nil
	}
	res, err := randr.GetScreenResources(b.conn, b.screen.Root).Reply()
	if err != nil {
		return nil, 0, xcbError("randr.GetScreenResources", err)
	}
	return res.Crtcs, res.ConfigTimestamp, nil
}

func (b *xcbBase) grabGetImage(region screenshot.Monitor) (*screenshot.Screenshot, error) {
	reply, err := xproto.GetImage(b.conn, xproto.ImageFormatZPixmap, b.drawable,
		int16(region.Left), int16(region.Top), uint16(region.Width), uint16(region.Height), allPlanes).Reply()
	if err != nil {
		return nil, xcbError("xproto.GetImage", err)
	}
	if reply.Depth != b.depth {
		return nil, core.Errorf(core.ErrUnsupportedDepth,
			"server returned depth %d, expected %d", reply.Depth, b.depth)
	}

	want := region.Width * region.Height * 4
	if len(reply.Data) < want {
		return nil, core.Errorf(core.ErrNativeCallFailed,
			"short image reply: got %d bytes, want %d", len(reply.Data), want).
			WithDetail("call", "xproto.GetImage")
	}
	raw := make([]byte, want)
	copy(raw, reply.Data)
	return screenshot.New(raw, region)
}

// Cursor reads the XFixes cursor image. Pixels arrive as packed 32-bit
// ARGB words with straight alpha.
func (b *xcbBase) Cursor() (*screenshot.Screenshot, error) {
	if !b.hasCursor {
		return nil, nil
	}

	reply, err := xfixes.GetCursorImage(b.conn).Reply()
	if err != nil {
		return nil, xcbError("xfixes.GetCursorImage", err)
	}
	w, h := int(reply.Width), int(reply.Height)
	if w == 0 || h == 0 {
		return nil, nil
	}

	data := make([]byte, w*h*4)
	for i, px := range reply.CursorImage {
		data[i*4] = byte(px)
		data[i*4+1] = byte(px >> 8)
		data[i*4+2] = byte(px >> 16)
		data[i*4+3] = byte(px >> 24)
	}
	region := screenshot.Monitor{
		Left:   int(reply.X) - int(reply.Xhot),
		Top:    int(reply.Y) - int(reply.Yhot),
		Width:  w,
		Height: h,
	}
	return screenshot.New(data, region)
}

func (b *xcbBase) Close() error {
	b.conn.Close()
	return nil
}

func xcbError(call string, err error) error {
	return core.WrapError(core.ErrNativeCallFailed, err, fmt.Sprintf("%s failed", call)).
		WithDetail("call", call)
}
