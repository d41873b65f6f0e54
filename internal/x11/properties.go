package x11

import (
	"image"

	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
)

// OpaqueOpacity is the _NET_WM_WINDOW_OPACITY value meaning fully opaque.
const OpaqueOpacity = 0xffffffff

// WindowName returns the best available title for a window, preferring the
// EWMH name over the ICCCM one. Missing names come back empty, not as an
// error; a window without a title is normal.
func (c *Connection) WindowName(win xproto.Window) string {
	if name, err := ewmh.WmNameGet(c.XUtil, win); err == nil && name != "" {
		return name
	}
	if name, err := icccm.WmNameGet(c.XUtil, win); err == nil {
		return name
	}
	return ""
}

// WindowClass returns the WM_CLASS instance and class strings.
func (c *Connection) WindowClass(win xproto.Window) (instance, class string) {
	wc, err := icccm.WmClassGet(c.XUtil, win)
	if err != nil {
		return "", ""
	}
	return wc.Instance, wc.Class
}

// FrameExtents reads _NET_FRAME_EXTENTS, the window manager's declaration of
// how much of the window is decoration.
func (c *Connection) FrameExtents(win xproto.Window) (left, right, top, bottom int) {
	fe, err := ewmh.FrameExtentsGet(c.XUtil, win)
	if err != nil {
		return 0, 0, 0, 0
	}
	return fe.Left, fe.Right, fe.Top, fe.Bottom
}

// WindowOpacity reads _NET_WM_WINDOW_OPACITY as a fraction in [0, 1].
// Windows without the property are fully opaque.
func (c *Connection) WindowOpacity(win xproto.Window) float64 {
	v, err := xprop.PropValNum(xprop.GetProperty(c.XUtil, win, "_NET_WM_WINDOW_OPACITY"))
	if err != nil {
		return 1.0
	}
	return float64(v) / OpaqueOpacity
}

// WindowTypes returns the _NET_WM_WINDOW_TYPE atom names in preference
// order, or nil when the property is absent.
func (c *Connection) WindowTypes(win xproto.Window) []string {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
	if err != nil {
		return nil
	}
	return types
}

// TransientFor reads ICCCM WM_TRANSIENT_FOR, or 0 when the window has none.
func (c *Connection) TransientFor(win xproto.Window) xproto.Window {
	owner, err := icccm.WmTransientForGet(c.XUtil, win)
	if err != nil {
		return 0
	}
	return owner
}

// HasWMState reports whether the window carries ICCCM WM_STATE, which marks
// it as the client window inside a window manager frame.
func (c *Connection) HasWMState(win xproto.Window) bool {
	_, err := icccm.WmStateGet(c.XUtil, win)
	return err == nil
}

// FindClientWindow walks the subtree under frame looking for the window
// carrying WM_STATE. Returns 0 when the frame has no marked client, which
// happens for override-redirect windows and frames still being assembled.
func (c *Connection) FindClientWindow(frame xproto.Window) xproto.Window {
	if c.HasWMState(frame) {
		return frame
	}
	tree, err := xproto.QueryTree(c.Conn, frame).Reply()
	if err != nil {
		return 0
	}
	for _, child := range tree.Children {
		if c.HasWMState(child) {
			return child
		}
	}
	for _, child := range tree.Children {
		if found := c.FindClientWindow(child); found != 0 {
			return found
		}
	}
	return 0
}

// BoundingShape returns the window's bounding shape in window-local
// coordinates, and whether the window is shaped at all. Unshaped windows
// (and servers without the extension) get a single rectangle covering the
// whole geometry including the border.
func (c *Connection) BoundingShape(win xproto.Window, width, height, border int) ([]image.Rectangle, bool) {
	full := []image.Rectangle{image.Rect(
		-border, -border, width+border, height+border,
	)}
	if !c.Caps.Shape {
		return full, false
	}
	reply, err := shape.GetRectangles(c.Conn, win, shape.SkBounding).Reply()
	if err != nil {
		return full, false
	}
	rects := make([]image.Rectangle, 0, len(reply.Rectangles))
	for _, r := range reply.Rectangles {
		rects = append(rects, image.Rect(
			int(r.X), int(r.Y), int(r.X)+int(r.Width), int(r.Y)+int(r.Height),
		))
	}
	shaped := len(rects) != 1 || rects[0] != full[0]
	return rects, shaped
}

// SelectShapeEvents asks for ShapeNotify on the window.
func (c *Connection) SelectShapeEvents(win xproto.Window) {
	if c.Caps.Shape {
		shape.SelectInput(c.Conn, win, true)
	}
}

// RootPixmap finds the pixmap painted as the desktop background, checking
// the properties the common wallpaper setters use.
func (c *Connection) RootPixmap() xproto.Pixmap {
	for _, prop := range []string{"_XROOTPMAP_ID", "ESETROOT_PMAP_ID", "_XSETROOT_ID"} {
		v, err := xprop.PropValNum(xprop.GetProperty(c.XUtil, c.Root, prop))
		if err == nil && v != 0 {
			return xproto.Pixmap(v)
		}
	}
	return 0
}

// IsRootBackgroundProp reports whether atom names one of the root background
// pixmap properties.
func (c *Connection) IsRootBackgroundProp(atom xproto.Atom) bool {
	for _, prop := range []string{"_XROOTPMAP_ID", "ESETROOT_PMAP_ID", "_XSETROOT_ID"} {
		if a, err := xprop.Atm(c.XUtil, prop); err == nil && a == atom {
			return true
		}
	}
	return false
}
