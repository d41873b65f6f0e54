package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
)

// RedirectSubwindows redirects every child of the root offscreen. Manual
// redirection makes this compositor responsible for putting pixels on
// screen; automatic keeps the server painting and is used when the backend
// has no visible output of its own.
func (c *Connection) RedirectSubwindows(manual bool) error {
	update := byte(composite.RedirectAutomatic)
	if manual {
		update = composite.RedirectManual
	}
	err := composite.RedirectSubwindowsChecked(c.Conn, c.Root, update).Check()
	if err != nil {
		return fmt.Errorf("redirecting subwindows: %w", err)
	}
	return nil
}

// UnredirectSubwindows undoes RedirectSubwindows with the matching mode.
func (c *Connection) UnredirectSubwindows(manual bool) {
	update := byte(composite.RedirectAutomatic)
	if manual {
		update = composite.RedirectManual
	}
	composite.UnredirectSubwindows(c.Conn, c.Root, update)
}

// AcquireOverlay maps the composite overlay window and makes it transparent
// to input, so clicks fall through to the windows being composited.
func (c *Connection) AcquireOverlay() (xproto.Window, error) {
	if !c.Caps.Overlay {
		return 0, fmt.Errorf("composite extension has no overlay window")
	}
	reply, err := composite.GetOverlayWindow(c.Conn, c.Root).Reply()
	if err != nil {
		return 0, fmt.Errorf("acquiring overlay window: %w", err)
	}
	overlay := reply.OverlayWin

	region, err := xfixes.NewRegionId(c.Conn)
	if err != nil {
		return 0, fmt.Errorf("allocating region id: %w", err)
	}
	xfixes.CreateRegion(c.Conn, region, nil)
	xfixes.SetWindowShapeRegion(c.Conn, overlay, shape.SkBounding, 0, 0, xfixes.RegionNone)
	xfixes.SetWindowShapeRegion(c.Conn, overlay, shape.SkInput, 0, 0, region)
	xfixes.DestroyRegion(c.Conn, region)

	xproto.MapWindow(c.Conn, overlay)
	return overlay, nil
}

// ReleaseOverlay hands the overlay window back to the server.
func (c *Connection) ReleaseOverlay() {
	composite.ReleaseOverlayWindow(c.Conn, c.Root)
}

// NameWindowPixmap asks the server for a fresh pixmap carrying the window's
// offscreen content. Ownership of the pixmap passes to the caller.
func (c *Connection) NameWindowPixmap(win xproto.Window) (xproto.Pixmap, error) {
	pix, err := xproto.NewPixmapId(c.Conn)
	if err != nil {
		return 0, fmt.Errorf("allocating pixmap id: %w", err)
	}
	err = composite.NameWindowPixmapChecked(c.Conn, win, pix).Check()
	if err != nil {
		return 0, fmt.Errorf("naming pixmap for window %#x: %w", win, err)
	}
	return pix, nil
}
