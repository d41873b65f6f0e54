package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/dpms"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// Capabilities records which optional extensions the server offers. The
// required ones (Composite, Damage, XFixes) are not listed; NewConnection
// fails outright without them.
type Capabilities struct {
	Shape   bool
	RandR   bool
	DPMS    bool
	Overlay bool // Composite >= 0.3
}

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil  *xgbutil.XUtil
	Conn   *xgb.Conn
	Root   xproto.Window
	Screen *xproto.ScreenInfo
	Caps   Capabilities
}

// NewConnection establishes a connection to the X11 server and initializes
// the extensions compositing needs. Composite, Damage and XFixes are hard
// requirements; Shape, RandR and DPMS degrade gracefully when missing.
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}
	conn := xu.Conn()

	c := &Connection{
		XUtil:  xu,
		Conn:   conn,
		Root:   xu.RootWin(),
		Screen: xproto.Setup(conn).DefaultScreen(conn),
	}

	if err := composite.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("composite extension unavailable: %w", err)
	}
	// 0.2 introduced NameWindowPixmap, 0.3 the overlay window.
	ver, err := composite.QueryVersion(conn, 0, 3).Reply()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("composite version query failed: %w", err)
	}
	if ver.MajorVersion == 0 && ver.MinorVersion < 2 {
		conn.Close()
		return nil, fmt.Errorf("composite %d.%d too old, need at least 0.2",
			ver.MajorVersion, ver.MinorVersion)
	}
	c.Caps.Overlay = ver.MajorVersion > 0 || ver.MinorVersion >= 3

	if err := damage.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("damage extension unavailable: %w", err)
	}
	if _, err := damage.QueryVersion(conn, 1, 1).Reply(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("damage version query failed: %w", err)
	}

	if err := xfixes.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("xfixes extension unavailable: %w", err)
	}
	if _, err := xfixes.QueryVersion(conn, 2, 0).Reply(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("xfixes version query failed: %w", err)
	}

	if err := shape.Init(conn); err == nil {
		c.Caps.Shape = true
	}
	if err := randr.Init(conn); err == nil {
		if _, err := randr.QueryVersion(conn, 1, 2).Reply(); err == nil {
			c.Caps.RandR = true
		}
	}
	if err := dpms.Init(conn); err == nil {
		c.Caps.DPMS = true
	}

	return c, nil
}

// Grab stops all other clients until Ungrab. Every window snapshot taken
// between the two calls is consistent with the server's state.
func (c *Connection) Grab() error {
	if err := xproto.GrabServerChecked(c.Conn).Check(); err != nil {
		return fmt.Errorf("grabbing server: %w", err)
	}
	return nil
}

// Ungrab releases a Grab and flushes so the release is not sat on.
func (c *Connection) Ungrab() error {
	if err := xproto.UngrabServerChecked(c.Conn).Check(); err != nil {
		return fmt.Errorf("ungrabbing server: %w", err)
	}
	c.Conn.Sync()
	return nil
}

// RootSize returns the current pixel size of the root window.
func (c *Connection) RootSize() (uint16, uint16) {
	return c.Screen.WidthInPixels, c.Screen.HeightInPixels
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.Conn.Close()
}
