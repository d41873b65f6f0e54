package x11

import (
	"fmt"
	"os"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
)

// RegisterCompositor claims the _NET_WM_CM_Sn selection for this screen so
// clients know a compositing manager is running. It fails when another
// compositor already owns the selection.
//
// The returned window exists only to own the selection; destroying it (or
// disconnecting) releases the claim.
func (c *Connection) RegisterCompositor(name string) (xproto.Window, error) {
	selName := fmt.Sprintf("_NET_WM_CM_S%d", c.Conn.DefaultScreen)
	sel, err := xprop.Atm(c.XUtil, selName)
	if err != nil {
		return 0, fmt.Errorf("interning %s: %w", selName, err)
	}

	owner, err := xproto.GetSelectionOwner(c.Conn, sel).Reply()
	if err != nil {
		return 0, fmt.Errorf("querying %s owner: %w", selName, err)
	}
	if owner.Owner != xproto.WindowNone {
		return 0, fmt.Errorf("another compositor owns %s (window %#x)", selName, owner.Owner)
	}

	win, err := xproto.NewWindowId(c.Conn)
	if err != nil {
		return 0, fmt.Errorf("allocating selection window id: %w", err)
	}
	err = xproto.CreateWindowChecked(c.Conn, 0, win, c.Root,
		0, 0, 1, 1, 0, xproto.WindowClassInputOnly, c.Screen.RootVisual, 0, nil).Check()
	if err != nil {
		return 0, fmt.Errorf("creating selection window: %w", err)
	}

	ewmh.WmNameSet(c.XUtil, win, name)
	ewmh.WmPidSet(c.XUtil, win, uint(os.Getpid()))
	icccm.WmClassSet(c.XUtil, win, &icccm.WmClass{Instance: name, Class: name})

	err = xproto.SetSelectionOwnerChecked(c.Conn, win, sel, xproto.TimeCurrentTime).Check()
	if err != nil {
		xproto.DestroyWindow(c.Conn, win)
		return 0, fmt.Errorf("claiming %s: %w", selName, err)
	}
	return win, nil
}
