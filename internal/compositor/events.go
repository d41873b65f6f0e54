package compositor

import (
	"image"

	"github.com/BurntSushi/xgb"
	xdamage "github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/region"
	"github.com/lumenwm/lumen/internal/window"
)

// handleEvent routes one protocol event. Handlers only mutate records and
// set flags; round-trips wait for the next critical section.
func (s *Session) handleEvent(ev xgb.Event) {
	switch e := ev.(type) {
	case xproto.CreateNotifyEvent:
		s.handleCreate(e)
	case xproto.DestroyNotifyEvent:
		s.handleDestroy(e)
	case xproto.MapNotifyEvent:
		s.handleMap(e)
	case xproto.UnmapNotifyEvent:
		s.handleUnmap(e)
	case xproto.ReparentNotifyEvent:
		s.handleReparent(e)
	case xproto.ConfigureNotifyEvent:
		s.handleConfigure(e)
	case xproto.CirculateNotifyEvent:
		s.handleCirculate(e)
	case xproto.PropertyNotifyEvent:
		s.handleProperty(e)
	case xproto.ExposeEvent:
		s.handleExpose(e)
	case xdamage.NotifyEvent:
		if m := s.reg.FindManaged(xproto.Window(e.Drawable)); m != nil {
			s.repairWindow(m, e.Area)
		}
	case shape.NotifyEvent:
		s.handleShape(e)
	case randr.ScreenChangeNotifyEvent:
		s.handleRootResize(e.Width, e.Height)
	}
}

func (s *Session) handleCreate(e xproto.CreateNotifyEvent) {
	if e.Parent != s.conn.Root || e.Window == s.overlay || e.Window == s.selWin {
		return
	}
	// New windows are created on top of the stack.
	if s.reg.AddTop(e.Window) != nil {
		s.pendingUpdates = true
	}
}

func (s *Session) handleDestroy(e xproto.DestroyNotifyEvent) {
	w := s.reg.Find(e.Window)
	if w == nil {
		return
	}
	s.reg.DestroyStart(s, w)
	s.needRepaint = true
}

func (s *Session) handleMap(e xproto.MapNotifyEvent) {
	m := s.reg.FindManaged(e.Window)
	if m == nil {
		return
	}
	m.OverrideRedirect = e.OverrideRedirect
	// The transition starts in the critical section, where the fresh
	// pixmap can be named consistently.
	m.Flags.Set(window.FlagPendingMap)
	s.pendingUpdates = true
	s.needRepaint = true
}

func (s *Session) handleUnmap(e xproto.UnmapNotifyEvent) {
	m := s.reg.FindManaged(e.Window)
	if m == nil {
		return
	}
	s.reg.UnmapStart(s, m)
	s.needRepaint = true
}

func (s *Session) handleReparent(e xproto.ReparentNotifyEvent) {
	if e.Parent == s.conn.Root {
		// Became a top-level window again.
		if s.reg.Find(e.Window) == nil {
			s.reg.AddTop(e.Window)
			s.pendingUpdates = true
		}
		return
	}

	// Left the top level: drop the stack entry.
	if w := s.reg.Find(e.Window); w != nil {
		s.reg.DestroyStart(s, w)
		s.needRepaint = true
	}
	// The window may be (or become) some frame's client window.
	if m := s.reg.FindByClient(e.Window); m != nil {
		m.Flags.Set(window.FlagClientStale)
		s.pendingUpdates = true
	}
	if m := s.reg.FindManaged(e.Parent); m != nil {
		m.Flags.Set(window.FlagClientStale)
		s.pendingUpdates = true
	}
}

func (s *Session) handleConfigure(e xproto.ConfigureNotifyEvent) {
	if e.Window == s.conn.Root {
		s.handleRootResize(e.Width, e.Height)
		return
	}
	w := s.reg.Find(e.Window)
	if w == nil {
		return
	}

	s.reg.RestackAbove(w, e.AboveSibling)
	s.needRepaint = true

	m := w.Managed
	if m == nil {
		return
	}
	g := window.Geometry{
		X:      int(e.X),
		Y:      int(e.Y),
		Width:  int(e.Width) + 2*int(e.BorderWidth),
		Height: int(e.Height) + 2*int(e.BorderWidth),
	}
	if g.X != m.PendingGeometry.X || g.Y != m.PendingGeometry.Y {
		m.Flags.Set(window.FlagPositionStale)
	}
	if g.Width != m.PendingGeometry.Width || g.Height != m.PendingGeometry.Height {
		m.Flags.Set(window.FlagSizeStale)
	}
	m.PendingGeometry = g
	m.OverrideRedirect = e.OverrideRedirect

	if m.Flags.Any(window.FlagSizeStale | window.FlagPositionStale) {
		s.pendingUpdates = true
	}
}

func (s *Session) handleCirculate(e xproto.CirculateNotifyEvent) {
	w := s.reg.Find(e.Window)
	if w == nil {
		return
	}
	if e.Place == xproto.PlaceOnTop {
		s.reg.RestackTop(w)
	} else {
		s.reg.RestackBottom(w)
	}
	s.needRepaint = true
}

func (s *Session) handleProperty(e xproto.PropertyNotifyEvent) {
	if e.Window == s.conn.Root {
		if s.conn.IsRootBackgroundProp(e.Atom) {
			s.bindRootImage()
			s.forceRepaint = true
			s.needRepaint = true
		}
		return
	}

	m := s.reg.FindManaged(e.Window)
	if m == nil {
		m = s.reg.FindByClient(e.Window)
	}
	if m == nil {
		return
	}
	m.StaleProps.Mark(e.Atom)
	m.Flags.Set(window.FlagPropertyStale)
	s.pendingUpdates = true
}

func (s *Session) handleExpose(e xproto.ExposeEvent) {
	if e.Window != s.conn.Root && e.Window != s.overlay {
		return
	}
	r := image.Rect(int(e.X), int(e.Y), int(e.X)+int(e.Width), int(e.Y)+int(e.Height))
	s.AddDamage(region.FromRect(r))
}

func (s *Session) handleShape(e shape.NotifyEvent) {
	if e.ShapeKind != shape.SkBounding {
		return
	}
	m := s.reg.FindManaged(e.AffectedWindow)
	if m == nil {
		return
	}
	// Treated like a resize: the shape is refetched and the extents
	// redamaged in the critical section.
	m.Flags.Set(window.FlagSizeStale)
	s.pendingUpdates = true
}
