package compositor

import (
	"image"

	xdamage "github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/region"
	"github.com/lumenwm/lumen/internal/window"
	"github.com/lumenwm/lumen/internal/x11"
)

// handlePendingUpdates is the per-iteration critical section. The server
// grab guarantees the attribute fetches and tree walks below observe a
// snapshot no other client can mutate under us.
func (s *Session) handlePendingUpdates() error {
	s.pendingUpdates = false

	if s.conn != nil {
		if err := s.conn.Grab(); err != nil {
			return err
		}
		defer s.conn.Ungrab()
	}

	// New windows first: promotion may set update flags resolved right after.
	s.reg.TopToBottom(func(w *window.Window) {
		if w.IsNew {
			s.fillWindow(w)
		}
	})

	// Phase 1: protocol-visible updates. Phase 2: image binds/releases.
	s.reg.ForEachManaged(func(w *window.Managed) {
		s.reg.ProcessUpdateFlags(s, w)
	})
	s.reg.ForEachManaged(func(w *window.Managed) {
		s.reg.ProcessImageFlags(s, w)
	})
	return nil
}

// fillWindow promotes a newly created stack entry to a managed window.
// Input-only windows and windows that vanished before we could look at them
// stay unmanaged, holding only their stacking slot.
func (s *Session) fillWindow(w *window.Window) {
	w.IsNew = false

	attrs, err := xproto.GetWindowAttributes(s.conn.Conn, w.ID).Reply()
	if err != nil || attrs.Class == xproto.WindowClassInputOnly {
		return
	}
	geom, err := xproto.GetGeometry(s.conn.Conn, xproto.Drawable(w.ID)).Reply()
	if err != nil {
		return
	}

	m := s.reg.Promote(w)
	m.Visual = attrs.Visual
	m.OverrideRedirect = attrs.OverrideRedirect
	m.Depth = geom.Depth
	if f, ok := s.formats.ForVisual(attrs.Visual); ok {
		m.HasAlpha = f.HasAlpha
	}

	g := window.Geometry{
		X:      int(geom.X),
		Y:      int(geom.Y),
		Width:  int(geom.Width) + 2*int(geom.BorderWidth),
		Height: int(geom.Height) + 2*int(geom.BorderWidth),
	}
	m.Geometry = g
	m.PendingGeometry = g

	// Damage reports drive all repainting of this window.
	if d, err := xdamage.NewDamageId(s.conn.Conn); err == nil {
		ck := xdamage.Create(s.conn.Conn, d, xproto.Drawable(w.ID),
			xdamage.ReportLevelNonEmpty)
		s.sink.Expect(ck.Sequence, x11.ErrorIgnore)
		m.Damage = d
	}

	xproto.ChangeWindowAttributes(s.conn.Conn, w.ID, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange})
	s.conn.SelectShapeEvents(w.ID)

	s.UpdateBoundingShape(m)
	s.RecheckClient(m)
	s.UpdateProperties(m)
	s.UpdateMonitor(m)

	if attrs.MapState == xproto.MapStateViewable {
		m.Flags.Set(window.FlagPendingMap)
	}
}

// RecheckClient re-detects the WM_STATE carrier under the frame.
func (s *Session) RecheckClient(w *window.Managed) {
	client := s.conn.FindClientWindow(w.Base.ID)
	if client == w.ClientWin {
		return
	}
	w.ClientWin = client
	w.ClientHasAlpha = false
	if client != 0 && client != w.Base.ID {
		if attrs, err := xproto.GetWindowAttributes(s.conn.Conn, client).Reply(); err == nil {
			if f, ok := s.formats.ForVisual(attrs.Visual); ok {
				w.ClientHasAlpha = f.HasAlpha
			}
		}
	}
	w.Flags.Set(window.FlagFactorChanged)
}

// UpdateBoundingShape refetches the window's shape, clipped to its extents.
func (s *Session) UpdateBoundingShape(w *window.Managed) {
	rects, shaped := s.conn.BoundingShape(w.Base.ID, w.Geometry.Width, w.Geometry.Height, 0)
	local := region.Rect(0, 0, w.Geometry.Width, w.Geometry.Height)
	w.BoundingShape = region.FromRects(rects).Intersect(local)
	w.Shaped = shaped
	w.RegIgnoreValid = false
}

// UpdateProperties refetches whichever watched properties were marked stale.
// A promotion calls it with nothing marked, which refreshes everything.
func (s *Session) UpdateProperties(w *window.Managed) {
	all := len(w.StaleProps) == 0

	if all || w.StaleProps.TakeStale(s.atoms.wmName) || w.StaleProps.TakeStale(s.atoms.netWmName) {
		w.Name = s.conn.WindowName(s.propertyWindow(w))
	}
	if all || w.StaleProps.TakeStale(s.atoms.wmClass) {
		_, w.Class = s.conn.WindowClass(s.propertyWindow(w))
	}
	if all || w.StaleProps.TakeStale(s.atoms.frameExtents) {
		left, right, top, bottom := s.conn.FrameExtents(s.propertyWindow(w))
		fe := window.Margins{Left: left, Right: right, Top: top, Bottom: bottom}
		if fe != w.FrameExtents {
			w.FrameExtents = fe
			w.Flags.Set(window.FlagFactorChanged)
		}
	}
	if all || w.StaleProps.TakeStale(s.atoms.windowType) || w.StaleProps.TakeStale(s.atoms.transientFor) {
		win := s.propertyWindow(w)
		kind := window.KindFromTypes(s.conn.WindowTypes(win),
			s.conn.TransientFor(win) != 0, w.OverrideRedirect)
		if kind != w.Kind {
			w.Kind = kind
			w.Flags.Set(window.FlagFactorChanged)
		}
	}
	if all || w.StaleProps.TakeStale(s.atoms.opacity) {
		// The property usually sits on the frame; some apps set it on the
		// client window instead.
		op := s.conn.WindowOpacity(w.Base.ID)
		if op == 1 && w.ClientWin != 0 && w.ClientWin != w.Base.ID {
			op = s.conn.WindowOpacity(w.ClientWin)
		}
		if op != w.Opacity {
			w.Opacity = op
			w.Flags.Set(window.FlagFactorChanged)
		}
	}
}

// propertyWindow is where WM properties live: the client window when the WM
// reparented the app, the frame itself otherwise.
func (s *Session) propertyWindow(w *window.Managed) xproto.Window {
	if w.ClientWin != 0 {
		return w.ClientWin
	}
	return w.Base.ID
}

// repairWindow answers a damage report: translate the damaged area to root
// coordinates and clear the damage object so future reports keep coming.
func (s *Session) repairWindow(w *window.Managed, area xproto.Rectangle) {
	if w.Damage != 0 {
		ck := xdamage.Subtract(s.conn.Conn, w.Damage, 0, 0)
		s.sink.Expect(ck.Sequence, x11.ErrorIgnore)
	}

	if !w.EverDamaged {
		// The first report damages the whole window; partial coordinates
		// from before the first full paint are not trustworthy.
		w.EverDamaged = true
		s.AddDamage(w.Extents())
		return
	}

	g := w.Geometry
	r := image.Rect(int(area.X), int(area.Y),
		int(area.X)+int(area.Width), int(area.Y)+int(area.Height))
	s.AddDamage(region.FromRect(r.Add(image.Pt(g.X, g.Y))))
}
