// Package compositor ties the pieces together: one session owns the X
// connection, the window registry, the damage history and a rendering
// backend, and drives them from a single event loop. All state is mutated by
// that loop alone.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/lumenwm/lumen/internal/backend"
	"github.com/lumenwm/lumen/internal/backend/dummy"
	"github.com/lumenwm/lumen/internal/backend/pixel"
	"github.com/lumenwm/lumen/internal/backend/xrender"
	"github.com/lumenwm/lumen/internal/config"
	"github.com/lumenwm/lumen/internal/damage"
	"github.com/lumenwm/lumen/internal/region"
	"github.com/lumenwm/lumen/internal/window"
	"github.com/lumenwm/lumen/internal/x11"
)

// atoms are the property atoms the session watches, interned once.
type atoms struct {
	wmName       xproto.Atom
	netWmName    xproto.Atom
	wmClass      xproto.Atom
	frameExtents xproto.Atom
	opacity      xproto.Atom
	windowType   xproto.Atom
	transientFor xproto.Atom
}

// Session is one compositing session. A device reset ends the session; the
// caller builds a fresh one after the grace period.
type Session struct {
	log  *slog.Logger
	cfg  *config.Config
	conn *x11.Connection
	sink *x11.ErrorSink

	renderer backend.Renderer
	formats  *x11.FormatTable
	atoms    atoms

	reg      *window.Registry
	tracker  *damage.Tracker
	screen   region.Region
	monitors []x11.Monitor

	overlay xproto.Window
	selWin  xproto.Window
	target  xproto.Window

	rootWidth  uint16
	rootHeight uint16

	redirected   bool
	screenOff    bool
	forceRepaint bool

	rootImage backend.Image

	pendingUpdates bool
	needRepaint    bool

	// namePixmap is swapped out by tests that bind without a server.
	namePixmap func(xproto.Window) (xproto.Pixmap, error)
}

// NewSession connects to the display, claims the compositor selection and
// sets up the configured backend. Every error here is fatal: there is no
// degraded mode.
func NewSession(cfg *config.Config, logger *slog.Logger) (*Session, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("connecting to display: %w", err)
	}

	s := &Session{
		log:  logger,
		cfg:  cfg,
		conn: conn,
		sink: x11.NewErrorSink(logger),
		reg:  window.NewRegistry(),
	}
	s.namePixmap = conn.NameWindowPixmap

	s.rootWidth, s.rootHeight = conn.RootSize()
	s.screen = region.Rect(0, 0, int(s.rootWidth), int(s.rootHeight))

	s.selWin, err = conn.RegisterCompositor("lumen")
	if err != nil {
		conn.Close()
		return nil, err
	}

	s.formats, err = conn.QueryFormats(conn.Screen.RootVisual)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := s.internAtoms(); err != nil {
		conn.Close()
		return nil, err
	}

	s.monitors, err = conn.GetMonitors()
	if err != nil {
		logger.Warn("monitor query failed, using the whole screen", "error", err)
		s.monitors = nil
	}
	conn.SelectScreenChangeEvents()

	if err := s.initBackend(); err != nil {
		conn.Close()
		return nil, err
	}
	s.tracker = damage.New(s.renderer.MaxBufferAge(), s.screen)

	// Root events: structure of children, property changes, exposure.
	err = xproto.ChangeWindowAttributesChecked(conn.Conn, conn.Root, xproto.CwEventMask,
		[]uint32{xproto.EventMaskSubstructureNotify | xproto.EventMaskPropertyChange |
			xproto.EventMaskStructureNotify | xproto.EventMaskExposure}).Check()
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("selecting root events: %w", err)
	}

	if err := s.scanExistingWindows(); err != nil {
		s.teardown()
		return nil, err
	}

	s.setRedirected(true)
	s.log.Info("session up",
		"backend", cfg.Backend,
		"root", fmt.Sprintf("%dx%d", s.rootWidth, s.rootHeight),
		"monitors", len(s.monitors),
		"windows", s.reg.Len())
	return s, nil
}

func (s *Session) internAtoms() error {
	for _, a := range []struct {
		name string
		dst  *xproto.Atom
	}{
		{"WM_NAME", &s.atoms.wmName},
		{"_NET_WM_NAME", &s.atoms.netWmName},
		{"WM_CLASS", &s.atoms.wmClass},
		{"_NET_FRAME_EXTENTS", &s.atoms.frameExtents},
		{"_NET_WM_WINDOW_OPACITY", &s.atoms.opacity},
		{"_NET_WM_WINDOW_TYPE", &s.atoms.windowType},
		{"WM_TRANSIENT_FOR", &s.atoms.transientFor},
	} {
		atom, err := xprop.Atm(s.conn.XUtil, a.name)
		if err != nil {
			return fmt.Errorf("interning %s: %w", a.name, err)
		}
		*a.dst = atom
	}
	return nil
}

// initBackend builds the configured renderer. The paint target is the
// composite overlay when the server has one and the backend presents;
// otherwise the root window.
func (s *Session) initBackend() error {
	if s.cfg.Backend == config.BackendDummy {
		s.renderer = dummy.New()
		s.target = s.conn.Root
		return nil
	}

	s.target = s.conn.Root
	if s.conn.Caps.Overlay {
		overlay, err := s.conn.AcquireOverlay()
		if err != nil {
			s.log.Warn("overlay unavailable, painting on the root", "error", err)
		} else {
			s.overlay = overlay
			s.target = overlay
		}
	}

	var err error
	switch s.cfg.Backend {
	case config.BackendXRender:
		s.renderer, err = xrender.New(s.conn.Conn, s.target, s.formats.Root().Format,
			s.conn.Screen.RootDepth, s.rootWidth, s.rootHeight)
	case config.BackendPixel:
		s.renderer, err = pixel.New(s.conn.Conn, s.target,
			s.conn.Screen.RootDepth, s.rootWidth, s.rootHeight)
	default:
		err = fmt.Errorf("unknown backend %q", s.cfg.Backend)
	}
	if err != nil {
		return fmt.Errorf("initializing %s backend: %w", s.cfg.Backend, err)
	}
	return nil
}

// scanExistingWindows walks the current window tree under a server grab so
// the initial registry matches a consistent snapshot.
func (s *Session) scanExistingWindows() error {
	if err := s.conn.Grab(); err != nil {
		return err
	}
	defer s.conn.Ungrab()

	tree, err := xproto.QueryTree(s.conn.Conn, s.conn.Root).Reply()
	if err != nil {
		return fmt.Errorf("querying window tree: %w", err)
	}
	// QueryTree lists bottom to top; the registry stores top first.
	for _, child := range tree.Children {
		if child == s.overlay || child == s.selWin {
			continue
		}
		s.reg.AddTop(child)
	}
	s.pendingUpdates = true
	return nil
}

type xEvent struct {
	ev  xgb.Event
	err xgb.Error
}

// readEvents pumps wait into events until the connection closes (wait
// returns nil, nil) or done closes. Without the done case a full buffer
// would pin the goroutine forever after Run returns, leaking one reader per
// session restart.
func readEvents(wait func() (xgb.Event, xgb.Error), events chan<- xEvent, done <-chan struct{}) {
	for {
		ev, err := wait()
		if ev == nil && err == nil {
			close(events)
			return
		}
		select {
		case events <- xEvent{ev, err}:
		case <-done:
			return
		}
	}
}

// Run drives the session until the context ends, a fatal protocol error
// arrives, or the device resets (returned as backend.ErrDeviceReset).
func (s *Session) Run(ctx context.Context) error {
	events := make(chan xEvent, 64)
	done := make(chan struct{})
	defer close(done)
	go readEvents(s.conn.Conn.WaitForEvent, events, done)

	var dpmsTick <-chan time.Time
	if s.cfg.DPMSPoll.Std() > 0 && s.conn.Caps.DPMS {
		ticker := time.NewTicker(s.cfg.DPMSPoll.Std())
		defer ticker.Stop()
		dpmsTick = ticker.C
	}

	// First frame: promote the scanned windows and paint the whole screen
	// before waiting for anything to happen.
	if err := s.settle(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return errors.New("display connection closed")
			}
			if e.err != nil {
				if s.sink.Handle(e.err) {
					return fmt.Errorf("fatal X error: %s", e.err.Error())
				}
				continue
			}
			s.handleEvent(e.ev)
			// Drain what is queued before painting; painting mid-burst
			// wastes frames.
			if len(events) > 0 {
				continue
			}
		case <-dpmsTick:
			off := s.conn.ScreenOff()
			if off != s.screenOff {
				s.screenOff = off
				s.needRepaint = true
			}
		}

		if err := s.settle(); err != nil {
			return err
		}
	}
}

// settle services queued updates and repaints until both stay clear. A paint
// can queue new updates (starting redirection marks every pixmap stale, and
// those images must be rebound and drawn right away, not after the next
// wakeup) and an update can queue a repaint, so one pass is not enough.
func (s *Session) settle() error {
	for s.pendingUpdates || s.needRepaint || s.forceRepaint {
		if s.pendingUpdates {
			if err := s.handlePendingUpdates(); err != nil {
				return err
			}
		}
		if s.needRepaint || s.forceRepaint {
			s.needRepaint = false
			if err := s.paint(); err != nil {
				return err
			}
		}
	}
	return nil
}

// paint runs one frame: preprocess (occlusion and redirection policy), then
// the backend calls.
func (s *Session) paint() error {
	order := s.paintPreprocess()
	s.setRedirected(!s.screenOff)
	if !s.redirected {
		return nil
	}
	return s.paintAll(order)
}

// Close releases everything the session owns. Safe after a failed Run.
func (s *Session) Close() {
	s.setRedirected(false)
	s.teardown()
	s.log.Info("session closed")
}

func (s *Session) teardown() {
	if s.renderer != nil {
		s.renderer.Deinit()
		s.renderer = nil
	}
	if s.overlay != 0 {
		s.conn.ReleaseOverlay()
		s.overlay = 0
	}
	if s.selWin != 0 {
		xproto.DestroyWindow(s.conn.Conn, s.selWin)
		s.selWin = 0
	}
	s.conn.Close()
}

// AddDamage records damaged screen area and queues a repaint.
func (s *Session) AddDamage(r region.Region) {
	s.tracker.Add(r.Intersect(s.screen))
	s.needRepaint = true
}

// Redirected reports whether window contents currently render offscreen.
func (s *Session) Redirected() bool { return s.redirected }

// BindImage names the window's pixmap and wraps it in a backend image.
func (s *Session) BindImage(w *window.Managed) error {
	pix, err := s.namePixmap(w.Base.ID)
	if err != nil {
		s.log.Warn("naming window pixmap failed", "window", w.Base.ID, "error", err)
		w.Flags.Set(window.FlagImageError)
		return err
	}

	format := backend.PixmapFormat{Visual: w.Visual, Depth: w.Depth, HasAlpha: w.HasAlpha}
	if s.formats != nil {
		if f, ok := s.formats.ForVisual(w.Visual); ok {
			format = f
		}
	}

	img, err := s.renderer.BindPixmap(pix, format, true)
	if err != nil {
		s.log.Warn("binding window pixmap failed",
			"window", w.Base.ID, "pixmap", pix, "error", err)
		w.Flags.Set(window.FlagImageError)
		return err
	}
	w.Image = img
	w.Flags.Clear(window.FlagPixmapNone | window.FlagImageError)
	return nil
}

// ReleaseImage returns the window's image to the backend.
func (s *Session) ReleaseImage(w *window.Managed) {
	if w.Image != nil {
		s.renderer.ReleaseImage(w.Image)
		w.Image = nil
	}
	w.Flags.Set(window.FlagPixmapNone)
}

// UpdateMonitor reassigns the window to the monitor fully containing it.
func (s *Session) UpdateMonitor(w *window.Managed) {
	g := w.Geometry
	w.Monitor = x11.MonitorContaining(s.monitors,
		image.Rect(g.X, g.Y, g.X+g.Width, g.Y+g.Height))
}
