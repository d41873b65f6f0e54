package compositor

import (
	"github.com/lumenwm/lumen/internal/backend"
	"github.com/lumenwm/lumen/internal/region"
	"github.com/lumenwm/lumen/internal/window"
)

// setRedirected starts or stops compositing. Stopping releases every backend
// image, because retained buffers cannot be trusted across the gap (a
// screen-off period corrupts them on some GPUs); starting marks every
// visible window's pixmap stale so images are rebound from scratch.
func (s *Session) setRedirected(want bool) {
	if want == s.redirected {
		return
	}

	if want {
		if s.conn != nil {
			if err := s.conn.RedirectSubwindows(s.presents()); err != nil {
				s.log.Error("redirection failed", "error", err)
				return
			}
		}
		s.redirected = true
		s.tracker.Enable()
		s.reg.ForEachManaged(func(w *window.Managed) {
			if w.RealVisible() {
				w.Flags.Set(window.FlagPixmapStale)
			}
		})
		s.bindRootImage()
		s.pendingUpdates = true
		s.forceRepaint = true
		s.needRepaint = true
		s.log.Debug("redirection started")
		return
	}

	// Must flip before releasing: lifecycle transitions complete
	// immediately while unredirected.
	s.redirected = false
	s.reg.ReleaseAllImages(s)
	s.releaseRootImage()
	s.tracker.Disable()
	if s.conn != nil {
		s.conn.UnredirectSubwindows(s.presents())
	}
	s.log.Debug("redirection stopped")
}

// presents reports whether the backend puts pixels on screen itself. When it
// does not (the dummy backend), redirection stays automatic so the server
// keeps painting.
func (s *Session) presents() bool {
	_, ok := s.renderer.(backend.Presenter)
	return ok
}

// bindRootImage wraps the root background pixmap as the backdrop image.
// Without one the background is a solid fill.
func (s *Session) bindRootImage() {
	s.releaseRootImage()
	if s.conn == nil || !s.cfg.WallpaperFromRoot {
		return
	}
	pix := s.conn.RootPixmap()
	if pix == 0 {
		return
	}
	img, err := s.renderer.BindPixmap(pix, s.formats.Root(), false)
	if err != nil {
		s.log.Warn("binding root background failed", "pixmap", pix, "error", err)
		return
	}
	s.rootImage = img
}

func (s *Session) releaseRootImage() {
	if s.rootImage != nil {
		s.renderer.ReleaseImage(s.rootImage)
		s.rootImage = nil
	}
}

// handleRootResize rebuilds everything sized off the root window: the
// screen region, the damage history, the backend's buffers.
func (s *Session) handleRootResize(width, height uint16) {
	if width == s.rootWidth && height == s.rootHeight {
		return
	}
	s.rootWidth, s.rootHeight = width, height
	s.screen = region.Rect(0, 0, int(width), int(height))
	s.tracker.Resize(s.screen)
	s.reg.InvalidateTop()

	if r, ok := s.renderer.(interface{ Resize(uint16, uint16) error }); ok {
		if err := r.Resize(width, height); err != nil {
			s.log.Error("backend resize failed", "error", err)
		}
	}

	if mons, err := s.conn.GetMonitors(); err == nil {
		s.monitors = mons
	}
	s.reg.ForEachManaged(func(w *window.Managed) { s.UpdateMonitor(w) })

	s.forceRepaint = true
	s.needRepaint = true
	s.log.Info("root resized", "width", width, "height", height)
}
