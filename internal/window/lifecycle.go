package window

import "github.com/lumenwm/lumen/internal/region"

// Host is the slice of the compositor session the window lifecycle needs.
// The session implements it; tests substitute fakes.
type Host interface {
	// Redirected reports whether the screen is currently composited.
	// Transitions complete immediately while it is false, because nothing
	// is rendered anyway.
	Redirected() bool

	// AddDamage records screen damage in root coordinates.
	AddDamage(r region.Region)

	// BindImage names the window's native pixmap and binds it to a backend
	// image. On success w.Image is non-nil and FlagPixmapNone is cleared;
	// on failure FlagImageError is set.
	BindImage(w *Managed) error

	// ReleaseImage releases w.Image exactly once and sets FlagPixmapNone.
	// No-op if no image is bound.
	ReleaseImage(w *Managed)
}

// UpdateHost additionally resolves protocol-visible staleness; every method
// may issue X round-trips and therefore runs inside the critical section.
type UpdateHost interface {
	Host

	// RecheckClient re-detects the client window (the WM_STATE holder).
	RecheckClient(w *Managed)
	// UpdateBoundingShape refetches the window's bounding shape.
	UpdateBoundingShape(w *Managed)
	// UpdateProperties refetches whichever properties w marked stale.
	UpdateProperties(w *Managed)
	// UpdateMonitor reassigns the window to a monitor.
	UpdateMonitor(w *Managed)
}

// MapStart begins mapping a window: Unmapped|Unmapping -> Mapping.
//
// An in-flight unmap is force-finished first, with the prior extents marked
// damaged, because a window visible mid-transition is changing state (this
// covers a window unmapped and immediately remapped elsewhere). Calling this
// on a Destroying window is a contract violation: no valid event ordering
// reaches it, since destruction removes the window from the registry.
func (r *Registry) MapStart(h Host, w *Managed) {
	switch w.State {
	case StateDestroying:
		panic("window: MapStart on a destroying window")
	case StateMapped, StateMapping:
		// Already mapped; nothing to do.
		return
	case StateUnmapping:
		r.FinishTransition(h, w)
		h.AddDamage(w.Extents())
	}

	w.Viewable = true
	w.Mode = w.CalcMode()
	w.State = StateMapping

	// The backend image is bound later in the critical section.
	w.Flags.Set(FlagPixmapStale)

	if !h.Redirected() {
		r.FinishTransition(h, w)
	}
}

// UnmapStart begins unmapping: Mapped|Mapping -> Unmapping. If the screen is
// not redirected, or the window was never damaged while visible, there is no
// content worth carrying through a transition effect and the window goes
// straight to Unmapped.
func (r *Registry) UnmapStart(h Host, w *Managed) {
	if w.State == StateDestroying {
		// Undestroying a window is not a thing.
		return
	}

	wasDamaged := w.EverDamaged
	w.EverDamaged = false

	if w.State == StateUnmapping || w.State == StateUnmapped {
		// A pending map that never got applied is simply cancelled.
		w.Flags.Clear(FlagPendingMap)
		return
	}

	w.Viewable = false
	w.State = StateUnmapping

	if !h.Redirected() || !wasDamaged {
		r.FinishTransition(h, w)
	}
}

// DestroyStart begins destroying a window: any state -> Destroying.
// Unmanaged and already-Unmapped windows finish immediately. Returns whether
// the window has already been removed and freed; the caller must treat any
// held reference as invalid when it returns true.
func (r *Registry) DestroyStart(h Host, w *Window) bool {
	// Future windows may reuse the id while this one is painted out, so the
	// id index entry goes now; the stack entry stays until the transition
	// finishes.
	r.Unindex(w)
	w.Destroyed = true

	m := w.Managed
	if m == nil || m.State == StateUnmapped {
		r.destroyFinish(h, w)
		return true
	}

	// Image staleness cannot be resolved anymore: the pixmap is gone.
	m.Flags.Clear(FlagImagesStale)

	// Stale geometry would normally be applied in the critical section,
	// damaging the new extents; that information is unobtainable now, so
	// account for what we have as a last damage contribution.
	if m.Flags.Any(FlagSizeStale | FlagPositionStale) {
		h.AddDamage(m.Extents())
	}
	m.Flags.Clear(FlagSizeStale | FlagPositionStale | FlagPropertyStale |
		FlagFactorChanged | FlagClientStale)

	m.State = StateDestroying
	m.Viewable = false
	m.InOpenClose = true

	if !h.Redirected() {
		return r.FinishTransition(h, m)
	}
	return false
}

// FinishTransition completes whatever transition w is in. It is invoked once
// per frame for every window not settled in Mapped or Unmapped. Returns true
// when the window was destroyed and freed: callers must then drop every
// reference. Idempotent no-op for Mapped/Unmapped windows.
func (r *Registry) FinishTransition(h Host, w *Managed) bool {
	switch w.State {
	case StateMapped, StateUnmapped:
		return false
	case StateMapping:
		w.State = StateMapped
		w.InOpenClose = false
		return false
	case StateUnmapping:
		r.unmapFinish(h, w)
		return false
	case StateDestroying:
		r.destroyFinish(h, w.Base)
		return true
	}
	return false
}

func (r *Registry) unmapFinish(h Host, w *Managed) {
	w.RegIgnoreValid = false
	w.State = StateUnmapped

	if !w.Flags.All(FlagPixmapNone) {
		h.ReleaseImage(w)
	}

	// Binding is retried from scratch on the next map.
	w.Flags.Clear(FlagImageError)
}

func (r *Registry) destroyFinish(h Host, w *Window) {
	if m := w.Managed; m != nil && m.State != StateUnmapped {
		// Render resources are freed by the unmap path; every other state
		// still holds them.
		r.unmapFinish(h, m)
	}
	r.remove(w)
}

// ReleaseAllImages finishes in-flight transitions and releases every bound
// image. Used when the backend is torn down (unredirect, device reset).
func (r *Registry) ReleaseAllImages(h Host) {
	r.ForEachManaged(func(w *Managed) {
		if r.FinishTransition(h, w) {
			return // destroyed and freed
		}
		if !w.Flags.All(FlagPixmapNone) {
			h.ReleaseImage(w)
		}
	})
}
