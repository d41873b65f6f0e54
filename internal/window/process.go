package window

// Staleness flags accumulate from events and are resolved here, in two
// ordered phases per critical section: ProcessUpdateFlags applies the
// protocol-visible updates (and may mark images stale), then
// ProcessImageFlags binds or releases backend images accordingly.

// ProcessUpdateFlags handles the non-image flags of one window. Must run
// inside the critical section: property fetches need a consistent snapshot.
func (r *Registry) ProcessUpdateFlags(h UpdateHost, w *Managed) {
	wasVisible := w.RealVisible()

	if w.Flags.All(FlagPendingMap) {
		r.MapStart(h, w)
		w.Flags.Clear(FlagPendingMap)
	}

	if !w.RealVisible() {
		// Flags of invisible windows wait until the window is mapped.
		return
	}

	// The client window first: later property updates depend on it.
	if w.Flags.All(FlagClientStale) {
		h.RecheckClient(w)
		w.Flags.Clear(FlagClientStale)
	}

	damaged := false
	if w.Flags.Any(FlagSizeStale | FlagPositionStale) {
		if wasVisible {
			// The old extents are damaged now; the new extents are damaged
			// below, once the geometry is applied. A window that was just
			// mapped had its old extents damaged by MapStart already.
			h.AddDamage(w.Extents())
		}

		w.Geometry = w.PendingGeometry

		if w.Flags.All(FlagSizeStale) {
			w.OnSizeChange()
			h.UpdateBoundingShape(w)
			damaged = true
			w.Flags.Clear(FlagSizeStale)
		}
		if w.Flags.All(FlagPositionStale) {
			damaged = true
			w.Flags.Clear(FlagPositionStale)
		}

		h.UpdateMonitor(w)
	}

	if w.Flags.All(FlagPropertyStale) {
		h.UpdateProperties(w)
		w.Flags.Clear(FlagPropertyStale)
		w.StaleProps.Reset()
	}

	// Anything above may flag a factor change, so it is handled last.
	if w.Flags.All(FlagFactorChanged) {
		w.OnFactorChange()
		w.Flags.Clear(FlagFactorChanged)
	}

	// Damage last, with the final geometry in place.
	if damaged {
		h.AddDamage(w.Extents())
	}
}

// ProcessImageFlags binds or releases the backend image of one window in
// response to the staleness resolved by ProcessUpdateFlags.
func (r *Registry) ProcessImageFlags(h Host, w *Managed) {
	if w.State == StateUnmapped || w.State == StateUnmapping || w.State == StateDestroying {
		// Images of invisible windows are dealt with when they are mapped.
		return
	}

	if w.Flags.Any(FlagImagesStale) && !w.Flags.All(FlagImageError) {
		if w.Flags.All(FlagPixmapStale) {
			// The named pixmap's identity may have changed; the old image
			// must be released before rebinding, rebinding over a live bind
			// corrupts some drivers.
			if !w.Flags.All(FlagPixmapNone) {
				h.ReleaseImage(w)
			}
			// BindImage flags the error itself; painting skips the window
			// until a future bind attempt succeeds.
			_ = h.BindImage(w)
		}
	}

	w.Flags.Clear(FlagImagesStale)
}
