package compositor

import (
	"fmt"
	"image"

	"github.com/lumenwm/lumen/internal/backend"
	"github.com/lumenwm/lumen/internal/region"
	"github.com/lumenwm/lumen/internal/window"
)

// paintPreprocess finishes pending lifecycle transitions and runs the
// occlusion pass: one walk down the stack computing, per window, the region
// obscured by everything opaque above it. Returns the windows to paint,
// bottommost first, so translucent content blends over what is already
// drawn.
func (s *Session) paintPreprocess() []*window.Managed {
	// Transitions complete once per frame. Destroying windows are freed
	// here; the iterator tolerates removal of the current entry. A freed
	// window leaves the stack before the toPaint pass below can notice it
	// disappearing, so its last extents are damaged here.
	s.reg.ForEachManaged(func(w *window.Managed) {
		ext := w.Extents()
		if s.reg.FinishTransition(s, w) {
			s.AddDamage(ext)
		}
	})

	var topFirst []*window.Managed

	// cur is the shared accumulator handle. Windows whose cache is invalid
	// pick up the current pointer; opaque footprints grow it copy-on-write.
	empty := region.Region{}
	cur := &empty
	chainValid := true

	s.reg.ForEachManaged(func(w *window.Managed) {
		// An invalidation above poisons every cache below it.
		valid := chainValid && w.RegIgnoreValid && w.RegIgnore != nil

		toPaint := true
		switch {
		case w.State == window.StateUnmapped:
			toPaint = false
		case !w.EverDamaged &&
			w.State != window.StateUnmapping && w.State != window.StateDestroying:
			// Never drew anything; painting it would show uninitialized
			// content.
			toPaint = false
		case !w.BoundingShapeGlobal().Intersects(s.screen):
			toPaint = false
		case w.Flags.All(window.FlagImageError) || w.Image == nil:
			toPaint = false
		}

		if toPaint != w.ToPaint {
			// Appearing or disappearing content: its boundary must be
			// redrawn, and the occlusion below it recomputed.
			valid = false
			w.ToPaint = toPaint
			s.AddDamage(w.Extents())
		}

		if valid {
			cur = w.RegIgnore
		} else {
			w.RegIgnore = cur
			w.RegIgnoreValid = true
			chainValid = false
		}

		if !toPaint {
			return
		}
		if w.Mode != window.ModeTrans {
			grown := cur.Union(w.OpaqueFootprint())
			cur = &grown
		}
		topFirst = append(topFirst, w)
	})

	// Reverse into paint order: bottommost drawn first.
	order := make([]*window.Managed, len(topFirst))
	for i, w := range topFirst {
		order[len(order)-1-i] = w
	}
	return order
}

// paintAll issues the backend calls for one frame and rotates the damage
// history. A resetting device abandons the frame before any call is made.
func (s *Session) paintAll(order []*window.Managed) error {
	if backend.Status(s.renderer) == backend.DeviceResetting {
		return backend.ErrDeviceReset
	}

	ignoreHistory := s.forceRepaint || !s.cfg.UseDamage
	s.forceRepaint = false
	repaint := s.tracker.Repaint(backend.Age(s.renderer), ignoreHistory)
	if repaint.Empty() {
		return nil
	}

	// Background first; every window composes over it.
	if s.rootImage != nil {
		s.renderer.Compose(s.rootImage, image.Point{}, repaint, s.screen)
	} else {
		bg := s.cfg.Background
		s.renderer.Fill(backend.Color{R: bg.R, G: bg.G, B: bg.B, A: bg.A}, repaint)
	}

	for _, w := range order {
		clip := repaint
		visible := s.screen
		if w.RegIgnore != nil {
			clip = clip.Subtract(*w.RegIgnore)
			visible = visible.Subtract(*w.RegIgnore)
		}
		clip = clip.Intersect(w.BoundingShapeGlobal())
		if clip.Empty() {
			continue
		}
		s.renderer.Compose(w.Image, image.Pt(w.Geometry.X, w.Geometry.Y), clip, visible)
	}

	s.tracker.Advance()

	if p, ok := s.renderer.(backend.Presenter); ok {
		if err := p.Present(repaint); err != nil {
			return fmt.Errorf("presenting frame: %w", err)
		}
	}
	return nil
}
