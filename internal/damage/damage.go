// Package damage tracks per-frame screen damage so the compositor can limit
// repaints to what actually changed.
//
// The tracker keeps a fixed ring of regions, one per recent frame, sized to
// the backend's maximum reportable buffer age. One slot accumulates the
// current frame's damage; Advance rotates the ring after each presented
// frame. When the backend cannot vouch for its retained buffer (age unknown
// or older than the history), the tracker falls back to a full-screen
// repaint instead of growing the history.
package damage

import "github.com/lumenwm/lumen/internal/region"

// Tracker is the damage history for one screen.
type Tracker struct {
	ring   []region.Region
	cur    int
	screen region.Region
	active bool
}

// New returns a tracker with the given history capacity covering screen.
// A capacity of zero means no buffer content can ever be reused and every
// repaint is full-screen.
func New(capacity int, screen region.Region) *Tracker {
	t := &Tracker{screen: screen}
	if capacity > 0 {
		t.ring = make([]region.Region, capacity)
	}
	return t
}

// Capacity returns the history depth.
func (t *Tracker) Capacity() int { return len(t.ring) }

// Screen returns the screen region damage is clipped against.
func (t *Tracker) Screen() region.Region { return t.screen }

// Enable starts accumulating damage. Called when the screen becomes
// composited; the history is cleared because none of it describes the new
// backend's buffers.
func (t *Tracker) Enable() {
	t.active = true
	for i := range t.ring {
		t.ring[i] = region.Region{}
	}
	t.cur = 0
}

// Disable stops accumulating damage.
func (t *Tracker) Disable() { t.active = false }

// Active reports whether damage is being accumulated.
func (t *Tracker) Active() bool { return t.active }

// Resize replaces the screen rectangle and clears the history.
func (t *Tracker) Resize(screen region.Region) {
	t.screen = screen
	for i := range t.ring {
		t.ring[i] = region.Region{}
	}
	t.cur = 0
}

// Add unions r into the current frame's damage. No-op while the screen is
// not being composited.
func (t *Tracker) Add(r region.Region) {
	if !t.active || len(t.ring) == 0 || r.Empty() {
		return
	}
	t.ring[t.cur] = t.ring[t.cur].Union(r)
}

// Repaint computes the region that must be repainted for a buffer of the
// requested age. ignore forces a full-screen repaint regardless of history
// (used when damage tracking is disabled or a full redraw was requested).
//
// age follows the buffer-age convention: 1 means the buffer holds exactly
// the previously presented frame. Non-positive or too-large ages mean the
// buffer cannot be trusted and yield the full screen.
func (t *Tracker) Repaint(age int, ignore bool) region.Region {
	if ignore || age <= 0 || age > len(t.ring) {
		return t.screen
	}
	var out region.Region
	n := len(t.ring)
	for i := 0; i < age; i++ {
		out = out.Union(t.ring[(t.cur+i)%n])
	}
	// Protocol-reported damage can land slightly outside the root bounds.
	return out.Intersect(t.screen)
}

// Advance rotates the ring after a presented frame: the oldest slot becomes
// the new current slot and is cleared. The current slot therefore never
// holds damage older than Capacity frames.
func (t *Tracker) Advance() {
	if len(t.ring) == 0 {
		return
	}
	t.cur--
	if t.cur < 0 {
		t.cur = len(t.ring) - 1
	}
	t.ring[t.cur] = region.Region{}
}
