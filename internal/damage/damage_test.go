package damage

import (
	"testing"

	"github.com/lumenwm/lumen/internal/region"
)

func newTestTracker(capacity int) *Tracker {
	t := New(capacity, region.Rect(0, 0, 800, 600))
	t.Enable()
	return t
}

func TestRepaintAgeOne(t *testing.T) {
	tr := newTestTracker(3)
	r := region.Rect(10, 10, 50, 50)
	tr.Add(r)
	tr.Advance()
	// The frame just presented damaged exactly r, so an age-1 buffer needs
	// nothing; the damage recorded before Advance belongs to the previous
	// slot, reachable as age 2.
	if got := tr.Repaint(2, false); !got.Equal(r) {
		t.Fatalf("Repaint(2) = %v, want %v", got, r)
	}
}

func TestRepaintCurrentFrame(t *testing.T) {
	tr := newTestTracker(3)
	r := region.Rect(10, 10, 50, 50)
	tr.Add(r)
	// Before Advance, age 1 covers the damage accumulated this frame.
	if got := tr.Repaint(1, false); !got.Equal(r) {
		t.Fatalf("Repaint(1) = %v, want %v", got, r)
	}
}

func TestRepaintAccumulates(t *testing.T) {
	tr := newTestTracker(3)
	r1 := region.Rect(0, 0, 10, 10)
	r2 := region.Rect(100, 100, 110, 110)
	tr.Add(r1)
	tr.Add(r2)
	want := r1.Union(r2)
	if got := tr.Repaint(1, false); !got.Equal(want) {
		t.Fatalf("Repaint(1) = %v, want %v", got, want)
	}
}

func TestRepaintClipsToScreen(t *testing.T) {
	tr := newTestTracker(2)
	tr.Add(region.Rect(790, 590, 900, 700))
	want := region.Rect(790, 590, 800, 600)
	if got := tr.Repaint(1, false); !got.Equal(want) {
		t.Fatalf("Repaint(1) = %v, want %v", got, want)
	}
}

func TestRepaintFallsBackToFullScreen(t *testing.T) {
	tr := newTestTracker(2)
	tr.Add(region.Rect(0, 0, 5, 5))
	screen := tr.Screen()

	for name, got := range map[string]region.Region{
		"age exceeds capacity": tr.Repaint(3, false),
		"unknown age":          tr.Repaint(-1, false),
		"zero age":             tr.Repaint(0, false),
		"ignore damage":        tr.Repaint(1, true),
	} {
		if !got.Equal(screen) {
			t.Errorf("%s: got %v, want full screen", name, got)
		}
	}
}

func TestZeroCapacityAlwaysFullScreen(t *testing.T) {
	tr := newTestTracker(0)
	tr.Add(region.Rect(0, 0, 5, 5)) // dropped
	tr.Advance()                    // no-op
	if got := tr.Repaint(1, false); !got.Equal(tr.Screen()) {
		t.Fatalf("capacity 0 must always repaint the full screen, got %v", got)
	}
}

func TestAdvanceEvictsOldDamage(t *testing.T) {
	tr := newTestTracker(2)
	old := region.Rect(0, 0, 10, 10)
	tr.Add(old)
	tr.Advance()
	tr.Advance()
	// The slot holding `old` has been recycled and cleared.
	if got := tr.Repaint(2, false); !got.Empty() {
		t.Fatalf("expected no damage after history wrapped, got %v", got)
	}
}

func TestInactiveTrackerDropsDamage(t *testing.T) {
	tr := New(2, region.Rect(0, 0, 100, 100))
	tr.Add(region.Rect(0, 0, 10, 10))
	tr.Enable()
	if got := tr.Repaint(1, false); !got.Empty() {
		t.Fatalf("damage added while inactive must be dropped, got %v", got)
	}
}
