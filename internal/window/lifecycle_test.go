package window

import (
	"errors"
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/region"
)

type fakeImage struct{ w, h int }

func (f fakeImage) Size() (int, int) { return f.w, f.h }

// fakeHost implements Host and UpdateHost, recording every call.
type fakeHost struct {
	redirected bool
	bindErr    error

	damage   region.Region
	binds    int
	releases int
	calls    []string
}

func (h *fakeHost) Redirected() bool { return h.redirected }

func (h *fakeHost) AddDamage(r region.Region) {
	h.calls = append(h.calls, "damage")
	h.damage = h.damage.Union(r)
}

func (h *fakeHost) BindImage(w *Managed) error {
	h.calls = append(h.calls, "bind")
	h.binds++
	if h.bindErr != nil {
		w.Flags.Set(FlagImageError)
		return h.bindErr
	}
	w.Image = fakeImage{w.Geometry.Width, w.Geometry.Height}
	w.Flags.Clear(FlagPixmapNone)
	return nil
}

func (h *fakeHost) ReleaseImage(w *Managed) {
	h.calls = append(h.calls, "release")
	if w.Image == nil {
		return
	}
	h.releases++
	w.Image = nil
	w.Flags.Set(FlagPixmapNone)
}

func (h *fakeHost) RecheckClient(w *Managed)        { h.calls = append(h.calls, "client") }
func (h *fakeHost) UpdateBoundingShape(w *Managed)  { h.calls = append(h.calls, "shape") }
func (h *fakeHost) UpdateProperties(w *Managed)     { h.calls = append(h.calls, "props") }
func (h *fakeHost) UpdateMonitor(w *Managed)        { h.calls = append(h.calls, "monitor") }

func newManaged(t *testing.T, r *Registry, id xproto.Window) *Managed {
	t.Helper()
	w := r.AddTop(id)
	if w == nil {
		t.Fatalf("window %#x already present", id)
	}
	m := r.Promote(w)
	m.Geometry = Geometry{X: 0, Y: 0, Width: 100, Height: 100}
	m.PendingGeometry = m.Geometry
	m.BoundingShape = region.Rect(0, 0, 100, 100)
	return m
}

// frame simulates what one frame does to a pending window: resolve image
// flags, then finish its transition.
func frame(r *Registry, h *fakeHost, w *Managed) bool {
	r.ProcessImageFlags(h, w)
	return r.FinishTransition(h, w)
}

func checkImageInvariant(t *testing.T, w *Managed) {
	t.Helper()
	switch w.State {
	case StateMapped, StateMapping:
		if !w.Flags.All(FlagImageError) && w.Image == nil && !w.Flags.Any(FlagImagesStale) {
			t.Fatalf("state %v without image and without image-error", w.State)
		}
	case StateUnmapped:
		if w.Image != nil {
			t.Fatalf("unmapped window still holds an image")
		}
	}
}

func TestMapUnmapImageInvariant(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)

	r.MapStart(h, w)
	if w.State != StateMapping {
		t.Fatalf("state = %v, want mapping", w.State)
	}
	if !w.Flags.All(FlagPixmapStale) {
		t.Fatal("MapStart must mark the pixmap stale")
	}

	frame(r, h, w)
	if w.State != StateMapped {
		t.Fatalf("state = %v, want mapped", w.State)
	}
	if w.Flags.Any(FlagPixmapStale) {
		t.Fatal("pixmap-stale must be clear after the bind")
	}
	if w.Image == nil {
		t.Fatal("mapped window must hold an image")
	}
	checkImageInvariant(t, w)

	w.EverDamaged = true
	r.UnmapStart(h, w)
	if w.State != StateUnmapping {
		t.Fatalf("state = %v, want unmapping", w.State)
	}
	frame(r, h, w)
	if w.State != StateUnmapped {
		t.Fatalf("state = %v, want unmapped", w.State)
	}
	checkImageInvariant(t, w)
	if h.releases != 1 {
		t.Fatalf("image released %d times, want exactly once", h.releases)
	}
}

func TestFinishTransitionIdempotent(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)

	for _, st := range []State{StateUnmapped, StateMapped} {
		w.State = st
		flags, img, open := w.Flags, w.Image, w.InOpenClose
		calls := len(h.calls)
		if r.FinishTransition(h, w) {
			t.Fatalf("FinishTransition(%v) reported destruction", st)
		}
		if w.State != st || w.Flags != flags || w.Image != img || w.InOpenClose != open {
			t.Fatalf("FinishTransition(%v) mutated the window", st)
		}
		if len(h.calls) != calls {
			t.Fatalf("FinishTransition(%v) touched the host", st)
		}
	}
}

func TestMapInterruptsUnmap(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)

	r.MapStart(h, w)
	frame(r, h, w)
	w.EverDamaged = true
	r.UnmapStart(h, w)

	// Remap before the unmap transition finished: the unmap is force-
	// finished (image released) and the old extents are damaged.
	h.damage = region.Region{}
	r.MapStart(h, w)
	if w.State != StateMapping {
		t.Fatalf("state = %v, want mapping", w.State)
	}
	if h.releases != 1 {
		t.Fatalf("in-flight unmap must release the image, releases = %d", h.releases)
	}
	if !h.damage.Equal(w.Extents()) {
		t.Fatalf("prior extents not damaged: %v", h.damage)
	}
}

func TestUnmapSkipsTransitionWithoutContent(t *testing.T) {
	r := NewRegistry()

	// Never damaged: nothing worth fading, straight to Unmapped.
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)
	r.MapStart(h, w)
	frame(r, h, w)
	r.UnmapStart(h, w)
	if w.State != StateUnmapped {
		t.Fatalf("undamaged window state = %v, want unmapped", w.State)
	}

	// Unredirected: same, there is nothing being rendered.
	h2 := &fakeHost{redirected: false}
	w2 := newManaged(t, r, 2)
	r.MapStart(h2, w2)
	w2.EverDamaged = true
	r.UnmapStart(h2, w2)
	if w2.State != StateUnmapped {
		t.Fatalf("unredirected window state = %v, want unmapped", w2.State)
	}
}

func TestDestroyUnmappedIsImmediate(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)

	if !r.DestroyStart(h, w.Base) {
		t.Fatal("destroying an unmapped window must free it immediately")
	}
	if r.Find(1) != nil || r.Len() != 0 {
		t.Fatal("window still registered after immediate destroy")
	}
}

func TestDestroyMappedDefersRemoval(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)
	r.MapStart(h, w)
	frame(r, h, w)
	w.EverDamaged = true

	if r.DestroyStart(h, w.Base) {
		t.Fatal("mapped window must not be freed before its transition finishes")
	}
	if w.State != StateDestroying {
		t.Fatalf("state = %v, want destroying", w.State)
	}
	// Id is already unregistered so a reused id cannot alias this window.
	if r.Find(1) != nil {
		t.Fatal("destroyed window still reachable by id")
	}
	if r.Len() != 1 {
		t.Fatal("destroying window must stay in the stack")
	}

	if !r.FinishTransition(h, w) {
		t.Fatal("FinishTransition on a destroying window must report removal")
	}
	if r.Len() != 0 {
		t.Fatal("window left in the stack after destruction finished")
	}
	if h.releases != 1 {
		t.Fatalf("image released %d times, want exactly once", h.releases)
	}
}

func TestDestroyClearsUnresolvableStaleness(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)
	r.MapStart(h, w)
	frame(r, h, w)
	w.EverDamaged = true

	w.Flags.Set(FlagSizeStale | FlagPropertyStale | FlagClientStale | FlagPixmapStale)
	h.damage = region.Region{}
	r.DestroyStart(h, w.Base)

	if w.Flags.Any(FlagSizeStale | FlagPositionStale | FlagPropertyStale |
		FlagClientStale | FlagFactorChanged | FlagImagesStale) {
		t.Fatalf("staleness not cleared on destroy: %v", w.Flags)
	}
	// The pending geometry update can never be applied; its damage
	// contribution is accounted from the current extents instead.
	if !h.damage.Equal(w.Extents()) {
		t.Fatalf("missing last damage contribution, got %v", h.damage)
	}
}

func TestMapStartOnDestroyingPanics(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)
	r.MapStart(h, w)
	frame(r, h, w)
	w.EverDamaged = true
	r.DestroyStart(h, w.Base)

	defer func() {
		if recover() == nil {
			t.Fatal("MapStart on a destroying window must panic")
		}
	}()
	r.MapStart(h, w)
}

func TestBindFailureMarksImageError(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true, bindErr: errors.New("no pixmap")}
	w := newManaged(t, r, 1)

	r.MapStart(h, w)
	frame(r, h, w)
	if !w.Flags.All(FlagImageError) {
		t.Fatal("failed bind must set image-error")
	}
	if w.Image != nil {
		t.Fatal("failed bind must not leave an image handle")
	}

	// A later rebind attempt clears the error: unmap resets it.
	r.UnmapStart(h, w)
	if w.Flags.All(FlagImageError) {
		t.Fatal("unmap must clear image-error so the next map retries")
	}

	h.bindErr = nil
	r.MapStart(h, w)
	frame(r, h, w)
	if w.Image == nil || w.Flags.All(FlagImageError) {
		t.Fatal("rebind after a failure must succeed")
	}
}

func TestUpdateFlagsOrderAndDamage(t *testing.T) {
	r := NewRegistry()
	h := &fakeHost{redirected: true}
	w := newManaged(t, r, 1)
	r.MapStart(h, w)
	frame(r, h, w)

	w.PendingGeometry = Geometry{X: 10, Y: 20, Width: 50, Height: 60}
	w.Flags.Set(FlagClientStale | FlagSizeStale | FlagPositionStale | FlagPropertyStale)

	h.calls = nil
	h.damage = region.Region{}
	r.ProcessUpdateFlags(h, w)

	if w.Geometry != w.PendingGeometry {
		t.Fatalf("pending geometry not applied: %+v", w.Geometry)
	}
	// Client re-detection precedes property updates; damage covers both the
	// old and the new extents.
	want := []string{"client", "damage", "shape", "monitor", "props", "damage"}
	if len(h.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", h.calls, want)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", h.calls, want)
		}
	}
	old := region.Rect(0, 0, 100, 100)
	if !h.damage.Equal(old.Union(w.Extents())) {
		t.Fatalf("damage = %v, want old ∪ new extents", h.damage)
	}
	if !w.Flags.Any(FlagImagesStale) {
		t.Fatal("size change must mark images stale")
	}
}

func TestRestackKeepsIdentity(t *testing.T) {
	r := NewRegistry()
	a := r.AddTop(1)
	b := r.AddTop(2) // stack: b, a
	c := r.AddTop(3) // stack: c, b, a

	r.RestackAbove(a, 2) // a goes right above b: c, a, b
	order := make([]*Window, 0, 3)
	r.TopToBottom(func(w *Window) { order = append(order, w) })
	if order[0] != c || order[1] != a || order[2] != b {
		t.Fatalf("unexpected stack order: %v %v %v", order[0].ID, order[1].ID, order[2].ID)
	}

	r.RestackTop(b)
	if r.Find(2) != b {
		t.Fatal("restacking must not change entry identity")
	}
}
