package region

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnionDisjoint(t *testing.T) {
	a := Rect(0, 0, 10, 10)
	b := Rect(20, 20, 30, 30)
	u := a.Union(b)
	if u.NumRects() != 2 {
		t.Fatalf("expected 2 rects, got %d: %v", u.NumRects(), u)
	}
	if !u.Contains(5, 5) || !u.Contains(25, 25) {
		t.Fatalf("union missing pixels: %v", u)
	}
	if u.Contains(15, 15) {
		t.Fatalf("union covers pixels of neither operand: %v", u)
	}
}

func TestUnionOverlappingCoalesces(t *testing.T) {
	// Two horizontally adjacent rects in the same band must coalesce into one.
	u := Rect(0, 0, 10, 10).Union(Rect(10, 0, 20, 10))
	want := Rect(0, 0, 20, 10)
	if !u.Equal(want) {
		t.Fatalf("got %v, want %v", u, want)
	}
	// Vertically adjacent bands with identical spans must coalesce too.
	u = Rect(0, 0, 10, 5).Union(Rect(0, 5, 10, 10))
	if !u.Equal(Rect(0, 0, 10, 10)) {
		t.Fatalf("vertical coalesce failed: %v", u)
	}
}

func TestIntersect(t *testing.T) {
	got := Rect(0, 0, 100, 100).Intersect(Rect(50, 50, 200, 200))
	want := Rect(50, 50, 100, 100)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !Rect(0, 0, 10, 10).Intersect(Rect(10, 0, 20, 10)).Empty() {
		t.Fatal("touching rectangles should not intersect")
	}
}

func TestSubtract(t *testing.T) {
	// Punch a hole in the middle; the result covers everything but the hole.
	outer := Rect(0, 0, 30, 30)
	hole := Rect(10, 10, 20, 20)
	got := outer.Subtract(hole)
	for _, tc := range []struct {
		x, y int
		in   bool
	}{
		{5, 5, true}, {15, 5, true}, {25, 25, true},
		{15, 15, false}, {10, 10, false}, {19, 19, false},
	} {
		if got.Contains(tc.x, tc.y) != tc.in {
			t.Errorf("Contains(%d,%d) = %v, want %v", tc.x, tc.y, !tc.in, tc.in)
		}
	}
	// Subtracting everything leaves nothing.
	if !outer.Subtract(outer).Empty() {
		t.Fatal("self-subtraction should be empty")
	}
	// Subtracting a disjoint region is a no-op.
	if diff := cmp.Diff(outer.Rects(), outer.Subtract(Rect(100, 100, 110, 110)).Rects()); diff != "" {
		t.Fatalf("disjoint subtract changed region (-want +got):\n%s", diff)
	}
}

func TestSubtractThenUnionRestores(t *testing.T) {
	a := FromRects([]image.Rectangle{
		image.Rect(0, 0, 50, 50),
		image.Rect(100, 0, 150, 80),
	})
	b := Rect(20, 20, 120, 40)
	restored := a.Subtract(b).Union(a.Intersect(b))
	if !restored.Equal(a) {
		t.Fatalf("(a-b) ∪ (a∩b) != a:\n got %v\nwant %v", restored, a)
	}
}

func TestCanonicalEquality(t *testing.T) {
	// The same pixel set built two different ways must compare equal.
	a := Rect(0, 0, 20, 10).Union(Rect(0, 10, 20, 20))
	b := Rect(0, 0, 10, 20).Union(Rect(10, 0, 20, 20))
	if !a.Equal(b) {
		t.Fatalf("canonical forms differ: %v vs %v", a, b)
	}
	if a.NumRects() != 1 {
		t.Fatalf("expected a single canonical rect, got %v", a)
	}
}

func TestTranslate(t *testing.T) {
	got := Rect(0, 0, 10, 10).Translate(5, -3)
	if !got.Equal(Rect(5, -3, 15, 7)) {
		t.Fatalf("got %v", got)
	}
	// Translating the empty region stays empty.
	if !(Region{}).Translate(1, 1).Empty() {
		t.Fatal("empty region translated to non-empty")
	}
}

func TestBoundsAndEmpty(t *testing.T) {
	var zero Region
	if !zero.Empty() || zero.Contains(0, 0) {
		t.Fatal("zero region should be empty")
	}
	r := Rect(5, 5, 10, 10).Union(Rect(-3, 0, 0, 2))
	if got, want := r.Bounds(), image.Rect(-3, 0, 10, 10); got != want {
		t.Fatalf("Bounds() = %v, want %v", got, want)
	}
	if !FromRect(image.Rect(3, 3, 3, 9)).Empty() {
		t.Fatal("degenerate rect should produce the empty region")
	}
}

func TestIntersects(t *testing.T) {
	a := Rect(0, 0, 10, 10)
	if a.Intersects(Rect(10, 10, 20, 20)) {
		t.Fatal("corner-touching regions do not share pixels")
	}
	if !a.Intersects(Rect(9, 9, 20, 20)) {
		t.Fatal("overlapping regions must intersect")
	}
}
