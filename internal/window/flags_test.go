package window

import "testing"

func TestFlagSetOps(t *testing.T) {
	var f FlagSet
	f.Set(FlagPixmapStale | FlagSizeStale)

	if !f.Any(FlagPixmapStale | FlagPropertyStale) {
		t.Fatal("Any should see the one set bit")
	}
	if f.All(FlagPixmapStale | FlagPropertyStale) {
		t.Fatal("All requires every bit")
	}
	if !f.All(FlagPixmapStale | FlagSizeStale) {
		t.Fatal("All should hold for set bits")
	}

	f.Clear(FlagSizeStale)
	if f.Any(FlagSizeStale) {
		t.Fatal("Clear did not clear")
	}
	if got := f.String(); got != "pixmap-stale" {
		t.Fatalf("String() = %q", got)
	}
	f.Clear(FlagPixmapStale)
	if got := f.String(); got != "none" {
		t.Fatalf("String() = %q", got)
	}
}

func TestPropSet(t *testing.T) {
	p := make(PropSet)
	p.Mark(42)
	if !p.TakeStale(42) {
		t.Fatal("marked prop should be stale")
	}
	if p.TakeStale(42) {
		t.Fatal("TakeStale must clear the mark")
	}
}
