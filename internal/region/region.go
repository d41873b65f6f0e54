// Package region implements the rectangle-set algebra the compositor uses for
// damage, occlusion and clipping.
//
// A Region is a set of pixels represented as a canonical list of
// non-overlapping rectangles, sorted into horizontal bands: rectangles in the
// same band share their vertical extent, bands are disjoint and sorted
// top-to-bottom, and rectangles within a band are sorted left-to-right with
// gaps between them. Two regions covering the same pixels always have the
// same representation, so Equal is a plain slice comparison.
//
// Regions are immutable values. Every operation returns a new Region, which
// makes sharing a *Region between windows safe: a holder that needs a
// different region builds one and swaps the pointer.
package region

import (
	"fmt"
	"image"
	"strings"
)

// Region is an immutable set of pixels.
type Region struct {
	rects []image.Rectangle
}

// FromRect returns the region covering r. An empty or inverted rectangle
// yields the empty region.
func FromRect(r image.Rectangle) Region {
	if r.Empty() {
		return Region{}
	}
	return Region{rects: []image.Rectangle{r.Canon()}}
}

// FromRects returns the region covering the union of rs.
func FromRects(rs []image.Rectangle) Region {
	var out Region
	for _, r := range rs {
		out = out.Union(FromRect(r))
	}
	return out
}

// Rect is shorthand for FromRect(image.Rect(x0, y0, x1, y1)).
func Rect(x0, y0, x1, y1 int) Region {
	return FromRect(image.Rect(x0, y0, x1, y1))
}

// Empty reports whether the region contains no pixels.
func (r Region) Empty() bool { return len(r.rects) == 0 }

// Rects returns the canonical rectangle decomposition. The caller must not
// modify the returned slice.
func (r Region) Rects() []image.Rectangle { return r.rects }

// NumRects returns the number of rectangles in the canonical decomposition.
func (r Region) NumRects() int { return len(r.rects) }

// Bounds returns the bounding rectangle of the region.
func (r Region) Bounds() image.Rectangle {
	if len(r.rects) == 0 {
		return image.Rectangle{}
	}
	b := r.rects[0]
	for _, rc := range r.rects[1:] {
		b = b.Union(rc)
	}
	return b
}

// Contains reports whether the point (x, y) is inside the region.
func (r Region) Contains(x, y int) bool {
	p := image.Pt(x, y)
	for _, rc := range r.rects {
		if p.In(rc) {
			return true
		}
	}
	return false
}

// Equal reports whether two regions cover exactly the same pixels.
func (r Region) Equal(other Region) bool {
	if len(r.rects) != len(other.rects) {
		return false
	}
	for i := range r.rects {
		if r.rects[i] != other.rects[i] {
			return false
		}
	}
	return true
}

// Translate returns the region moved by (dx, dy).
func (r Region) Translate(dx, dy int) Region {
	if len(r.rects) == 0 || (dx == 0 && dy == 0) {
		return r
	}
	out := make([]image.Rectangle, len(r.rects))
	d := image.Pt(dx, dy)
	for i, rc := range r.rects {
		out[i] = rc.Add(d)
	}
	return Region{rects: out}
}

// Union returns the region covering both r and other.
func (r Region) Union(other Region) Region {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	return merge(r, other, func(a, b bool) bool { return a || b })
}

// Intersect returns the region covering pixels in both r and other.
func (r Region) Intersect(other Region) Region {
	if r.Empty() || other.Empty() {
		return Region{}
	}
	return merge(r, other, func(a, b bool) bool { return a && b })
}

// Subtract returns the region covering pixels in r but not in other.
func (r Region) Subtract(other Region) Region {
	if r.Empty() || other.Empty() {
		return r
	}
	return merge(r, other, func(a, b bool) bool { return a && !b })
}

// Intersects reports whether r and other share any pixel.
func (r Region) Intersects(other Region) bool {
	for _, a := range r.rects {
		for _, b := range other.rects {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

func (r Region) String() string {
	if r.Empty() {
		return "region{}"
	}
	var sb strings.Builder
	sb.WriteString("region{")
	for i, rc := range r.rects {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%dx%d+%d+%d", rc.Dx(), rc.Dy(), rc.Min.X, rc.Min.Y)
	}
	sb.WriteString("}")
	return sb.String()
}

// merge computes a boolean combination of two regions band by band.
func merge(a, b Region, op func(inA, inB bool) bool) Region {
	ys := yBreaks(a.rects, b.rects)

	var out []image.Rectangle
	for i := 0; i+1 < len(ys); i++ {
		y0, y1 := ys[i], ys[i+1]
		out = appendBand(out, y0, y1, mergeBand(bandSpans(a.rects, y0), bandSpans(b.rects, y0), op))
	}
	return Region{rects: coalesce(out)}
}

// yBreaks returns the sorted, deduplicated vertical breakpoints of both
// rectangle lists. Between two consecutive breakpoints the horizontal
// structure of each region is constant.
func yBreaks(a, b []image.Rectangle) []int {
	seen := make(map[int]struct{}, 2*(len(a)+len(b)))
	var ys []int
	add := func(y int) {
		if _, ok := seen[y]; !ok {
			seen[y] = struct{}{}
			ys = append(ys, y)
		}
	}
	for _, r := range a {
		add(r.Min.Y)
		add(r.Max.Y)
	}
	for _, r := range b {
		add(r.Min.Y)
		add(r.Max.Y)
	}
	insertionSort(ys)
	return ys
}

func insertionSort(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] < xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

// span is a half-open horizontal interval [x0, x1).
type span struct{ x0, x1 int }

// bandSpans returns the horizontal spans of rects that cover the band
// starting at y. rects are sorted by (y, x), so spans come out sorted by x.
func bandSpans(rects []image.Rectangle, y int) []span {
	var out []span
	for _, r := range rects {
		if r.Min.Y <= y && y < r.Max.Y {
			out = append(out, span{r.Min.X, r.Max.X})
		}
	}
	return out
}

// mergeBand combines two sorted, disjoint span lists with op.
func mergeBand(a, b []span, op func(inA, inB bool) bool) []span {
	xs := xBreaks(a, b)

	var out []span
	for i := 0; i+1 < len(xs); i++ {
		x0, x1 := xs[i], xs[i+1]
		if op(covered(a, x0), covered(b, x0)) {
			if n := len(out); n > 0 && out[n-1].x1 == x0 {
				out[n-1].x1 = x1
			} else {
				out = append(out, span{x0, x1})
			}
		}
	}
	return out
}

func xBreaks(a, b []span) []int {
	seen := make(map[int]struct{}, 2*(len(a)+len(b)))
	var xs []int
	add := func(x int) {
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			xs = append(xs, x)
		}
	}
	for _, s := range a {
		add(s.x0)
		add(s.x1)
	}
	for _, s := range b {
		add(s.x0)
		add(s.x1)
	}
	insertionSort(xs)
	return xs
}

func covered(spans []span, x int) bool {
	for _, s := range spans {
		if s.x0 <= x && x < s.x1 {
			return true
		}
	}
	return false
}

func appendBand(out []image.Rectangle, y0, y1 int, spans []span) []image.Rectangle {
	for _, s := range spans {
		out = append(out, image.Rect(s.x0, y0, s.x1, y1))
	}
	return out
}

// coalesce merges vertically adjacent bands that have identical spans,
// restoring the canonical form.
func coalesce(rects []image.Rectangle) []image.Rectangle {
	if len(rects) == 0 {
		return nil
	}
	// Band boundaries: rects are emitted band by band, in order.
	type band struct {
		y0, y1 int
		start  int // index into rects
		n      int
	}
	var bands []band
	for i := 0; i < len(rects); {
		y0, y1 := rects[i].Min.Y, rects[i].Max.Y
		j := i
		for j < len(rects) && rects[j].Min.Y == y0 {
			j++
		}
		bands = append(bands, band{y0: y0, y1: y1, start: i, n: j - i})
		i = j
	}

	sameSpans := func(a, b band) bool {
		if a.n != b.n {
			return false
		}
		for k := 0; k < a.n; k++ {
			ra, rb := rects[a.start+k], rects[b.start+k]
			if ra.Min.X != rb.Min.X || ra.Max.X != rb.Max.X {
				return false
			}
		}
		return true
	}

	var out []image.Rectangle
	for i := 0; i < len(bands); {
		cur := bands[i]
		j := i + 1
		for j < len(bands) && bands[j].y0 == bands[j-1].y1 && sameSpans(cur, bands[j]) {
			j++
		}
		y1 := bands[j-1].y1
		for k := 0; k < cur.n; k++ {
			r := rects[cur.start+k]
			out = append(out, image.Rect(r.Min.X, cur.y0, r.Max.X, y1))
		}
		i = j
	}
	return out
}
