package window

import (
	"strings"

	"github.com/BurntSushi/xgb/xproto"
)

// FlagSet is the typed staleness/validity bitset carried by every managed
// window. Events set flags; the critical section resolves and clears them.
type FlagSet uint32

const (
	// FlagPendingMap records a MapNotify that has not been applied yet.
	// Map transitions happen in the critical section, not in event handlers.
	FlagPendingMap FlagSet = 1 << iota
	// FlagPixmapStale means the named window pixmap may have changed
	// identity and the backend image must be released and rebound.
	FlagPixmapStale
	// FlagPixmapNone means no backend image is currently bound.
	FlagPixmapNone
	// FlagImageError marks a failed bind; the window is excluded from
	// painting until a later rebind clears it.
	FlagImageError
	// FlagSizeStale / FlagPositionStale mean pending geometry has not been
	// applied to the window yet.
	FlagSizeStale
	FlagPositionStale
	// FlagClientStale means the client window needs to be re-detected.
	FlagClientStale
	// FlagPropertyStale means one or more window properties need refetching.
	FlagPropertyStale
	// FlagFactorChanged means something that can alter the paint mode or
	// painting decisions changed; handled last in the critical section.
	FlagFactorChanged
)

// FlagImagesStale covers every flag that requires backend image work.
const FlagImagesStale = FlagPixmapStale

func (f *FlagSet) Set(bits FlagSet)   { *f |= bits }
func (f *FlagSet) Clear(bits FlagSet) { *f &^= bits }

// Any reports whether at least one of bits is set.
func (f FlagSet) Any(bits FlagSet) bool { return f&bits != 0 }

// All reports whether every bit in bits is set.
func (f FlagSet) All(bits FlagSet) bool { return f&bits == bits }

func (f FlagSet) String() string {
	names := []struct {
		bit  FlagSet
		name string
	}{
		{FlagPendingMap, "pending-map"},
		{FlagPixmapStale, "pixmap-stale"},
		{FlagPixmapNone, "no-pixmap"},
		{FlagImageError, "image-error"},
		{FlagSizeStale, "size-stale"},
		{FlagPositionStale, "position-stale"},
		{FlagClientStale, "client-stale"},
		{FlagPropertyStale, "property-stale"},
		{FlagFactorChanged, "factor-changed"},
	}
	var set []string
	for _, n := range names {
		if f.All(n.bit) {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, "|")
}

// PropSet tracks which window properties are stale, keyed by atom.
type PropSet map[xproto.Atom]struct{}

// Mark records prop as stale.
func (p PropSet) Mark(prop xproto.Atom) { p[prop] = struct{}{} }

// TakeStale reports whether prop was stale and clears it.
func (p PropSet) TakeStale(prop xproto.Atom) bool {
	_, ok := p[prop]
	if ok {
		delete(p, prop)
	}
	return ok
}

// Reset clears all stale marks.
func (p PropSet) Reset() {
	for k := range p {
		delete(p, k)
	}
}
