// Package window holds the per-window compositing state: the stack, the
// map/unmap/destroy lifecycle, and the staleness flags that drive backend
// resource binding. All of it is mutated by the compositor's single event
// loop; nothing here is safe for concurrent use.
package window

import (
	"image"

	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/backend"
	"github.com/lumenwm/lumen/internal/region"
)

// State is the lifecycle state of a managed window. It intentionally does
// not mirror the protocol map state: a protocol-visible change
// (map/unmap/destroy) moves the window into a transition state, and the
// transition completes separately, possibly a frame later.
type State int

const (
	// StateUnmapped is the initial state, and the terminal state of
	// dormant windows.
	StateUnmapped State = iota
	StateMapping
	StateMapped
	StateUnmapping
	// StateDestroying is terminal; finishing it removes the window.
	StateDestroying
)

func (s State) String() string {
	switch s {
	case StateUnmapped:
		return "unmapped"
	case StateMapping:
		return "mapping"
	case StateMapped:
		return "mapped"
	case StateUnmapping:
		return "unmapping"
	case StateDestroying:
		return "destroying"
	}
	return "invalid"
}

// Mode is the paint mode of a window.
type Mode int

const (
	// ModeTrans: the whole window may be translucent.
	ModeTrans Mode = iota
	// ModeFrameTrans: the WM frame is translucent, the client body opaque.
	ModeFrameTrans
	// ModeSolid: the whole window is opaque.
	ModeSolid
)

func (m Mode) String() string {
	switch m {
	case ModeTrans:
		return "translucent"
	case ModeFrameTrans:
		return "frame-translucent"
	case ModeSolid:
		return "solid"
	}
	return "invalid"
}

// Kind is the EWMH window type, reduced to the categories that matter for
// compositing.
type Kind int

const (
	KindUnknown Kind = iota
	KindNormal
	KindDialog
	KindDock
	KindDesktop
	KindMenu
	KindDropdown
	KindPopup
	KindTooltip
	KindNotification
	KindUtility
	KindToolbar
	KindSplash
	KindCombo
	KindDND
)

func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindDialog:
		return "dialog"
	case KindDock:
		return "dock"
	case KindDesktop:
		return "desktop"
	case KindMenu:
		return "menu"
	case KindDropdown:
		return "dropdown-menu"
	case KindPopup:
		return "popup-menu"
	case KindTooltip:
		return "tooltip"
	case KindNotification:
		return "notification"
	case KindUtility:
		return "utility"
	case KindToolbar:
		return "toolbar"
	case KindSplash:
		return "splash"
	case KindCombo:
		return "combo"
	case KindDND:
		return "dnd"
	}
	return "unknown"
}

// KindFromTypes maps _NET_WM_WINDOW_TYPE atom names to a Kind, taking the
// first recognized entry. Windows without a recognized type fall back on
// WM_TRANSIENT_FOR (dialogs) and override-redirect (popups).
func KindFromTypes(types []string, transient, overrideRedirect bool) Kind {
	for _, t := range types {
		if k, ok := kindsByAtom[t]; ok {
			return k
		}
	}
	if transient {
		return KindDialog
	}
	if overrideRedirect {
		return KindPopup
	}
	return KindNormal
}

var kindsByAtom = map[string]Kind{
	"_NET_WM_WINDOW_TYPE_NORMAL":        KindNormal,
	"_NET_WM_WINDOW_TYPE_DIALOG":        KindDialog,
	"_NET_WM_WINDOW_TYPE_DOCK":          KindDock,
	"_NET_WM_WINDOW_TYPE_DESKTOP":       KindDesktop,
	"_NET_WM_WINDOW_TYPE_MENU":          KindMenu,
	"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU": KindDropdown,
	"_NET_WM_WINDOW_TYPE_POPUP_MENU":    KindPopup,
	"_NET_WM_WINDOW_TYPE_TOOLTIP":       KindTooltip,
	"_NET_WM_WINDOW_TYPE_NOTIFICATION":  KindNotification,
	"_NET_WM_WINDOW_TYPE_UTILITY":       KindUtility,
	"_NET_WM_WINDOW_TYPE_TOOLBAR":       KindToolbar,
	"_NET_WM_WINDOW_TYPE_SPLASH":        KindSplash,
	"_NET_WM_WINDOW_TYPE_COMBO":         KindCombo,
	"_NET_WM_WINDOW_TYPE_DND":           KindDND,
}

// Geometry is a window's position and size in root coordinates.
type Geometry struct {
	X, Y          int
	Width, Height int
}

// Margins are frame extents around the client window.
type Margins struct {
	Left, Right, Top, Bottom int
}

// Zero reports whether the window has no WM frame.
func (m Margins) Zero() bool {
	return m.Left == 0 && m.Right == 0 && m.Top == 0 && m.Bottom == 0
}

// Window is a stack entry for any top-level window we know about. Unmanaged
// entries (input-only windows, windows that vanished before we could query
// them) persist purely for stacking bookkeeping.
type Window struct {
	ID xproto.Window
	// Destroyed is set once the protocol side of the window is gone.
	Destroyed bool
	// IsNew is set between CreateNotify and the attribute fetch in the
	// next critical section.
	IsNew bool
	// Managed is nil for unmanaged windows.
	Managed *Managed
}

// Managed is the compositing state of a redirected window.
type Managed struct {
	Base *Window

	State State
	Mode  Mode

	// Geometry is the applied geometry; PendingGeometry is what events have
	// reported and is applied in the next critical section.
	Geometry        Geometry
	PendingGeometry Geometry

	// BoundingShape is the window's shape in local coordinates, already
	// clipped to the window rectangle.
	BoundingShape region.Region
	Shaped        bool
	FrameExtents  Margins

	Flags      FlagSet
	StaleProps PropSet

	// RegIgnore is the region obscured by everything above this window, in
	// root coordinates. Shared between windows; treat the pointed-to value
	// as immutable. Nil means not computed.
	RegIgnore      *region.Region
	RegIgnoreValid bool

	// Image is the bound backend image. Non-nil exactly while the state is
	// Mapping or Mapped and no image error is flagged.
	Image backend.Image

	// EverDamaged is whether the window has been damaged at least once
	// since it was mapped.
	EverDamaged bool
	// ToPaint remembers the previous frame's painting decision.
	ToPaint bool
	// InOpenClose is true while the window is opening or closing.
	InOpenClose bool

	ClientWin        xproto.Window
	OverrideRedirect bool
	Viewable         bool
	Visual           xproto.Visualid
	Depth            byte
	HasAlpha         bool
	ClientHasAlpha   bool

	Name  string
	Class string
	Kind  Kind

	// Opacity is the _NET_WM_WINDOW_OPACITY value as a fraction; 1 when the
	// property is absent.
	Opacity float64

	Damage  damage.Damage
	Monitor int
}

// Extents returns the rectangular region the window occupies, in root
// coordinates.
func (w *Managed) Extents() region.Region {
	g := w.Geometry
	return region.FromRect(image.Rect(g.X, g.Y, g.X+g.Width, g.Y+g.Height))
}

// BoundingShapeGlobal returns the bounding shape in root coordinates.
func (w *Managed) BoundingShapeGlobal() region.Region {
	return w.BoundingShape.Translate(w.Geometry.X, w.Geometry.Y)
}

// RegionNoFrameLocal returns the client area (bounding rectangle minus the
// frame margins) in local coordinates.
func (w *Managed) RegionNoFrameLocal() region.Region {
	g := w.Geometry
	m := w.FrameExtents
	return region.FromRect(image.Rect(m.Left, m.Top, g.Width-m.Right, g.Height-m.Bottom))
}

// OpaqueFootprint returns the region guaranteed opaque, in root coordinates,
// or the empty region for fully translucent windows.
func (w *Managed) OpaqueFootprint() region.Region {
	switch w.Mode {
	case ModeSolid:
		return w.BoundingShapeGlobal()
	case ModeFrameTrans:
		return w.RegionNoFrameLocal().
			Intersect(w.BoundingShape).
			Translate(w.Geometry.X, w.Geometry.Y)
	default:
		return region.Region{}
	}
}

// HasFrame reports whether the window has WM frame margins.
func (w *Managed) HasFrame() bool { return !w.FrameExtents.Zero() }

// CalcMode derives the paint mode from the opacity, visual and frame
// information.
func (w *Managed) CalcMode() Mode {
	if w.Opacity < 1 {
		return ModeTrans
	}
	if w.HasAlpha {
		if w.ClientWin == xproto.WindowNone {
			// Not managed by a WM and has alpha: translucent.
			return ModeTrans
		}
		if w.ClientHasAlpha {
			return ModeTrans
		}
		if w.HasFrame() {
			return ModeFrameTrans
		}
		// The frame has zero size, so the alpha channel of the WM window
		// never shows.
	}
	return ModeSolid
}

// OnFactorChange re-derives everything that depends on window properties
// and invalidates the cached occlusion state.
func (w *Managed) OnFactorChange() {
	w.Mode = w.CalcMode()
	w.RegIgnoreValid = false
}

// OnSizeChange refreshes size-derived state and schedules an image rebind.
func (w *Managed) OnSizeChange() {
	w.Flags.Set(FlagImagesStale)
}

// RealVisible reports whether the window has content worth painting
// updates for: it is mapped, or on its way to being mapped.
func (w *Managed) RealVisible() bool {
	return w.State == StateMapping || w.State == StateMapped
}

// Registry owns every window we know about: an id index plus the top-to-
// bottom window stack. Entry identity is stable across restacking.
type Registry struct {
	byID  map[xproto.Window]*Window
	stack []*Window // index 0 is the top of the stack
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[xproto.Window]*Window)}
}

// Len returns the number of stack entries.
func (r *Registry) Len() int { return len(r.stack) }

// Find returns the window with the given id, or nil.
func (r *Registry) Find(id xproto.Window) *Window {
	if id == xproto.WindowNone {
		return nil
	}
	return r.byID[id]
}

// FindManaged returns the managed window with the given id, or nil. Windows
// being destroyed are no longer in the registry.
func (r *Registry) FindManaged(id xproto.Window) *Managed {
	w := r.Find(id)
	if w == nil {
		return nil
	}
	return w.Managed
}

// FindByClient returns the managed window whose client window is id, or nil.
func (r *Registry) FindByClient(id xproto.Window) *Managed {
	if id == xproto.WindowNone {
		return nil
	}
	for _, w := range r.stack {
		if w.Managed != nil && w.Managed.ClientWin == id {
			return w.Managed
		}
	}
	return nil
}

// AddTop inserts a new unmanaged entry at the top of the stack.
func (r *Registry) AddTop(id xproto.Window) *Window {
	return r.addAt(id, 0)
}

// AddAbove inserts a new entry right above the window with id below. If
// below is unknown and the stack is non-empty the insert is rejected.
func (r *Registry) AddAbove(id, below xproto.Window) *Window {
	bw := r.Find(below)
	if bw == nil {
		if len(r.stack) != 0 {
			return nil
		}
		return r.AddTop(id)
	}
	return r.addAt(id, r.indexOf(bw))
}

func (r *Registry) addAt(id xproto.Window, idx int) *Window {
	if r.byID[id] != nil {
		return nil
	}
	w := &Window{ID: id, IsNew: true}
	r.stack = append(r.stack, nil)
	copy(r.stack[idx+1:], r.stack[idx:])
	r.stack[idx] = w
	r.byID[id] = w
	return w
}

func (r *Registry) indexOf(w *Window) int {
	for i, e := range r.stack {
		if e == w {
			return i
		}
	}
	return -1
}

// remove drops w from both the stack and the id index.
func (r *Registry) remove(w *Window) {
	if i := r.indexOf(w); i >= 0 {
		r.stack = append(r.stack[:i], r.stack[i+1:]...)
	}
	if r.byID[w.ID] == w {
		delete(r.byID, w.ID)
	}
}

// Unindex removes w from the id index but keeps it in the stack. Used when
// destruction starts: a future window may reuse the id while this one is
// still being painted out.
func (r *Registry) Unindex(w *Window) {
	if r.byID[w.ID] == w {
		delete(r.byID, w.ID)
	}
}

// Promote replaces the unmanaged entry w with a managed window carrying the
// same identity and stack position.
func (r *Registry) Promote(w *Window) *Managed {
	m := &Managed{
		Base:        w,
		State:       StateUnmapped,
		Mode:        ModeTrans,
		InOpenClose: true, // the window was just created
		Flags:       FlagPixmapNone,
		StaleProps:  make(PropSet),
		Opacity:     1,
		Monitor:     -1,
	}
	w.IsNew = false
	w.Managed = m
	return m
}

// RestackAbove moves w so it sits right above the window with id below, or
// to the bottom of the stack when below is none. Identity of entries never
// changes, only position.
func (r *Registry) RestackAbove(w *Window, below xproto.Window) {
	cur := r.indexOf(w)
	if cur < 0 {
		return
	}
	target := len(r.stack) // bottom
	if below != xproto.WindowNone {
		bw := r.Find(below)
		if bw == nil {
			return
		}
		target = r.indexOf(bw)
	}
	r.restackTo(w, cur, target)
}

// RestackTop moves w to the top of the stack.
func (r *Registry) RestackTop(w *Window) {
	if len(r.stack) > 0 && r.stack[0] == w {
		return
	}
	if cur := r.indexOf(w); cur >= 0 {
		r.restackTo(w, cur, 0)
	}
}

func (r *Registry) restackTo(w *Window, cur, target int) {
	// Invalidating w covers everything below its new position; the first
	// managed window below the old position covers the rest.
	if m := w.Managed; m != nil {
		m.RegIgnoreValid = false
		m.RegIgnore = nil
	}
	r.invalidateBelow(cur + 1)
	r.stack = append(r.stack[:cur], r.stack[cur+1:]...)
	if target > cur {
		target--
	}
	r.stack = append(r.stack[:target], append([]*Window{w}, r.stack[target:]...)...)
}

// RestackBottom moves w to the bottom of the stack.
func (r *Registry) RestackBottom(w *Window) {
	r.RestackAbove(w, xproto.WindowNone)
}

// invalidateBelow drops the cached ignore region of the topmost managed
// window at or below stack index idx; the occlusion pass recomputes
// everything beneath it.
func (r *Registry) invalidateBelow(idx int) {
	for i := idx; i < len(r.stack); i++ {
		if m := r.stack[i].Managed; m != nil {
			m.RegIgnoreValid = false
			m.RegIgnore = nil
			return
		}
	}
}

// InvalidateTop drops the top managed window's cached ignore region, which
// forces a full occlusion recomputation (used on root geometry changes).
func (r *Registry) InvalidateTop() {
	r.invalidateBelow(0)
}

// TopToBottom calls fn for every stack entry from top to bottom. fn may
// remove the current entry (but no other) during iteration.
func (r *Registry) TopToBottom(fn func(*Window)) {
	for i := 0; i < len(r.stack); {
		w := r.stack[i]
		fn(w)
		if i < len(r.stack) && r.stack[i] == w {
			i++
		}
	}
}

// ForEachManaged calls fn for every managed window from top to bottom. fn
// may remove the current entry during iteration.
func (r *Registry) ForEachManaged(fn func(*Managed)) {
	r.TopToBottom(func(w *Window) {
		if w.Managed != nil {
			fn(w.Managed)
		}
	})
}

// RegIgnoreValidFor reports whether the cached ignore-region state is valid
// for w, i.e. valid for every managed window above it.
func (r *Registry) RegIgnoreValidFor(w *Managed) bool {
	for _, e := range r.stack {
		if e.Managed == w {
			break
		}
		if e.Managed != nil && !e.Managed.RegIgnoreValid {
			return false
		}
	}
	return true
}
