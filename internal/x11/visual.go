package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/backend"
)

// FormatTable maps visuals to the picture format info backends need when
// binding a pixmap drawn with that visual.
type FormatTable struct {
	byVisual map[xproto.Visualid]backend.PixmapFormat
	root     backend.PixmapFormat
}

// QueryFormats fetches the server's picture formats and indexes them by
// visual. rootVisual is the visual of the root window.
func (c *Connection) QueryFormats(rootVisual xproto.Visualid) (*FormatTable, error) {
	reply, err := render.QueryPictFormats(c.Conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("querying picture formats: %w", err)
	}

	byID := make(map[render.Pictformat]render.Pictforminfo, len(reply.Formats))
	for _, fi := range reply.Formats {
		byID[fi.Id] = fi
	}

	t := &FormatTable{byVisual: make(map[xproto.Visualid]backend.PixmapFormat)}
	for _, screen := range reply.Screens {
		for _, depth := range screen.Depths {
			for _, pv := range depth.Visuals {
				fi, ok := byID[pv.Format]
				if !ok {
					continue
				}
				t.byVisual[pv.Visual] = backend.PixmapFormat{
					Visual:   pv.Visual,
					Depth:    depth.Depth,
					Format:   pv.Format,
					HasAlpha: fi.Direct.AlphaMask != 0,
				}
			}
		}
	}

	root, ok := t.byVisual[rootVisual]
	if !ok {
		return nil, fmt.Errorf("no picture format for root visual %#x", rootVisual)
	}
	t.root = root
	return t, nil
}

// ForVisual returns the format of a visual, or false when the server never
// advertised one for it.
func (t *FormatTable) ForVisual(v xproto.Visualid) (backend.PixmapFormat, bool) {
	f, ok := t.byVisual[v]
	return f, ok
}

// Root returns the root window's format.
func (t *FormatTable) Root() backend.PixmapFormat { return t.root }
