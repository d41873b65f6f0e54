// Package xrender composites with the X RENDER extension. All pixel work
// happens server-side: window pixmaps are wrapped in pictures, composed onto
// a root-sized back pixmap, and the back pixmap is copied to the target
// window on present. Because the back pixmap persists between frames the
// backend always reports a buffer age of 1.
package xrender

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/backend"
	"github.com/lumenwm/lumen/internal/region"
)

// Image is a picture wrapped around a window pixmap.
type Image struct {
	pixmap  xproto.Pixmap
	picture render.Picture
	format  backend.PixmapFormat
	owned   bool
	width   int
	height  int
}

func (i *Image) Size() (int, int) { return i.width, i.height }

// Backend renders through X RENDER pictures.
type Backend struct {
	conn   *xgb.Conn
	target render.Picture

	back        xproto.Pixmap
	backPicture render.Picture
	width       uint16
	height      uint16
	depth       byte
	rootFormat  render.Pictformat
}

// New builds an xrender backend drawing onto target (the overlay window, or
// the root when no overlay is available). rootFormat is the picture format
// matching the root visual, depth its depth.
func New(conn *xgb.Conn, target xproto.Window, rootFormat render.Pictformat, depth byte, width, height uint16) (*Backend, error) {
	b := &Backend{
		conn:       conn,
		width:      width,
		height:     height,
		depth:      depth,
		rootFormat: rootFormat,
	}

	pid, err := render.NewPictureId(conn)
	if err != nil {
		return nil, fmt.Errorf("allocating target picture id: %w", err)
	}
	err = render.CreatePictureChecked(conn, pid, xproto.Drawable(target), rootFormat, 0, nil).Check()
	if err != nil {
		return nil, fmt.Errorf("creating target picture: %w", err)
	}
	b.target = pid

	if err := b.createBackBuffer(); err != nil {
		render.FreePicture(conn, b.target)
		return nil, err
	}
	return b, nil
}

func (b *Backend) createBackBuffer() error {
	pix, err := xproto.NewPixmapId(b.conn)
	if err != nil {
		return fmt.Errorf("allocating back pixmap id: %w", err)
	}
	root := xproto.Setup(b.conn).DefaultScreen(b.conn).Root
	err = xproto.CreatePixmapChecked(b.conn, b.depth, pix, xproto.Drawable(root), b.width, b.height).Check()
	if err != nil {
		return fmt.Errorf("creating back pixmap: %w", err)
	}

	pid, err := render.NewPictureId(b.conn)
	if err != nil {
		xproto.FreePixmap(b.conn, pix)
		return fmt.Errorf("allocating back picture id: %w", err)
	}
	err = render.CreatePictureChecked(b.conn, pid, xproto.Drawable(pix), b.rootFormat, 0, nil).Check()
	if err != nil {
		xproto.FreePixmap(b.conn, pix)
		return fmt.Errorf("creating back picture: %w", err)
	}

	b.back = pix
	b.backPicture = pid
	return nil
}

// Resize replaces the back buffer after a root size change. The old content
// is discarded, so the caller must force a full repaint.
func (b *Backend) Resize(width, height uint16) error {
	render.FreePicture(b.conn, b.backPicture)
	xproto.FreePixmap(b.conn, b.back)
	b.width, b.height = width, height
	return b.createBackBuffer()
}

func (b *Backend) Deinit() {
	render.FreePicture(b.conn, b.backPicture)
	xproto.FreePixmap(b.conn, b.back)
	render.FreePicture(b.conn, b.target)
}

func (b *Backend) Compose(img backend.Image, dst image.Point, clip, visible region.Region) {
	xi := img.(*Image)
	if clip.Empty() {
		return
	}
	render.SetPictureClipRectangles(b.conn, b.backPicture, 0, 0, toRects(clip))
	op := byte(render.PictOpSrc)
	if xi.format.HasAlpha {
		op = render.PictOpOver
	}
	render.Composite(b.conn, op, xi.picture, render.PictureNone, b.backPicture,
		0, 0, 0, 0, int16(dst.X), int16(dst.Y), uint16(xi.width), uint16(xi.height))
	b.resetClip()
}

func (b *Backend) Fill(c backend.Color, clip region.Region) {
	if clip.Empty() {
		return
	}
	col := render.Color{
		Red:   uint16(c.R * 0xffff),
		Green: uint16(c.G * 0xffff),
		Blue:  uint16(c.B * 0xffff),
		Alpha: uint16(c.A * 0xffff),
	}
	render.FillRectangles(b.conn, render.PictOpSrc, b.backPicture, col, toRects(clip))
}

func (b *Backend) BindPixmap(pixmap xproto.Pixmap, format backend.PixmapFormat, owned bool) (backend.Image, error) {
	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(pixmap)).Reply()
	if err != nil {
		return nil, fmt.Errorf("querying pixmap geometry: %w", err)
	}
	pid, err := render.NewPictureId(b.conn)
	if err != nil {
		return nil, fmt.Errorf("allocating picture id: %w", err)
	}
	err = render.CreatePictureChecked(b.conn, pid, xproto.Drawable(pixmap), format.Format, 0, nil).Check()
	if err != nil {
		return nil, fmt.Errorf("creating picture for pixmap %#x: %w", pixmap, err)
	}
	return &Image{
		pixmap:  pixmap,
		picture: pid,
		format:  format,
		owned:   owned,
		width:   int(geom.Width),
		height:  int(geom.Height),
	}, nil
}

func (b *Backend) ReleaseImage(img backend.Image) {
	xi := img.(*Image)
	render.FreePicture(b.conn, xi.picture)
	if xi.owned {
		xproto.FreePixmap(b.conn, xi.pixmap)
	}
	xi.picture = 0
}

// CloneImage snapshots img into a fresh server-side pixmap. Only the visible
// part needs to survive, but copying the whole image keeps the offsets
// trivial and the pixmaps are short-lived.
func (b *Backend) CloneImage(img backend.Image, visible region.Region) (backend.Image, error) {
	xi := img.(*Image)
	pix, err := xproto.NewPixmapId(b.conn)
	if err != nil {
		return nil, fmt.Errorf("allocating clone pixmap id: %w", err)
	}
	err = xproto.CreatePixmapChecked(b.conn, xi.format.Depth, pix, xproto.Drawable(xi.pixmap),
		uint16(xi.width), uint16(xi.height)).Check()
	if err != nil {
		return nil, fmt.Errorf("creating clone pixmap: %w", err)
	}
	clone, err := b.BindPixmap(pix, xi.format, true)
	if err != nil {
		xproto.FreePixmap(b.conn, pix)
		return nil, err
	}
	render.Composite(b.conn, render.PictOpSrc, xi.picture, render.PictureNone,
		clone.(*Image).picture, 0, 0, 0, 0, 0, 0, uint16(xi.width), uint16(xi.height))
	return clone, nil
}

func (b *Backend) Present(reg region.Region) error {
	if reg.Empty() {
		return nil
	}
	render.SetPictureClipRectangles(b.conn, b.target, 0, 0, toRects(reg))
	err := render.CompositeChecked(b.conn, render.PictOpSrc, b.backPicture, render.PictureNone,
		b.target, 0, 0, 0, 0, 0, 0, b.width, b.height).Check()
	if err != nil {
		return fmt.Errorf("presenting frame: %w", err)
	}
	return nil
}

func (b *Backend) MaxBufferAge() int { return 1 }

func (b *Backend) BufferAge() int { return 1 }

func (b *Backend) resetClip() {
	full := []xproto.Rectangle{{X: 0, Y: 0, Width: b.width, Height: b.height}}
	render.SetPictureClipRectangles(b.conn, b.backPicture, 0, 0, full)
}

func toRects(reg region.Region) []xproto.Rectangle {
	rs := reg.Rects()
	out := make([]xproto.Rectangle, 0, len(rs))
	for _, r := range rs {
		out = append(out, xproto.Rectangle{
			X:      int16(r.Min.X),
			Y:      int16(r.Min.Y),
			Width:  uint16(r.Dx()),
			Height: uint16(r.Dy()),
		})
	}
	return out
}

var (
	_ backend.Renderer    = (*Backend)(nil)
	_ backend.Presenter   = (*Backend)(nil)
	_ backend.AgeReporter = (*Backend)(nil)
	_ backend.Cloner      = (*Backend)(nil)
)
