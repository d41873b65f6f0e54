// Package pixel composites client-side. Window content is fetched with
// GetImage at compose time, blended into an in-memory RGBA back buffer, and
// the dirty part is uploaded with PutImage on present. It is slow but it
// works on servers whose RENDER implementation is broken, and it is the
// reference for what the other backends should produce.
package pixel

import (
	"fmt"
	"image"
	"image/color"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"golang.org/x/image/draw"

	"github.com/lumenwm/lumen/internal/backend"
	"github.com/lumenwm/lumen/internal/region"
)

// putImageChunkBytes bounds the rows uploaded per PutImage request so a full
// screen upload stays under the server's maximum request length.
const putImageChunkBytes = 256 * 1024

// Image refers to a server pixmap; pixels are pulled on demand.
type Image struct {
	conn   *xgb.Conn
	pixmap xproto.Pixmap
	format backend.PixmapFormat
	owned  bool
	width  int
	height int
}

func (i *Image) Size() (int, int) { return i.width, i.height }

// Backend composites in client memory.
type Backend struct {
	conn   *xgb.Conn
	target xproto.Drawable
	gc     xproto.Gcontext
	depth  byte
	back   *image.RGBA
}

// New builds a software backend presenting onto target.
func New(conn *xgb.Conn, target xproto.Window, depth byte, width, height uint16) (*Backend, error) {
	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		return nil, fmt.Errorf("allocating gcontext id: %w", err)
	}
	err = xproto.CreateGCChecked(conn, gc, xproto.Drawable(target),
		xproto.GcGraphicsExposures, []uint32{0}).Check()
	if err != nil {
		return nil, fmt.Errorf("creating gcontext: %w", err)
	}
	return &Backend{
		conn:   conn,
		target: xproto.Drawable(target),
		gc:     gc,
		depth:  depth,
		back:   image.NewRGBA(image.Rect(0, 0, int(width), int(height))),
	}, nil
}

// Resize replaces the back buffer; the caller must force a full repaint.
func (b *Backend) Resize(width, height uint16) error {
	b.back = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	return nil
}

func (b *Backend) Deinit() {
	xproto.FreeGC(b.conn, b.gc)
	b.back = nil
}

func (b *Backend) Compose(img backend.Image, dst image.Point, clip, visible region.Region) {
	pi := img.(*Image)
	bounds := image.Rect(dst.X, dst.Y, dst.X+pi.width, dst.Y+pi.height)
	op := draw.Src
	if pi.format.HasAlpha {
		op = draw.Over
	}
	for _, r := range clip.Rects() {
		r = r.Intersect(bounds).Intersect(b.back.Bounds())
		if r.Empty() {
			continue
		}
		src, err := pi.fetch(r.Sub(dst))
		if err != nil {
			// The pixmap can vanish mid-frame when its window is torn
			// down; the stale pixels stay until the next damage.
			continue
		}
		op.Draw(b.back, r, src, src.Bounds().Min)
	}
}

// fetch downloads the given pixmap-local rectangle as RGBA.
func (i *Image) fetch(r image.Rectangle) (*image.RGBA, error) {
	reply, err := xproto.GetImage(i.conn, xproto.ImageFormatZPixmap, xproto.Drawable(i.pixmap),
		int16(r.Min.X), int16(r.Min.Y), uint16(r.Dx()), uint16(r.Dy()), ^uint32(0)).Reply()
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(r)
	data := reply.Data
	n := r.Dx() * r.Dy()
	if len(data) < n*4 {
		return nil, fmt.Errorf("short GetImage reply: %d bytes for %d pixels", len(data), n)
	}
	for p := 0; p < n; p++ {
		// ZPixmap depth-24/32 data is BGRx little-endian.
		img.Pix[p*4+0] = data[p*4+2]
		img.Pix[p*4+1] = data[p*4+1]
		img.Pix[p*4+2] = data[p*4+0]
		if i.format.HasAlpha {
			img.Pix[p*4+3] = data[p*4+3]
		} else {
			img.Pix[p*4+3] = 0xff
		}
	}
	return img, nil
}

func (b *Backend) Fill(c backend.Color, clip region.Region) {
	fill := image.NewUniform(color.RGBA{
		R: uint8(c.R * 0xff),
		G: uint8(c.G * 0xff),
		B: uint8(c.B * 0xff),
		A: uint8(c.A * 0xff),
	})
	for _, r := range clip.Rects() {
		r = r.Intersect(b.back.Bounds())
		if !r.Empty() {
			draw.Draw(b.back, r, fill, image.Point{}, draw.Src)
		}
	}
}

func (b *Backend) BindPixmap(pixmap xproto.Pixmap, format backend.PixmapFormat, owned bool) (backend.Image, error) {
	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(pixmap)).Reply()
	if err != nil {
		return nil, fmt.Errorf("querying pixmap geometry: %w", err)
	}
	return &Image{
		conn:   b.conn,
		pixmap: pixmap,
		format: format,
		owned:  owned,
		width:  int(geom.Width),
		height: int(geom.Height),
	}, nil
}

func (b *Backend) ReleaseImage(img backend.Image) {
	pi := img.(*Image)
	if pi.owned {
		xproto.FreePixmap(b.conn, pi.pixmap)
	}
	pi.pixmap = 0
}

func (b *Backend) Present(reg region.Region) error {
	if reg.Empty() {
		return nil
	}
	r := reg.Bounds().Intersect(b.back.Bounds())
	if r.Empty() {
		return nil
	}
	rowBytes := r.Dx() * 4
	rowsPerChunk := putImageChunkBytes / rowBytes
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}
	for y := r.Min.Y; y < r.Max.Y; y += rowsPerChunk {
		rows := rowsPerChunk
		if y+rows > r.Max.Y {
			rows = r.Max.Y - y
		}
		data := make([]byte, rows*rowBytes)
		for row := 0; row < rows; row++ {
			off := b.back.PixOffset(r.Min.X, y+row)
			src := b.back.Pix[off : off+rowBytes]
			dst := data[row*rowBytes:]
			for p := 0; p < r.Dx(); p++ {
				dst[p*4+0] = src[p*4+2]
				dst[p*4+1] = src[p*4+1]
				dst[p*4+2] = src[p*4+0]
				dst[p*4+3] = src[p*4+3]
			}
		}
		err := xproto.PutImageChecked(b.conn, xproto.ImageFormatZPixmap, b.target, b.gc,
			uint16(r.Dx()), uint16(rows), int16(r.Min.X), int16(y), 0, b.depth, data).Check()
		if err != nil {
			return fmt.Errorf("uploading frame rows at y=%d: %w", y, err)
		}
	}
	return nil
}

func (b *Backend) MaxBufferAge() int { return 1 }

func (b *Backend) BufferAge() int { return 1 }

var (
	_ backend.Renderer    = (*Backend)(nil)
	_ backend.Presenter   = (*Backend)(nil)
	_ backend.AgeReporter = (*Backend)(nil)
)
