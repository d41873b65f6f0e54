// Package dummy is a rendering backend that renders nothing. It records
// every call it receives, which makes it the test vehicle for the paint
// pipeline, and it deliberately does not implement backend.Presenter: the
// compositor takes that as "this backend has no visible output" and leaves
// the screen on automatic redirection.
package dummy

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/backend"
	"github.com/lumenwm/lumen/internal/region"
)

// ComposeCall records one Compose invocation.
type ComposeCall struct {
	Image   backend.Image
	Dst     image.Point
	Clip    region.Region
	Visible region.Region
}

// Image is the dummy image handle.
type Image struct {
	Pixmap   xproto.Pixmap
	Format   backend.PixmapFormat
	Owned    bool
	Released bool

	width, height int
}

func (i *Image) Size() (int, int) { return i.width, i.height }

// Backend records rendering calls without producing output.
type Backend struct {
	// Status is returned by DeviceStatus; flip it to DeviceResetting to
	// exercise reset handling.
	Status backend.DeviceStatus
	// BindErr, when non-nil, makes every BindPixmap call fail.
	BindErr error
	// Age and MaxAge configure the reported buffer age and history depth.
	Age    int
	MaxAge int
	// ImageSize is the size assigned to bound images.
	ImageSize image.Point

	Composes []ComposeCall
	Fills    []region.Region
	Images   []*Image
	deinited bool
}

// New returns a dummy backend with an age-1 retained buffer.
func New() *Backend {
	return &Backend{Age: 1, MaxAge: 1, ImageSize: image.Pt(1, 1)}
}

func (b *Backend) Deinit() { b.deinited = true }

func (b *Backend) Compose(img backend.Image, dst image.Point, clip, visible region.Region) {
	b.Composes = append(b.Composes, ComposeCall{Image: img, Dst: dst, Clip: clip, Visible: visible})
}

func (b *Backend) Fill(c backend.Color, clip region.Region) {
	b.Fills = append(b.Fills, clip)
}

func (b *Backend) BindPixmap(pixmap xproto.Pixmap, format backend.PixmapFormat, owned bool) (backend.Image, error) {
	if b.BindErr != nil {
		return nil, b.BindErr
	}
	img := &Image{
		Pixmap: pixmap,
		Format: format,
		Owned:  owned,
		width:  b.ImageSize.X,
		height: b.ImageSize.Y,
	}
	b.Images = append(b.Images, img)
	return img, nil
}

func (b *Backend) ReleaseImage(img backend.Image) {
	di, ok := img.(*Image)
	if !ok {
		panic(fmt.Sprintf("dummy: foreign image %T", img))
	}
	if di.Released {
		panic("dummy: image released twice")
	}
	di.Released = true
}

func (b *Backend) MaxBufferAge() int { return b.MaxAge }

func (b *Backend) BufferAge() int { return b.Age }

func (b *Backend) DeviceStatus() backend.DeviceStatus { return b.Status }

// Live returns the number of bound images that have not been released.
func (b *Backend) Live() int {
	n := 0
	for _, img := range b.Images {
		if !img.Released {
			n++
		}
	}
	return n
}

// Reset clears the recorded calls (not the images).
func (b *Backend) Reset() {
	b.Composes = nil
	b.Fills = nil
}

var (
	_ backend.Renderer       = (*Backend)(nil)
	_ backend.AgeReporter    = (*Backend)(nil)
	_ backend.StatusReporter = (*Backend)(nil)
)
