// Package backend defines the contract every rendering backend implements.
//
// The compositor core only talks to renderers through these interfaces; the
// concrete backends live in the subpackages xrender (X RENDER pictures),
// pixel (client-side software composition) and dummy (no output, used for
// testing and headless operation).
package backend

import (
	"errors"
	"image"

	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/region"
)

// ErrDeviceReset is returned by the paint pipeline when the backend reports a
// device reset. The frame is abandoned and the whole compositing session has
// to be restarted; no image handle from before the reset may be reused.
var ErrDeviceReset = errors.New("backend: device reset")

// Image is an opaque handle to backend-side window content. A handle is
// owned by exactly one window (or one temporary clone) and must be released
// exactly once per bind.
type Image interface {
	// Size returns the pixel dimensions of the image.
	Size() (w, h int)
}

// Shader is an opaque handle to a backend-compiled post-processing shader.
type Shader interface{}

// PixmapFormat describes the visual of a native pixmap being bound.
type PixmapFormat struct {
	Visual   xproto.Visualid
	Depth    byte
	Format   render.Pictformat
	HasAlpha bool
}

// Color is a premultiplied RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// DeviceStatus reports the health of the rendering device.
type DeviceStatus int

const (
	DeviceNormal DeviceStatus = iota
	DeviceResetting
)

// Renderer is the required operation set of a rendering backend.
//
// Compose paints img into the backend's intermediate buffer at dst. The clip
// region must be honored exactly; visible is only a hint ("pixels outside
// this will not end up on screen") and ignoring it never affects
// correctness, only performance.
type Renderer interface {
	// Deinit releases the backend and everything it allocated. Images bound
	// through this backend are invalid afterwards.
	Deinit()

	Compose(img Image, dst image.Point, clip, visible region.Region)

	// Fill paints a solid color over clip in the intermediate buffer.
	Fill(c Color, clip region.Region)

	// BindPixmap wraps a native pixmap in a backend image. When owned is
	// true the backend frees the pixmap when the image is released.
	BindPixmap(pixmap xproto.Pixmap, format PixmapFormat, owned bool) (Image, error)

	// ReleaseImage frees an image returned by BindPixmap or CloneImage.
	ReleaseImage(img Image)

	// MaxBufferAge is the largest value BufferAge may report, and therefore
	// the damage history depth worth keeping. Zero means the backend retains
	// nothing between frames.
	MaxBufferAge() int
}

// Presenter is implemented by backends that produce visible output. A
// renderer without it composes into the void (the dummy backend), and the
// screen does not need to be redirected manually for it.
type Presenter interface {
	// Present copies the named part of the intermediate buffer to the
	// target surface.
	Present(reg region.Region) error
}

// AgeReporter is implemented by backends that can report how stale the
// buffer being rendered onto is. An age of 1 means the buffer holds exactly
// the previously presented frame; -1 means the content cannot be trusted.
type AgeReporter interface {
	BufferAge() int
}

// Cloner is implemented by backends that support copy-on-write image
// duplication.
type Cloner interface {
	CloneImage(img Image, visible region.Region) (Image, error)
}

// StatusReporter is implemented by backends that can detect device resets.
// Backends without it are assumed healthy.
type StatusReporter interface {
	DeviceStatus() DeviceStatus
}

// ShaderSupport is implemented by backends with window post-processing
// shaders. The compositor treats handles as opaque pass-through.
type ShaderSupport interface {
	CreateShader(source string) (Shader, error)
	DestroyShader(s Shader)
	ShaderAttributes(s Shader) uint64
}

// Status returns r's device status, or DeviceNormal if it cannot tell.
func Status(r Renderer) DeviceStatus {
	if sr, ok := r.(StatusReporter); ok {
		return sr.DeviceStatus()
	}
	return DeviceNormal
}

// Age returns r's current buffer age, or -1 if it cannot report one.
func Age(r Renderer) int {
	if ar, ok := r.(AgeReporter); ok {
		return ar.BufferAge()
	}
	return -1
}
