package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/randr"

	"github.com/lumenwm/lumen/internal/region"
)

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	Bounds image.Rectangle
}

// Region returns the monitor's footprint in root coordinates.
func (m Monitor) Region() region.Region {
	return region.FromRect(m.Bounds)
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if !c.Caps.RandR {
		w, h := c.RootSize()
		return []Monitor{{ID: 0, Name: "screen", Bounds: image.Rect(0, 0, int(w), int(h))}}, nil
	}

	resources, err := randr.GetScreenResources(c.Conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor

	// Query each CRTC for active monitors
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.Conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.Conn, crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		monitors = append(monitors, Monitor{
			ID:   i,
			Name: outputName,
			Bounds: image.Rect(
				int(crtcInfo.X), int(crtcInfo.Y),
				int(crtcInfo.X)+int(crtcInfo.Width), int(crtcInfo.Y)+int(crtcInfo.Height),
			),
		})
	}

	if len(monitors) == 0 {
		w, h := c.RootSize()
		monitors = append(monitors, Monitor{ID: 0, Name: "screen", Bounds: image.Rect(0, 0, int(w), int(h))})
	}
	return monitors, nil
}

// SelectScreenChangeEvents asks for RandR screen change notifications on the
// root window.
func (c *Connection) SelectScreenChangeEvents() {
	if c.Caps.RandR {
		randr.SelectInput(c.Conn, c.Root, randr.NotifyMaskScreenChange)
	}
}

// MonitorContaining returns the index of the monitor fully containing r, or
// -1 when r straddles monitors or hangs off screen. Windows on exactly one
// monitor can skip repaints triggered by damage elsewhere.
func MonitorContaining(monitors []Monitor, r image.Rectangle) int {
	for i := range monitors {
		if r.In(monitors[i].Bounds) {
			return i
		}
	}
	return -1
}
