package x11

import (
	"github.com/BurntSushi/xgb/dpms"
)

// ScreenOff reports whether DPMS has powered the display down. Compositing
// is pointless while the screen is off, and some drivers misrender the first
// frame after wake unless the screen was unredirected across the gap.
func (c *Connection) ScreenOff() bool {
	if !c.Caps.DPMS {
		return false
	}
	info, err := dpms.Info(c.Conn).Reply()
	if err != nil {
		return false
	}
	return info.State && info.PowerLevel != dpms.DPMSModeOn
}
