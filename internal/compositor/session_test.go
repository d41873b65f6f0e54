package compositor

import (
	"testing"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/lumenwm/lumen/internal/window"
)

// A screen-off period releases every image; waking must rebind and draw the
// windows in the same settle pass, not leave a background-only frame up
// until the next event arrives.
func TestScreenWakeRepaintsWindowsInSamePass(t *testing.T) {
	s, be := newTestSession(t)
	m := addOpaque(t, s, 1, 20, 20, 50, 50)

	s.forceRepaint = true
	if err := s.settle(); err != nil {
		t.Fatalf("settle: %v", err)
	}

	s.screenOff = true
	s.needRepaint = true
	if err := s.settle(); err != nil {
		t.Fatalf("settle during screen off: %v", err)
	}
	if s.redirected {
		t.Fatal("still redirected with the screen off")
	}
	if n := be.Live(); n != 0 {
		t.Fatalf("%d images still bound while unredirected", n)
	}

	be.Reset()
	s.screenOff = false
	s.needRepaint = true
	if err := s.settle(); err != nil {
		t.Fatalf("settle on wake: %v", err)
	}

	if !s.redirected {
		t.Fatal("not redirected after wake")
	}
	if s.pendingUpdates {
		t.Fatal("wake left updates pending for the next wakeup")
	}
	if m.Image == nil {
		t.Fatal("window image not rebound on wake")
	}
	for _, call := range be.Composes {
		if call.Image == m.Image {
			return
		}
	}
	t.Fatal("window never composed after wake; a blank frame was left on screen")
}

// The reader must not outlive Run when the event buffer is full; each
// session restart would otherwise leak a goroutine blocked on the send.
func TestEventReaderStopsOnFullBuffer(t *testing.T) {
	events := make(chan xEvent, 1)
	done := make(chan struct{})
	finished := make(chan struct{})

	wait := func() (xgb.Event, xgb.Error) {
		return xproto.MapNotifyEvent{}, nil
	}
	go func() {
		readEvents(wait, events, done)
		close(finished)
	}()

	// Let the reader fill the buffer and block on the next send.
	<-events
	close(done)

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("reader still running after done closed")
	}
}

// Opacity feeds the paint mode: a translucent window must stop occluding
// what is underneath it.
func TestOpacityChangeStopsOcclusion(t *testing.T) {
	s, _ := newTestSession(t)
	below := addOpaque(t, s, 2, 0, 0, 100, 100)
	above := addOpaque(t, s, 1, 0, 0, 50, 50)
	s.paintPreprocess()

	above.Opacity = 0.5
	above.Flags.Set(window.FlagFactorChanged)
	s.reg.ProcessUpdateFlags(s, above)

	if above.Mode != window.ModeTrans {
		t.Fatalf("mode = %v with opacity 0.5, want translucent", above.Mode)
	}
	s.paintPreprocess()
	if !below.RegIgnore.Empty() {
		t.Errorf("translucent window still occludes below: %v", below.RegIgnore)
	}
}
