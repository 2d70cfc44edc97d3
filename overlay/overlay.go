// Package overlay draws a one-shot pointer marker on top of a rendered frame.
package overlay

import (
	"log/slog"

	"github.com/gogpu/gg"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// MarkerRadius of the circle drawn at a pointer event, in device units.
const MarkerRadius = 20.0

// PointerEvent is the most recent pointer press in device space.
type PointerEvent struct {
	X, Y    float64
	Button  int
	Pending bool
}

// Overlay holds at most one pending pointer event.
type Overlay struct {
	event PointerEvent
	// Color of the marker
	Color gg.RGBA
}

// New returns an overlay drawing black markers.
func New() *Overlay {
	return &Overlay{Color: gg.Black}
}

// Record stores a pointer event, replacing any event not yet drawn.
func (o *Overlay) Record(x, y float64, button int) {
	o.event = PointerEvent{X: x, Y: y, Button: button, Pending: true}
}

// Pending returns the pending event, if any.
func (o *Overlay) Pending() (PointerEvent, bool) {
	return o.event, o.event.Pending
}

// Last returns the last recorded event, consumed or not.
func (o *Overlay) Last() PointerEvent {
	return o.event
}

// Apply draws the marker for the pending event onto pm and consumes it.
// It reports whether an event was consumed; without one it draws nothing.
func (o *Overlay) Apply(pm *gg.Pixmap) bool {
	if !o.event.Pending {
		return false
	}
	o.event.Pending = false

	dc := gg.NewContext(pm.Width(), pm.Height(), gg.WithPixmap(pm))
	defer dc.Close()
	dc.SetRGBA(o.Color.R, o.Color.G, o.Color.B, o.Color.A)
	dc.DrawCircle(o.event.X, o.event.Y, MarkerRadius)
	if err := dc.Fill(); err != nil {
		Logger.Warn("Failed to draw pointer marker", "x", o.event.X, "y", o.event.Y, "error", err)
	}
	return true
}
