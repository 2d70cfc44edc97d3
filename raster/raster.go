// Package raster owns the output pixel buffer and renders the active page into it.
//
// A Rasterizer is not safe for concurrent use.
package raster

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/drummonds/pageview/engine"
	"github.com/gogpu/gg"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

var (
	ErrNoBuffer      = errors.New("no pixel buffer: viewport size not reported yet")
	ErrInvalidSize   = errors.New("invalid viewport size")
	ErrDraw          = errors.New("draw failed")
	ErrNothingToDraw = errors.New("no page to draw")
)

// Background is the opaque white every frame starts from.
var Background = gg.White

// Page is what the rasterizer needs from a loaded page.
type Page interface {
	Content() engine.Content
	Transform() engine.Matrix
}

// Rasterizer renders pages through an injected drawer into its buffer.
type Rasterizer struct {
	drawer      engine.Drawer
	buf         *PixelBuffer
	allocations int
}

// New returns a rasterizer drawing through drawer.
func New(drawer engine.Drawer) *Rasterizer {
	return &Rasterizer{drawer: drawer}
}

// EnsureBuffer makes the buffer match the viewport, replacing it when the
// size changed. It reports whether a new buffer was allocated.
func (r *Rasterizer) EnsureBuffer(width, height int) (bool, error) {
	if width < 0 || height < 0 {
		return false, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if r.buf != nil && r.buf.Width() == width && r.buf.Height() == height {
		return false, nil
	}
	if r.buf != nil {
		r.buf.release()
	}
	r.buf = newPixelBuffer(width, height)
	r.allocations++
	Logger.Debug("Pixel buffer allocated", "width", width, "height", height)
	return true, nil
}

// Buffer returns the current buffer, nil before the first EnsureBuffer.
func (r *Rasterizer) Buffer() *PixelBuffer { return r.buf }

// Allocations counts buffers allocated so far.
func (r *Rasterizer) Allocations() int { return r.allocations }

// Render clears the buffer and draws page into it. A failed draw leaves a
// partial frame behind; the next Render starts again from a full clear.
func (r *Rasterizer) Render(page Page) error {
	if r.buf == nil {
		return ErrNoBuffer
	}
	if page == nil || page.Content() == nil {
		return ErrNothingToDraw
	}
	r.buf.pixmap.Clear(Background)
	if err := r.drawer.DrawInto(r.buf.RGBA(), page.Transform(), page.Content()); err != nil {
		return fmt.Errorf("%w: %w", ErrDraw, err)
	}
	return nil
}
