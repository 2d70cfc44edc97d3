// Package viewer is the entry point a host UI drives: it owns the open
// document, the rasterizer and the pointer overlay, and serialises every
// call behind one mutex so resize and render never interleave.
package viewer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/drummonds/pageview/document"
	"github.com/drummonds/pageview/engine"
	"github.com/drummonds/pageview/overlay"
	"github.com/drummonds/pageview/raster"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// ErrNoDocument is returned by operations that need an open document.
var ErrNoDocument = errors.New("no document open")

// EventHandler is implemented by Viewer and registered with whatever event
// source the host uses (window toolkit, HTTP, tests).
type EventHandler interface {
	OnResize(width, height int) error
	OnPointerDown(x, y float64, button int)
	OnPaintRequested() (*raster.PixelBuffer, error)
}

// Engine is the rendering engine as seen by the viewer; *engine.Context implements it.
type Engine interface {
	document.Opener
	engine.Drawer
}

// Viewer shows one page of one document at a time.
type Viewer struct {
	mu sync.Mutex

	engine  Engine
	opts    []document.Option
	doc     *document.Document
	raster  *raster.Rasterizer
	overlay *overlay.Overlay

	width, height int
	resized       bool
	frames        uint64
}

var _ EventHandler = (*Viewer)(nil)

// New returns a viewer drawing through eng. opts apply to every document it opens.
func New(eng Engine, opts ...document.Option) *Viewer {
	return &Viewer{
		engine:  eng,
		opts:    opts,
		raster:  raster.New(eng),
		overlay: overlay.New(),
	}
}

// Overlay returns the pointer overlay, e.g. to change the marker colour.
func (v *Viewer) Overlay() *overlay.Overlay {
	return v.overlay
}

// OpenDocument opens path, closing the previously open document first.
// Nothing is loaded yet; call NavigateTo before rendering.
func (v *Viewer) OpenDocument(path, accelPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	doc, err := document.Open(v.engine, path, accelPath, v.opts...)
	if err != nil {
		return err
	}
	if v.doc != nil {
		if err := v.doc.Close(); err != nil {
			Logger.Warn("Closing previous document reported errors", "path", v.doc.Path(), "error", err)
		}
	}
	v.doc = doc
	return nil
}

// NavigateTo loads the page at loc and makes it current.
func (v *Viewer) NavigateTo(loc document.Location) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc == nil {
		return ErrNoDocument
	}
	return v.doc.LoadPage(loc)
}

// SetZoom changes the zoom percentage of the open document.
func (v *Viewer) SetZoom(percent float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc == nil {
		return ErrNoDocument
	}
	return v.doc.SetZoom(percent)
}

// SetRotation changes the rotation of the open document.
func (v *Viewer) SetRotation(degrees int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc == nil {
		return ErrNoDocument
	}
	return v.doc.SetRotation(degrees)
}

// OnViewportResized replaces the pixel buffer when the viewport size changed.
func (v *Viewer) OnViewportResized(width, height int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.raster.EnsureBuffer(width, height); err != nil {
		return err
	}
	v.width, v.height = width, height
	v.resized = true
	return nil
}

// OnPointerPressed records a pointer press; the next frame shows a marker there.
func (v *Viewer) OnPointerPressed(x, y float64, button int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.overlay.Record(x, y, button)
}

// RenderFrame renders the current page and any pending pointer marker. The
// returned buffer is owned by the viewer and only valid until the next
// resize; use Snapshot to keep a copy. A draw failure returns the partial
// frame together with the error.
func (v *Viewer) RenderFrame() (*raster.PixelBuffer, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.renderLocked()
}

func (v *Viewer) renderLocked() (*raster.PixelBuffer, error) {
	if v.doc == nil {
		return nil, ErrNoDocument
	}
	if !v.resized {
		return nil, raster.ErrNoBuffer
	}
	ps, err := v.doc.ActivePage()
	if err != nil {
		return nil, err
	}
	// the buffer always matches the last reported viewport
	if _, err := v.raster.EnsureBuffer(v.width, v.height); err != nil {
		return nil, err
	}
	buf := v.raster.Buffer()
	renderErr := v.raster.Render(ps)
	if renderErr != nil {
		Logger.Warn("Frame rendered partially", "location", v.doc.Location(), "error", renderErr)
	}
	v.overlay.Apply(buf.Pixmap())
	v.frames++
	return buf, renderErr
}

// Snapshot renders a frame and returns a copy of it.
func (v *Viewer) Snapshot() (*image.RGBA, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	buf, err := v.renderLocked()
	if buf == nil {
		return nil, err
	}
	return buf.Snapshot(), err
}

// OnResize implements EventHandler.
func (v *Viewer) OnResize(width, height int) error {
	return v.OnViewportResized(width, height)
}

// OnPointerDown implements EventHandler.
func (v *Viewer) OnPointerDown(x, y float64, button int) {
	v.OnPointerPressed(x, y, button)
}

// OnPaintRequested implements EventHandler.
func (v *Viewer) OnPaintRequested() (*raster.PixelBuffer, error) {
	return v.RenderFrame()
}

// ActivePage returns the text and links of the current page.
func (v *Viewer) ActivePage() (string, []engine.Link, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc == nil {
		return "", nil, ErrNoDocument
	}
	ps, err := v.doc.ActivePage()
	if err != nil {
		return "", nil, err
	}
	return ps.Text(), ps.Links(), nil
}

// Status describes the viewer state for hosts.
type Status struct {
	Path         string            `json:"path"`
	ChapterCount int               `json:"chapterCount"`
	PageCounts   map[int]int       `json:"pageCounts"`
	Location     document.Location `json:"location"`
	Loaded       bool              `json:"loaded"`
	Zoom         float64           `json:"zoom"`
	Rotation     int               `json:"rotation"`
	ColorSpace   string            `json:"colorSpace"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Frames       uint64            `json:"frames"`
	Pointer      *PointerStatus    `json:"pointer,omitempty"`
}

// PointerStatus is the last recorded pointer event.
type PointerStatus struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Button  int     `json:"button"`
	Pending bool    `json:"pending"`
}

// Status returns the current state.
func (v *Viewer) Status() (Status, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc == nil {
		return Status{}, ErrNoDocument
	}
	s := Status{
		Path:         v.doc.Path(),
		ChapterCount: v.doc.ChapterCount(),
		PageCounts:   v.doc.PageCounts(),
		Location:     v.doc.Location(),
		Loaded:       v.doc.Loaded(),
		Zoom:         v.doc.Zoom(),
		Rotation:     v.doc.Rotation(),
		ColorSpace:   v.doc.ColorSpace().String(),
		Width:        v.width,
		Height:       v.height,
		Frames:       v.frames,
	}
	if ev := v.overlay.Last(); ev.Pending || ev.Button != 0 {
		s.Pointer = &PointerStatus{X: ev.X, Y: ev.Y, Button: ev.Button, Pending: ev.Pending}
	}
	return s, nil
}

// Close closes the open document, if any. The engine context stays up.
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc == nil {
		return nil
	}
	err := v.doc.Close()
	v.doc = nil
	if err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	return nil
}
