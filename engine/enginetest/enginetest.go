// Package enginetest provides an in-memory engine.Backend that records every
// handle it hands out, so callers can assert that nothing leaks.
package enginetest

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/drummonds/pageview/engine"
)

// ErrInjected is the cause reported by every injected failure.
var ErrInjected = errors.New("injected engine failure")

// DefaultPageBounds is used for every page unless PageBounds overrides it.
var DefaultPageBounds = engine.Rect{Max: engine.Point{X: 100, Y: 150}}

// Slot identifies one page in a fake document.
type Slot struct {
	Chapter, Page int
}

// Handle kinds counted by the engine.
const (
	KindDocument    = "document"
	KindContent     = "content"
	KindText        = "text"
	KindLinks       = "links"
	KindSeparations = "separations"
)

// Engine is a fake backend serving one synthetic document layout for every path.
type Engine struct {
	mu sync.Mutex

	// Pages holds the page count of each chapter.
	Pages []int
	// PageBounds overrides the bounds of individual pages.
	PageBounds map[Slot]engine.Rect
	// Ink is the colour DrawInto paints over the device bounds of a page.
	Ink color.RGBA
	// WithSeparations makes every page carry a separations handle.
	WithSeparations bool

	// Injected failures
	FailOpen      bool
	FailCount     map[int]bool
	FailLoad      map[Slot]bool
	FailText      map[Slot]bool
	FailLinks     map[Slot]bool
	FailDraw      bool
	CountOverride map[int]int

	acquired map[string]int
	released map[string]int
	loads    map[Slot]int
	drops    map[Slot]int
	counts   map[int]int
	draws    []engine.Matrix
	opened   []string
	closed   bool
}

// New returns an engine whose documents have len(pages) chapters with the given page counts.
func New(pages ...int) *Engine {
	return &Engine{
		Pages:    pages,
		Ink:      color.RGBA{R: 0, G: 0, B: 255, A: 255},
		acquired: map[string]int{},
		released: map[string]int{},
		loads:    map[Slot]int{},
		drops:    map[Slot]int{},
		counts:   map[int]int{},
	}
}

func (e *Engine) Name() string { return "enginetest" }

func (e *Engine) OpenDocument(path, accelPath string) (engine.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailOpen {
		return nil, fmt.Errorf("open %s: %w", path, ErrInjected)
	}
	e.opened = append(e.opened, path)
	e.acquired[KindDocument]++
	return &document{e: e}, nil
}

func (e *Engine) DrawInto(target *image.RGBA, m engine.Matrix, content engine.Content) error {
	p, ok := content.(*page)
	if !ok {
		return engine.ErrForeignContent
	}
	e.mu.Lock()
	e.draws = append(e.draws, m)
	fail := e.FailDraw
	ink := e.Ink
	e.mu.Unlock()
	if p.closed {
		return fmt.Errorf("draw of released content %v", p.slot)
	}
	if fail {
		return fmt.Errorf("draw %v: %w", p.slot, ErrInjected)
	}
	x0, y0, x1, y1 := engine.PixelRect(engine.TransformRect(p.bounds, m))
	r := image.Rect(x0, y0, x1, y1).Intersect(target.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			target.SetRGBA(x, y, ink)
		}
	}
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Acquired returns how many handles of kind were handed out.
func (e *Engine) Acquired(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acquired[kind]
}

// Released returns how many handles of kind were released.
func (e *Engine) Released(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released[kind]
}

// Live returns the number of handles of every kind not yet released.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	live := 0
	for kind, n := range e.acquired {
		live += n - e.released[kind]
	}
	return live
}

// Loads returns how many times content was loaded for slot.
func (e *Engine) Loads(s Slot) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads[s]
}

// Drops returns how many times content loaded for slot was released.
func (e *Engine) Drops(s Slot) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drops[s]
}

// CountQueries returns how many times the page count of chapter was queried.
func (e *Engine) CountQueries(chapter int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[chapter]
}

// Draws returns the matrices passed to DrawInto, oldest first.
func (e *Engine) Draws() []engine.Matrix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Matrix(nil), e.draws...)
}

// Opened returns the paths passed to OpenDocument.
func (e *Engine) Opened() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.opened...)
}

func (e *Engine) release(kind string) {
	e.mu.Lock()
	e.released[kind]++
	e.mu.Unlock()
}

type document struct {
	e      *Engine
	closed bool
}

func (d *document) CountChapters() int {
	return len(d.e.Pages)
}

func (d *document) CountChapterPages(chapter int) (int, error) {
	e := d.e
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[chapter]++
	if e.FailCount[chapter] {
		return 0, fmt.Errorf("count chapter %d: %w", chapter, ErrInjected)
	}
	if n, ok := e.CountOverride[chapter]; ok {
		return n, nil
	}
	if chapter < 0 || chapter >= len(e.Pages) {
		return 0, fmt.Errorf("no chapter %d", chapter)
	}
	return e.Pages[chapter], nil
}

func (d *document) LoadPage(chapter, index int) (engine.Content, error) {
	e := d.e
	s := Slot{Chapter: chapter, Page: index}
	e.mu.Lock()
	defer e.mu.Unlock()
	if d.closed {
		return nil, errors.New("document closed")
	}
	if e.FailLoad[s] {
		return nil, fmt.Errorf("load %v: %w", s, ErrInjected)
	}
	if chapter < 0 || chapter >= len(e.Pages) || index < 0 || index >= e.Pages[chapter] {
		return nil, fmt.Errorf("no page %v", s)
	}
	bounds, ok := e.PageBounds[s]
	if !ok {
		bounds = DefaultPageBounds
	}
	e.loads[s]++
	e.acquired[KindContent]++
	return &page{e: e, slot: s, bounds: bounds}, nil
}

func (d *document) Close() error {
	if d.closed {
		return errors.New("document closed twice")
	}
	d.closed = true
	d.e.release(KindDocument)
	return nil
}

type page struct {
	e      *Engine
	slot   Slot
	bounds engine.Rect
	closed bool
}

func (p *page) Bounds() engine.Rect { return p.bounds }

func (p *page) TextLayer() (engine.TextLayer, error) {
	e := p.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailText[p.slot] {
		return nil, fmt.Errorf("text %v: %w", p.slot, ErrInjected)
	}
	e.acquired[KindText]++
	return &handle{e: e, kind: KindText, text: fmt.Sprintf("chapter %d page %d", p.slot.Chapter, p.slot.Page)}, nil
}

func (p *page) Links() (engine.LinkList, error) {
	e := p.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailLinks[p.slot] {
		return nil, fmt.Errorf("links %v: %w", p.slot, ErrInjected)
	}
	e.acquired[KindLinks]++
	link := engine.Link{
		URI:    fmt.Sprintf("#chapter%d-page%d", p.slot.Chapter, p.slot.Page),
		Bounds: engine.Rect{Max: engine.Point{X: 10, Y: 10}},
	}
	return &handle{e: e, kind: KindLinks, links: []engine.Link{link}}, nil
}

func (p *page) Separations() (engine.Separations, error) {
	e := p.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.WithSeparations {
		return nil, nil
	}
	e.acquired[KindSeparations]++
	return &handle{e: e, kind: KindSeparations}, nil
}

func (p *page) Close() error {
	if p.closed {
		return fmt.Errorf("content %v released twice", p.slot)
	}
	p.closed = true
	p.e.mu.Lock()
	p.e.drops[p.slot]++
	p.e.released[KindContent]++
	p.e.mu.Unlock()
	return nil
}

// handle implements the text, link and separation handles.
type handle struct {
	e      *Engine
	kind   string
	text   string
	links  []engine.Link
	closed bool
}

func (h *handle) Text() string         { return h.text }
func (h *handle) Links() []engine.Link { return h.links }
func (h *handle) Count() int           { return 1 }

func (h *handle) Close() error {
	if h.closed {
		return fmt.Errorf("%s handle released twice", h.kind)
	}
	h.closed = true
	h.e.release(h.kind)
	return nil
}
