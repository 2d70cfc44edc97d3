package fitzengine

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/drummonds/pageview/engine"
	"github.com/gen2brain/go-fitz"
)

// Backend renders documents with go-fitz (requires CGo and MuPDF).
// MuPDF's chapter API is not exposed by go-fitz, so every document is
// reported as a single chapter holding all of its pages.
type Backend struct {
}

// New creates a new Fitz-based backend
func New() *Backend {
	return &Backend{}
}

// Name implements engine.Backend
func (b *Backend) Name() string {
	return "fitz"
}

// OpenDocument opens a document using go-fitz
func (b *Backend) OpenDocument(path, accelPath string) (engine.Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open document: %w", err)
	}
	if accelPath != "" {
		engine.Logger.Debug("Accelerator file not supported by fitz backend, ignoring", "accelPath", accelPath)
	}
	return &document{doc: doc}, nil
}

// DrawInto rasterises the page at the matrix scale and composes it into target.
func (b *Backend) DrawInto(target *image.RGBA, m engine.Matrix, content engine.Content) error {
	p, ok := content.(*page)
	if !ok {
		return engine.ErrForeignContent
	}
	if p.isClosed() {
		return errors.New("page content already released")
	}
	img, err := p.doc.doc.ImageDPI(p.index, 72*engine.Scale(m))
	if err != nil {
		return fmt.Errorf("unable to render page %d: %w", p.index, err)
	}
	engine.Compose(target, img, m, p.bounds)
	return nil
}

// Close is a no-op for Fitz as every document carries its own MuPDF context
func (b *Backend) Close() error {
	return nil
}

type document struct {
	doc *fitz.Document
}

func (d *document) CountChapters() int {
	return 1
}

func (d *document) CountChapterPages(chapter int) (int, error) {
	if chapter != 0 {
		return 0, fmt.Errorf("chapter %d does not exist", chapter)
	}
	return d.doc.NumPage(), nil
}

func (d *document) LoadPage(chapter, index int) (engine.Content, error) {
	if chapter != 0 {
		return nil, fmt.Errorf("chapter %d does not exist", chapter)
	}
	r, err := d.doc.Bound(index)
	if err != nil {
		return nil, fmt.Errorf("unable to bound page %d: %w", index, err)
	}
	bounds := engine.Rect{
		Min: engine.Point{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		Max: engine.Point{X: float64(r.Max.X), Y: float64(r.Max.Y)},
	}
	return &page{doc: d, index: index, bounds: bounds}, nil
}

func (d *document) Close() error {
	return d.doc.Close()
}

type page struct {
	mu     sync.Mutex
	doc    *document
	index  int
	bounds engine.Rect
	closed bool
}

func (p *page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *page) Bounds() engine.Rect {
	return p.bounds
}

func (p *page) TextLayer() (engine.TextLayer, error) {
	text, err := p.doc.doc.Text(p.index)
	if err != nil {
		return nil, fmt.Errorf("unable to extract text of page %d: %w", p.index, err)
	}
	return engine.NewTextLayer(text), nil
}

func (p *page) Links() (engine.LinkList, error) {
	links, err := p.doc.doc.Links(p.index)
	if err != nil {
		return nil, fmt.Errorf("unable to load links of page %d: %w", p.index, err)
	}
	out := make([]engine.Link, 0, len(links))
	for _, l := range links {
		out = append(out, engine.Link{URI: l.URI})
	}
	return engine.NewLinkList(out), nil
}

func (p *page) Separations() (engine.Separations, error) {
	return nil, nil
}

func (p *page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
