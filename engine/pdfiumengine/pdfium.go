package pdfiumengine

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sync"
	"time"

	"github.com/drummonds/pageview/engine"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/ledongthuc/pdf"
)

// Backend renders PDF documents using go-pdfium with WebAssembly (pure Go, no CGo).
// Text and link layers come from ledongthuc/pdf, which reads the same file.
type Backend struct {
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// New creates a new PDFium-based backend using WebAssembly
func New() (*Backend, error) {
	// Pages are loaded and drawn from a single control thread
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &Backend{
		pool:     pool,
		instance: instance,
	}, nil
}

// Name implements engine.Backend
func (b *Backend) Name() string {
	return "pdfium"
}

// OpenDocument reads the file and opens it in PDFium
func (b *Backend) OpenDocument(path, accelPath string) (engine.Document, error) {
	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF file: %w", err)
	}

	doc, err := b.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	if accelPath != "" {
		engine.Logger.Debug("Accelerator file not supported by pdfium backend, ignoring", "accelPath", accelPath)
	}

	d := &document{backend: b, ref: doc.Document}
	// A missing text reader only costs the text and link layers
	d.textFile, d.text, err = pdf.Open(path)
	if err != nil {
		engine.Logger.Warn("Unable to open PDF for text extraction", "path", path, "error", err)
		d.textFile, d.text = nil, nil
	}
	return d, nil
}

// DrawInto renders the page at its device size and composes it into target
func (b *Backend) DrawInto(target *image.RGBA, m engine.Matrix, content engine.Content) error {
	p, ok := content.(*page)
	if !ok || p.doc.backend != b {
		return engine.ErrForeignContent
	}
	if p.isClosed() {
		return errors.New("page content already released")
	}

	// Render upright; Compose applies the rotation
	scale := engine.Scale(m)
	width := int(math.Ceil(p.bounds.Width() * scale))
	height := int(math.Ceil(p.bounds.Height() * scale))
	if width <= 0 || height <= 0 {
		return nil
	}

	pageRender, err := b.instance.RenderPageInPixels(&requests.RenderPageInPixels{
		Width:  width,
		Height: height,
		Page:   p.ref(),
	})
	if err != nil {
		return fmt.Errorf("unable to render page %d: %w", p.index, err)
	}
	defer pageRender.Cleanup()

	engine.Compose(target, pageRender.Result.Image, m, p.bounds)
	return nil
}

// Close cleans up resources used by the PDFium backend
func (b *Backend) Close() error {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	b.instance = nil
	return nil
}

type document struct {
	backend  *Backend
	ref      references.FPDF_DOCUMENT
	textFile *os.File
	text     *pdf.Reader
}

// PDF has no chapters; the whole document is chapter 0
func (d *document) CountChapters() int {
	return 1
}

func (d *document) CountChapterPages(chapter int) (int, error) {
	if chapter != 0 {
		return 0, fmt.Errorf("chapter %d does not exist", chapter)
	}
	pageCountResp, err := d.backend.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: d.ref,
	})
	if err != nil {
		return 0, fmt.Errorf("unable to get page count: %w", err)
	}
	return pageCountResp.PageCount, nil
}

func (d *document) LoadPage(chapter, index int) (engine.Content, error) {
	if chapter != 0 {
		return nil, fmt.Errorf("chapter %d does not exist", chapter)
	}
	p := &page{doc: d, index: index}
	size, err := d.backend.instance.GetPageSize(&requests.GetPageSize{
		Page: p.ref(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to get size of page %d: %w", index, err)
	}
	p.bounds = engine.Rect{Max: engine.Point{X: size.Width, Y: size.Height}}
	return p, nil
}

func (d *document) Close() error {
	var errs []error
	if d.textFile != nil {
		errs = append(errs, d.textFile.Close())
		d.textFile, d.text = nil, nil
	}
	_, err := d.backend.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.ref,
	})
	errs = append(errs, err)
	return errors.Join(errs...)
}

type page struct {
	mu     sync.Mutex
	doc    *document
	index  int
	bounds engine.Rect
	closed bool
}

func (p *page) ref() requests.Page {
	return requests.Page{
		ByIndex: &requests.PageByIndex{
			Document: p.doc.ref,
			Index:    p.index,
		},
	}
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
	if p.doc.text == nil {
		return engine.NewTextLayer(""), nil
	}
	pg := p.doc.text.Page(p.index + 1)
	if pg.V.IsNull() {
		return engine.NewTextLayer(""), nil
	}
	text, err := pg.GetPlainText(nil)
	if err != nil {
		return nil, fmt.Errorf("unable to extract text of page %d: %w", p.index, err)
	}
	return engine.NewTextLayer(text), nil
}

func (p *page) Links() (engine.LinkList, error) {
	if p.doc.text == nil {
		return engine.NewLinkList(nil), nil
	}
	pg := p.doc.text.Page(p.index + 1)
	annots := pg.V.Key("Annots")
	var links []engine.Link
	for i := 0; i < annots.Len(); i++ {
		annot := annots.Index(i)
		if annot.Key("Subtype").Name() != "Link" {
			continue
		}
		links = append(links, engine.Link{
			URI:    annot.Key("A").Key("URI").Text(),
			Bounds: annotRect(annot.Key("Rect"), p.bounds.Height()),
		})
	}
	return engine.NewLinkList(links), nil
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

// annotRect converts a PDF rectangle (origin bottom-left) into page space (origin top-left).
func annotRect(v pdf.Value, pageHeight float64) engine.Rect {
	if v.Len() != 4 {
		return engine.Rect{}
	}
	x0, y0 := v.Index(0).Float64(), v.Index(1).Float64()
	x1, y1 := v.Index(2).Float64(), v.Index(3).Float64()
	return engine.Rect{
		Min: engine.Point{X: math.Min(x0, x1), Y: pageHeight - math.Max(y0, y1)},
		Max: engine.Point{X: math.Max(x0, x1), Y: pageHeight - math.Min(y0, y1)},
	}
}
