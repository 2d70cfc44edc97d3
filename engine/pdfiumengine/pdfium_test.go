package pdfiumengine

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/pageview/engine"
	"github.com/drummonds/pageview/engine/enginetest"
	"github.com/ledongthuc/pdf"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PDFium WebAssembly start-up in short mode")
	}
	b, err := New()
	if err != nil {
		t.Fatalf("Failed to start PDFium: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestAnnotRectMissing(t *testing.T) {
	if r := annotRect(pdf.Value{}, 792); r != (engine.Rect{}) {
		t.Errorf("Expected empty rect for a missing Rect entry, got %v", r)
	}
}

func TestOpenMissingFile(t *testing.T) {
	b := newTestBackend(t)
	if _, err := b.OpenDocument(filepath.Join(t.TempDir(), "missing.pdf"), ""); err == nil {
		t.Errorf("Expected error for missing file")
	}
}

func TestDrawForeignContent(t *testing.T) {
	b := newTestBackend(t)
	fake := enginetest.New(1)
	doc, _ := fake.OpenDocument("a.pdf", "")
	defer doc.Close()
	content, _ := doc.LoadPage(0, 0)
	defer content.Close()

	err := b.DrawInto(image.NewRGBA(image.Rect(0, 0, 10, 10)), engine.Matrix{A: 1, E: 1}, content)
	if !errors.Is(err, engine.ErrForeignContent) {
		t.Errorf("Expected ErrForeignContent, got %v", err)
	}
}

func TestRenderFirstPage(t *testing.T) {
	path := os.Getenv("PAGEVIEW_TEST_PDF")
	if path == "" {
		t.Skip("PAGEVIEW_TEST_PDF not set")
	}
	b := newTestBackend(t)

	doc, err := b.OpenDocument(path, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer doc.Close()

	n, err := doc.CountChapterPages(0)
	if err != nil || n < 1 {
		t.Fatalf("Expected pages, got %d (%v)", n, err)
	}
	content, err := doc.LoadPage(0, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer content.Close()

	if _, err := content.TextLayer(); err != nil {
		t.Errorf("Text layer failed: %v", err)
	}
	if _, err := content.Links(); err != nil {
		t.Errorf("Links failed: %v", err)
	}

	// half-turn at half size
	m := engine.Matrix{A: -0.5, E: -0.5}
	r := engine.TransformRect(content.Bounds(), m)
	m.C, m.F = -r.Min.X, -r.Min.Y
	x0, y0, x1, y1 := engine.PixelRect(engine.TransformRect(content.Bounds(), m))
	target := image.NewRGBA(image.Rect(x0, y0, x1, y1))
	if err := b.DrawInto(target, m, content); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
}
