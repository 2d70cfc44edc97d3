package engine

import (
	"errors"
	"image"
	"log/slog"

	"github.com/gogpu/gg"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// Geometry shared by every backend and by the paging core.
type (
	Rect   = gg.Rect
	Point  = gg.Point
	Matrix = gg.Matrix
)

var (
	// ErrShutdown is returned by every call made through a Context after Shutdown.
	ErrShutdown = errors.New("engine context is shut down")
	// ErrDocumentsOpen is returned by Shutdown while documents opened through the context are still live.
	ErrDocumentsOpen = errors.New("engine context still has open documents")
	// ErrForeignContent is returned when a Drawer is handed content loaded by another backend.
	ErrForeignContent = errors.New("content was not loaded by this backend")
)

// Link is one hyperlink found on a page, in page space.
type Link struct {
	URI    string
	Bounds Rect
}

// Backend is a document rendering engine (MuPDF, PDFium, ...).
type Backend interface {
	// Name identifies the backend in logs
	Name() string

	// OpenDocument opens the file at path. accelPath is handed to engines that
	// support an accelerator/cache file and ignored by the rest.
	OpenDocument(path, accelPath string) (Document, error)

	Drawer

	// Close releases the engine itself
	Close() error
}

// Document is an open document reference owned by the engine.
type Document interface {
	CountChapters() int
	CountChapterPages(chapter int) (int, error)
	LoadPage(chapter, page int) (Content, error)
	Close() error
}

// Content is the renderable content of one loaded page.
type Content interface {
	Bounds() Rect
	TextLayer() (TextLayer, error)
	Links() (LinkList, error)
	// Separations returns nil, nil when the page has no separations.
	Separations() (Separations, error)
	Close() error
}

// TextLayer is the extracted text of a page.
type TextLayer interface {
	Text() string
	Close() error
}

// LinkList holds the links of a page.
type LinkList interface {
	Links() []Link
	Close() error
}

// Separations describes the spot colour separations of a page.
type Separations interface {
	Count() int
	Close() error
}

// Drawer executes page content against a pixel target using the page-to-device
// matrix. target shares its backing storage with the caller's buffer.
type Drawer interface {
	DrawInto(target *image.RGBA, m Matrix, content Content) error
}
