// Package document holds an open document's chapter/page table and view
// state. A Document is not safe for concurrent use; hosts serialise calls
// (see package viewer).
package document

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"

	"github.com/drummonds/pageview/engine"
	"github.com/drummonds/pageview/transform"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// MaxChapterPages is the largest page table allocated for one chapter.
const MaxChapterPages = 1 << 20

// ColorSpace selects the colour space pages are rendered in.
type ColorSpace int

const (
	DeviceRGB ColorSpace = iota
)

func (c ColorSpace) String() string {
	switch c {
	case DeviceRGB:
		return "DeviceRGB"
	}
	return fmt.Sprintf("ColorSpace(%d)", int(c))
}

// Opener opens engine documents; *engine.Context implements it.
type Opener interface {
	OpenDocument(path, accelPath string) (engine.Document, error)
}

// Option configures a Document at open time.
type Option func(*options)

type options struct {
	eagerInvalidate bool
}

// WithEagerInvalidation recomputes the transform of every cached page as soon
// as zoom or rotation change. By default cached pages are recomputed lazily,
// the next time they are accessed.
func WithEagerInvalidation(enabled bool) Option {
	return func(o *options) {
		o.eagerInvalidate = enabled
	}
}

// Document is an open document with a lazily populated page table.
type Document struct {
	ref       engine.Document
	path      string
	accelPath string

	chapterCount int
	pageCounts   map[int]int    // set on first access to a chapter
	tables       [][]*PageState // nil until the chapter is first accessed

	location Location
	loaded   bool

	zoom       float64
	rotation   int
	colorSpace ColorSpace
	generation uint64
	eager      bool

	closed bool
}

// Open opens path through eng. Only the chapter count is read eagerly; page
// counts and page tables are discovered per chapter by LoadPage.
func Open(eng Opener, path, accelPath string, opts ...Option) (*Document, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if accelPath != "" {
		if err := ValidatePath(accelPath); err != nil {
			return nil, fmt.Errorf("accelerator: %w", err)
		}
	}

	ref, err := eng.OpenDocument(path, accelPath)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}
	count := ref.CountChapters()
	if count < 0 {
		_ = ref.Close()
		return nil, fmt.Errorf("%w %s: engine reported %d chapters", ErrOpen, path, count)
	}

	Logger.Info("Document opened", "path", path, "chapters", count)
	return &Document{
		ref:          ref,
		path:         path,
		accelPath:    accelPath,
		chapterCount: count,
		pageCounts:   map[int]int{},
		tables:       make([][]*PageState, count),
		zoom:         transform.NaturalZoom,
		colorSpace:   DeviceRGB,
		eager:        o.eagerInvalidate,
	}, nil
}

// LoadPage (re)loads the page at loc and makes it the current location.
// A page already cached at loc is released before fresh content is loaded.
// On failure the current location is unchanged.
func (d *Document) LoadPage(loc Location) error {
	if d.closed {
		return ErrClosed
	}
	if loc.Chapter < 0 || loc.Chapter >= d.chapterCount {
		return &LoadError{Op: "load page", Location: loc, Kind: ErrChapterOutOfRange}
	}
	table, err := d.chapterTable(loc)
	if err != nil {
		return err
	}
	if loc.Page < 0 || loc.Page >= len(table) {
		return &LoadError{Op: "load page", Location: loc, Kind: ErrPageOutOfRange}
	}

	d.replaceSlot(loc, nil)

	ps, err := buildPage(d.ref, loc)
	if err != nil {
		return &LoadError{Op: "load page", Location: loc, Kind: ErrPageLoad, Err: err}
	}
	ps.retransform(d.zoom, d.rotation, d.generation)
	d.replaceSlot(loc, ps)

	d.location = loc
	d.loaded = true
	Logger.Debug("Page loaded", "location", loc, "deviceWidth", ps.DeviceBounds.Width(), "deviceHeight", ps.DeviceBounds.Height())
	return nil
}

// chapterTable returns the page table of loc's chapter, allocating it on
// first access with the page count the engine reports.
func (d *Document) chapterTable(loc Location) ([]*PageState, error) {
	if table := d.tables[loc.Chapter]; table != nil {
		return table, nil
	}
	n, err := d.ref.CountChapterPages(loc.Chapter)
	if err != nil {
		return nil, &LoadError{Op: "count pages", Location: loc, Kind: ErrChapterLoad, Err: err}
	}
	if n < 0 {
		return nil, &LoadError{Op: "count pages", Location: loc, Kind: ErrChapterLoad, Err: fmt.Errorf("engine reported %d pages", n)}
	}
	if n > MaxChapterPages {
		return nil, &LoadError{Op: "count pages", Location: loc, Kind: ErrAllocation, Err: fmt.Errorf("%d pages exceeds %d", n, MaxChapterPages)}
	}
	table := make([]*PageState, n)
	d.tables[loc.Chapter] = table
	d.pageCounts[loc.Chapter] = n
	Logger.Debug("Chapter page table allocated", "chapter", loc.Chapter, "pages", n)
	return table, nil
}

// replaceSlot stores ps at loc, fully releasing any previous occupant first.
// A nil ps empties the slot.
func (d *Document) replaceSlot(loc Location, ps *PageState) error {
	slot := &d.tables[loc.Chapter][loc.Page]
	var err error
	if old := *slot; old != nil {
		*slot = nil
		if err = old.release(); err != nil {
			Logger.Warn("Releasing page reported errors", "location", loc, "error", err)
		}
		Logger.Debug("Page released", "location", loc)
	}
	*slot = ps
	return err
}

// SetZoom sets the zoom percentage; 100 is natural size.
func (d *Document) SetZoom(percent float64) error {
	if d.closed {
		return ErrClosed
	}
	if !(percent > 0) || math.IsInf(percent, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidZoom, percent)
	}
	d.zoom = percent
	d.invalidate()
	return nil
}

// SetRotation sets the page rotation in degrees.
func (d *Document) SetRotation(degrees int) error {
	if d.closed {
		return ErrClosed
	}
	if !transform.ValidRotation(degrees) {
		return fmt.Errorf("%w: %d", ErrInvalidRotation, degrees)
	}
	d.rotation = degrees
	d.invalidate()
	return nil
}

// invalidate marks every cached transform stale.
func (d *Document) invalidate() {
	d.generation++
	if !d.eager {
		return
	}
	for _, table := range d.tables {
		for _, ps := range table {
			if ps != nil {
				d.refresh(ps)
			}
		}
	}
}

func (d *Document) refresh(ps *PageState) {
	if ps.generation != d.generation {
		ps.retransform(d.zoom, d.rotation, d.generation)
	}
}

// ActivePage returns the page at the current location with an up to date transform.
func (d *Document) ActivePage() (*PageState, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if !d.loaded {
		return nil, ErrNotLoaded
	}
	ps := d.tables[d.location.Chapter][d.location.Page]
	if ps == nil {
		return nil, &LoadError{Op: "active page", Location: d.location, Kind: ErrNotLoaded}
	}
	d.refresh(ps)
	return ps, nil
}

// Page returns the cached page at loc, if any, with an up to date transform.
func (d *Document) Page(loc Location) (*PageState, bool) {
	if d.closed || loc.Chapter < 0 || loc.Chapter >= d.chapterCount {
		return nil, false
	}
	table := d.tables[loc.Chapter]
	if loc.Page < 0 || loc.Page >= len(table) || table[loc.Page] == nil {
		return nil, false
	}
	ps := table[loc.Page]
	d.refresh(ps)
	return ps, true
}

// CachedPages lists the locations holding a loaded page.
func (d *Document) CachedPages() []Location {
	var out []Location
	for ch, table := range d.tables {
		for pg, ps := range table {
			if ps != nil {
				out = append(out, Location{Chapter: ch, Page: pg})
			}
		}
	}
	return out
}

// Close releases every cached page and then the engine document.
// Closing a closed Document is a no-op.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	var errs []error
	for ch, table := range d.tables {
		for pg := range table {
			errs = append(errs, d.replaceSlot(Location{Chapter: ch, Page: pg}, nil))
		}
	}
	d.tables = nil
	d.loaded = false
	d.closed = true
	if err := d.ref.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", d.path, err))
	}
	Logger.Info("Document closed", "path", d.path)
	return errors.Join(errs...)
}

func (d *Document) Path() string           { return d.path }
func (d *Document) AccelPath() string      { return d.accelPath }
func (d *Document) ChapterCount() int      { return d.chapterCount }
func (d *Document) Location() Location     { return d.location }
func (d *Document) Loaded() bool           { return d.loaded }
func (d *Document) Zoom() float64          { return d.zoom }
func (d *Document) Rotation() int          { return d.rotation }
func (d *Document) ColorSpace() ColorSpace { return d.colorSpace }
func (d *Document) Closed() bool           { return d.closed }

// PageCount returns the page count of chapter and whether it is known yet.
func (d *Document) PageCount(chapter int) (int, bool) {
	n, ok := d.pageCounts[chapter]
	return n, ok
}

// PageCounts returns a copy of the page counts discovered so far.
func (d *Document) PageCounts() map[int]int {
	return maps.Clone(d.pageCounts)
}
