package document

import (
	"errors"
	"fmt"

	"github.com/drummonds/pageview/engine"
	"github.com/drummonds/pageview/transform"
)

// Location identifies one page inside one chapter.
type Location struct {
	Chapter int `json:"chapter"`
	Page    int `json:"page"`
}

func (l Location) String() string {
	return fmt.Sprintf("{chapter %d, page %d}", l.Chapter, l.Page)
}

// PageState is the render-ready state of one loaded page. It owns its
// content, text, link and separation handles and releases them together.
type PageState struct {
	content     engine.Content
	text        engine.TextLayer
	links       engine.LinkList
	separations engine.Separations

	Bounds       engine.Rect
	Matrix       engine.Matrix
	DeviceBounds engine.Rect

	// generation of the zoom/rotation the matrix was computed for
	generation uint64
}

// Content returns the page's engine content.
func (p *PageState) Content() engine.Content { return p.content }

// Transform returns the page-to-device matrix.
func (p *PageState) Transform() engine.Matrix { return p.Matrix }

// Text returns the extracted page text.
func (p *PageState) Text() string {
	if p.text == nil {
		return ""
	}
	return p.text.Text()
}

// Links returns the page's links.
func (p *PageState) Links() []engine.Link {
	if p.links == nil {
		return nil
	}
	return p.links.Links()
}

// Separations returns the separations handle, nil when the page has none.
func (p *PageState) Separations() engine.Separations { return p.separations }

func (p *PageState) retransform(zoom float64, rotation int, generation uint64) {
	p.Matrix, p.DeviceBounds = transform.ComputeDeviceTransform(p.Bounds, zoom, rotation)
	p.generation = generation
}

// release drops every owned handle. All four are released even when one
// of them fails, and the state is left empty.
func (p *PageState) release() error {
	var errs []error
	if p.text != nil {
		errs = append(errs, p.text.Close())
	}
	if p.separations != nil {
		errs = append(errs, p.separations.Close())
	}
	if p.links != nil {
		errs = append(errs, p.links.Close())
	}
	if p.content != nil {
		errs = append(errs, p.content.Close())
	}
	*p = PageState{}
	return errors.Join(errs...)
}

// buildPage loads content for loc and derives its layers. On failure every
// handle acquired so far is released again.
func buildPage(ref engine.Document, loc Location) (*PageState, error) {
	content, err := ref.LoadPage(loc.Chapter, loc.Page)
	if err != nil {
		return nil, err
	}
	ps := &PageState{content: content}
	if err := ps.derive(); err != nil {
		if rerr := ps.release(); rerr != nil {
			Logger.Warn("Release after failed page load reported errors", "location", loc, "error", rerr)
		}
		return nil, err
	}
	return ps, nil
}

func (p *PageState) derive() (err error) {
	if p.text, err = p.content.TextLayer(); err != nil {
		return fmt.Errorf("text layer: %w", err)
	}
	if p.links, err = p.content.Links(); err != nil {
		return fmt.Errorf("links: %w", err)
	}
	if p.separations, err = p.content.Separations(); err != nil {
		return fmt.Errorf("separations: %w", err)
	}
	p.Bounds = p.content.Bounds()
	return nil
}
