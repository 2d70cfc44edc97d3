package document

import (
	"errors"
	"fmt"
)

var (
	ErrOpen              = errors.New("cannot open document")
	ErrInvalidPath       = errors.New("invalid path")
	ErrPathTooLong       = errors.New("path too long")
	ErrChapterOutOfRange = errors.New("chapter out of range")
	ErrPageOutOfRange    = errors.New("page out of range")
	ErrChapterLoad       = errors.New("cannot count chapter pages")
	ErrPageLoad          = errors.New("cannot load page")
	ErrAllocation        = errors.New("cannot allocate chapter page table")
	ErrInvalidZoom       = errors.New("zoom must be a positive percentage")
	ErrInvalidRotation   = errors.New("rotation must be 0, 90, 180 or 270 degrees")
	ErrNotLoaded         = errors.New("no page loaded")
	ErrClosed            = errors.New("document is closed")
)

// LoadError reports a failed page or chapter operation at a location.
// errors.Is matches both Kind and the underlying cause.
type LoadError struct {
	Op       string
	Location Location
	Kind     error
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %v: %v", e.Op, e.Location, e.Kind)
	}
	return fmt.Sprintf("%s %v: %v: %v", e.Op, e.Location, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
