package engine

import (
	"fmt"
	"image"
	"sync"
)

// Context is the process-wide engine handle. It must outlive every Document
// opened through it: Shutdown refuses while any of them is still open.
// A Context may be shared by several documents; it is safe for concurrent use.
type Context struct {
	mu      sync.Mutex
	backend Backend
	open    int
	down    bool
}

// Init wraps backend in a live Context.
func Init(backend Backend) *Context {
	Logger.Info("Engine context initialised", "backend", backend.Name())
	return &Context{backend: backend}
}

// Name returns the backend name.
func (c *Context) Name() string {
	return c.backend.Name()
}

// OpenDocument opens a document through the backend. The returned Document
// must be closed before the context can be shut down.
func (c *Context) OpenDocument(path, accelPath string) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return nil, ErrShutdown
	}
	doc, err := c.backend.OpenDocument(path, accelPath)
	if err != nil {
		return nil, err
	}
	c.open++
	return &trackedDocument{Document: doc, ctx: c}, nil
}

// DrawInto forwards to the backend's drawer.
func (c *Context) DrawInto(target *image.RGBA, m Matrix, content Content) error {
	c.mu.Lock()
	down := c.down
	c.mu.Unlock()
	if down {
		return ErrShutdown
	}
	return c.backend.DrawInto(target, m, content)
}

// OpenDocuments reports how many documents are currently open.
func (c *Context) OpenDocuments() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Shutdown closes the backend. Calling it again is a no-op.
func (c *Context) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return nil
	}
	if c.open > 0 {
		return fmt.Errorf("%w: %d", ErrDocumentsOpen, c.open)
	}
	c.down = true
	Logger.Info("Engine context shut down", "backend", c.backend.Name())
	return c.backend.Close()
}

func (c *Context) release() {
	c.mu.Lock()
	c.open--
	c.mu.Unlock()
}

// trackedDocument decrements the context's open count exactly once.
type trackedDocument struct {
	Document
	ctx  *Context
	once sync.Once
}

func (d *trackedDocument) Close() error {
	err := d.Document.Close()
	d.once.Do(d.ctx.release)
	return err
}
