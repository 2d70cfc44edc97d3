package raster

import (
	"image"

	"github.com/gogpu/gg"
)

// BytesPerPixel of the fixed RGBA8 buffer format.
const BytesPerPixel = 4

// PixelBuffer is the output buffer pages are rasterised into. Its storage is
// a gg.Pixmap (RGBA, 8 bits per channel, rows packed at Stride bytes).
type PixelBuffer struct {
	pixmap   *gg.Pixmap
	released bool
}

func newPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{pixmap: gg.NewPixmap(width, height)}
}

func (b *PixelBuffer) Width() int  { return b.pixmap.Width() }
func (b *PixelBuffer) Height() int { return b.pixmap.Height() }
func (b *PixelBuffer) Stride() int { return b.pixmap.Width() * BytesPerPixel }

// Pix returns the backing storage; nil once the buffer has been released.
func (b *PixelBuffer) Pix() []uint8 {
	if b.released {
		return nil
	}
	return b.pixmap.Data()
}

// Pixmap exposes the buffer to gg drawing contexts.
func (b *PixelBuffer) Pixmap() *gg.Pixmap { return b.pixmap }

// RGBA returns an image sharing the buffer's storage; writes through it land
// directly in the buffer.
func (b *PixelBuffer) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix(),
		Stride: b.Stride(),
		Rect:   image.Rect(0, 0, b.Width(), b.Height()),
	}
}

// Released reports whether the buffer was replaced by a resize.
func (b *PixelBuffer) Released() bool { return b.released }

// Snapshot copies the buffer into a new image, safe to keep after later renders.
func (b *PixelBuffer) Snapshot() *image.RGBA {
	return b.pixmap.ToImage()
}

func (b *PixelBuffer) release() {
	b.released = true
	b.pixmap = gg.NewPixmap(0, 0)
}
