package engine

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Compose draws an upright page raster src, already scaled to device size,
// onto target: it applies m's quarter turns and places the result at the
// device-space origin of pageBounds.
func Compose(target *image.RGBA, src image.Image, m Matrix, pageBounds Rect) {
	var rotated image.Image = src
	// imaging rotates counter-clockwise
	switch QuarterTurns(m) {
	case 1:
		rotated = imaging.Rotate270(src)
	case 2:
		rotated = imaging.Rotate180(src)
	case 3:
		rotated = imaging.Rotate90(src)
	}

	x0, y0, _, _ := PixelRect(TransformRect(pageBounds, m))
	sb := rotated.Bounds()
	dst := image.Rect(x0, y0, x0+sb.Dx(), y0+sb.Dy())
	draw.Draw(target, dst, rotated, sb.Min, draw.Over)
}
