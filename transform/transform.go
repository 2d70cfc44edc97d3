// Package transform computes page-to-device matrices.
package transform

import "github.com/drummonds/pageview/engine"

// NaturalZoom maps one page-space unit to one device unit.
const NaturalZoom = 100.0

// ValidRotation reports whether degrees is one of 0, 90, 180 or 270.
func ValidRotation(degrees int) bool {
	switch degrees {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// quarterTurn returns the exact rotation matrix for a clockwise turn of
// q*90 degrees in a y-down device space.
func quarterTurn(q int) engine.Matrix {
	switch q {
	case 1:
		return engine.Matrix{A: 0, B: -1, D: 1, E: 0}
	case 2:
		return engine.Matrix{A: -1, B: 0, D: 0, E: -1}
	case 3:
		return engine.Matrix{A: 0, B: 1, D: -1, E: 0}
	default:
		return engine.Matrix{A: 1, B: 0, D: 0, E: 1}
	}
}

// ComputeDeviceTransform returns the matrix taking pageBounds into device space
// and the resulting device bounds. The page is rotated about its own bounds,
// scaled by zoomPercent/100 and translated so the device bounds start at the
// origin. Rotations that are not a multiple of 90 degrees are rounded down to one.
func ComputeDeviceTransform(pageBounds engine.Rect, zoomPercent float64, rotationDegrees int) (engine.Matrix, engine.Rect) {
	s := zoomPercent / NaturalZoom
	q := ((rotationDegrees/90)%4 + 4) % 4

	m := engine.Matrix{A: s, E: s}.Multiply(quarterTurn(q))
	moved := engine.TransformRect(pageBounds, m)
	m = engine.Matrix{A: 1, C: -moved.Min.X, E: 1, F: -moved.Min.Y}.Multiply(m)
	return m, engine.TransformRect(pageBounds, m)
}
