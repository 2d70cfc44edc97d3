package engine

import "math"

// TransformRect returns the bounding box of r after applying m.
func TransformRect(r Rect, m Matrix) Rect {
	corners := [4]Point{
		m.TransformPoint(r.Min),
		m.TransformPoint(Point{X: r.Max.X, Y: r.Min.Y}),
		m.TransformPoint(r.Max),
		m.TransformPoint(Point{X: r.Min.X, Y: r.Max.Y}),
	}
	out := Rect{Min: corners[0], Max: corners[0]}
	for _, p := range corners[1:] {
		out.Min.X = math.Min(out.Min.X, p.X)
		out.Min.Y = math.Min(out.Min.Y, p.Y)
		out.Max.X = math.Max(out.Max.X, p.X)
		out.Max.Y = math.Max(out.Max.Y, p.Y)
	}
	return out
}

// QuarterTurns reports how many clockwise quarter turns (0-3) the linear part
// of m applies, assuming m is a uniform scale combined with a multiple of 90
// degrees rotation.
func QuarterTurns(m Matrix) int {
	switch {
	case math.Abs(m.A) >= math.Abs(m.D) && m.A >= 0:
		return 0
	case math.Abs(m.A) < math.Abs(m.D) && m.D > 0:
		return 1
	case math.Abs(m.A) >= math.Abs(m.D):
		return 2
	default:
		return 3
	}
}

// Scale returns the uniform scale factor applied by m.
func Scale(m Matrix) float64 {
	return math.Hypot(m.A, m.D)
}

// PixelRect rounds r outward to whole device pixels.
func PixelRect(r Rect) (x0, y0, x1, y1 int) {
	return int(math.Floor(r.Min.X)), int(math.Floor(r.Min.Y)), int(math.Ceil(r.Max.X)), int(math.Ceil(r.Max.Y))
}
