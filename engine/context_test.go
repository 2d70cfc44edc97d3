package engine_test

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/drummonds/pageview/engine"
	"github.com/drummonds/pageview/engine/enginetest"
)

func TestContext_ShutdownWaitsForDocuments(t *testing.T) {
	fake := enginetest.New(1)
	ctx := engine.Init(fake)

	doc, err := ctx.OpenDocument("a.pdf", "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if ctx.OpenDocuments() != 1 {
		t.Errorf("Expected 1 open document, got %d", ctx.OpenDocuments())
	}
	if err := ctx.Shutdown(); !errors.Is(err, engine.ErrDocumentsOpen) {
		t.Errorf("Expected ErrDocumentsOpen, got %v", err)
	}
	if fake.Closed() {
		t.Errorf("Backend closed while a document was open")
	}

	if err := doc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// a second close is reported by the backend but counted once
	if err := doc.Close(); err == nil {
		t.Errorf("Expected backend error on double close")
	}
	if ctx.OpenDocuments() != 0 {
		t.Errorf("Expected 0 open documents, got %d", ctx.OpenDocuments())
	}

	if err := ctx.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !fake.Closed() {
		t.Errorf("Expected backend to be closed")
	}
	if err := ctx.Shutdown(); err != nil {
		t.Errorf("Second shutdown should be a no-op, got %v", err)
	}
	if _, err := ctx.OpenDocument("b.pdf", ""); !errors.Is(err, engine.ErrShutdown) {
		t.Errorf("Expected ErrShutdown, got %v", err)
	}
	if err := ctx.DrawInto(image.NewRGBA(image.Rect(0, 0, 1, 1)), engine.Matrix{A: 1, E: 1}, nil); !errors.Is(err, engine.ErrShutdown) {
		t.Errorf("Expected ErrShutdown from DrawInto, got %v", err)
	}
}

func TestContext_OpenFailureNotCounted(t *testing.T) {
	fake := enginetest.New(1)
	fake.FailOpen = true
	ctx := engine.Init(fake)

	if _, err := ctx.OpenDocument("a.pdf", ""); !errors.Is(err, enginetest.ErrInjected) {
		t.Errorf("Expected injected error, got %v", err)
	}
	if err := ctx.Shutdown(); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestTransformRect(t *testing.T) {
	r := engine.Rect{Max: engine.Point{X: 100, Y: 50}}
	rot90 := engine.Matrix{A: 0, B: -1, D: 1, E: 0}

	got := engine.TransformRect(r, rot90)
	want := engine.Rect{Min: engine.Point{X: -50, Y: 0}, Max: engine.Point{X: 0, Y: 100}}
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestQuarterTurns(t *testing.T) {
	tests := []struct {
		name string
		m    engine.Matrix
		want int
	}{
		{"identity", engine.Matrix{A: 1, E: 1}, 0},
		{"scaled", engine.Matrix{A: 2, E: 2}, 0},
		{"quarter", engine.Matrix{A: 0, B: -2, D: 2, E: 0}, 1},
		{"half", engine.Matrix{A: -1, E: -1}, 2},
		{"three quarters", engine.Matrix{A: 0, B: 1, D: -1, E: 0}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.QuarterTurns(tt.m); got != tt.want {
				t.Errorf("Expected %d turns, got %d", tt.want, got)
			}
		})
	}
}

func TestScaleAndPixelRect(t *testing.T) {
	if s := engine.Scale(engine.Matrix{A: 0, B: -1.5, D: 1.5, E: 0}); math.Abs(s-1.5) > 1e-9 {
		t.Errorf("Expected scale 1.5, got %v", s)
	}
	x0, y0, x1, y1 := engine.PixelRect(engine.Rect{Min: engine.Point{X: 0.5, Y: -0.5}, Max: engine.Point{X: 10.2, Y: 3}})
	if x0 != 0 || y0 != -1 || x1 != 11 || y1 != 3 {
		t.Errorf("Unexpected pixel rect %d,%d %d,%d", x0, y0, x1, y1)
	}
}

func TestCompose_Rotation(t *testing.T) {
	// 2x1 source: red on the left, green on the right
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, green)
	bounds := engine.Rect{Max: engine.Point{X: 2, Y: 1}}

	t.Run("upright", func(t *testing.T) {
		target := image.NewRGBA(image.Rect(0, 0, 4, 4))
		engine.Compose(target, src, engine.Matrix{A: 1, E: 1}, bounds)
		if target.RGBAAt(0, 0) != red || target.RGBAAt(1, 0) != green {
			t.Errorf("Unexpected upright composition")
		}
	})

	t.Run("quarter turn", func(t *testing.T) {
		// clockwise quarter turn then translate back into view
		m := engine.Matrix{A: 0, B: -1, C: 1, D: 1, E: 0, F: 0}
		target := image.NewRGBA(image.Rect(0, 0, 4, 4))
		engine.Compose(target, src, m, bounds)
		if target.RGBAAt(0, 0) != red || target.RGBAAt(0, 1) != green {
			t.Errorf("Expected red above green, got %v %v", target.RGBAAt(0, 0), target.RGBAAt(0, 1))
		}
	})
}
