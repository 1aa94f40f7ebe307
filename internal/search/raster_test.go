package search

import (
	"image/color"
	"testing"

	"github.com/inkleaf/inkleaf/internal/models"
)

// countDark counts pixels darker than mid-gray.
func countDark(img interface {
	At(x, y int) color.Color
}, w, h int) int {
	dark := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y < 128 {
				dark++
			}
		}
	}
	return dark
}

// =====================================================
// Grayscale Renderer Tests
// =====================================================

// TestRender_drawsInk verifies a stroke produces dark pixels on a white
// canvas of the scaled size.
func TestRender_drawsInk(t *testing.T) {
	r := NewGrayscaleRenderer(2.0, 4.0, 32)
	group := StrokeGroup{
		Strokes: []*models.Stroke{{
			ElementID: "s-a",
			Points:    []models.Point{models.NewPoint(0, 0), models.NewPoint(20, 20)},
			Thickness: 2.0,
		}},
		Bounds: BoundingBox{MinX: 0, MinY: 0, MaxX: 20, MaxY: 20},
	}

	img := r.Render(group)
	b := img.Bounds()
	// (20 + 2*4) * 2 = 56 on each axis.
	if b.Dx() != 56 || b.Dy() != 56 {
		t.Errorf("canvas = %dx%d, want 56x56", b.Dx(), b.Dy())
	}

	dark := countDark(img, b.Dx(), b.Dy())
	if dark == 0 {
		t.Fatal("no ink rendered")
	}
	if dark >= b.Dx()*b.Dy()/2 {
		t.Error("canvas should be mostly white")
	}
}

// TestRender_minimumSize verifies a tiny group still renders at the floor.
func TestRender_minimumSize(t *testing.T) {
	r := NewGrayscaleRenderer(2.0, 0, 32)
	group := StrokeGroup{
		Strokes: []*models.Stroke{{
			ElementID: "s-dot",
			Points:    []models.Point{models.NewPoint(5, 5)},
			Thickness: 1.0,
		}},
		Bounds: BoundingBox{MinX: 5, MinY: 5, MaxX: 5, MaxY: 5},
	}

	img := r.Render(group)
	b := img.Bounds()
	if b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("canvas = %dx%d, want 32x32 floor", b.Dx(), b.Dy())
	}
	if countDark(img, b.Dx(), b.Dy()) == 0 {
		t.Error("single-point stroke should still leave a dot")
	}
}

// TestNewGrayscaleRenderer_defaults verifies zero values get defaults.
func TestNewGrayscaleRenderer_defaults(t *testing.T) {
	r := NewGrayscaleRenderer(0, -1, 0)
	if r.Scale != 2.0 || r.Padding != 0 || r.MinSize != 32 {
		t.Errorf("defaults = %+v", r)
	}
}
