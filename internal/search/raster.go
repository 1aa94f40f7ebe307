package search

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// Renderer turns a stroke group into a raster image for recognition.
// Rendering is a graphics capability supplied from outside the core; this
// package ships a plain grayscale implementation as the default.
type Renderer interface {
	Render(group StrokeGroup) image.Image
}

// Recognizer extracts text from a rendered stroke group. Supplied
// externally; the core never bundles a recognition model.
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// GrayscaleRenderer plots stroke polylines as dark ink on a white canvas,
// scaled and padded, for downstream handwriting recognition.
type GrayscaleRenderer struct {
	Scale   float64
	Padding float64
	MinSize int
}

// NewGrayscaleRenderer applies defaults for zero-valued fields.
func NewGrayscaleRenderer(scale, padding float64, minSize int) *GrayscaleRenderer {
	if scale <= 0 {
		scale = 2.0
	}
	if padding < 0 {
		padding = 0
	}
	if minSize <= 0 {
		minSize = 32
	}
	return &GrayscaleRenderer{Scale: scale, Padding: padding, MinSize: minSize}
}

// Render implements Renderer.
func (r *GrayscaleRenderer) Render(group StrokeGroup) image.Image {
	bounds := group.Bounds
	width := int(math.Ceil((bounds.Width() + 2*r.Padding) * r.Scale))
	height := int(math.Ceil((bounds.Height() + 2*r.Padding) * r.Scale))
	if width < r.MinSize {
		width = r.MinSize
	}
	if height < r.MinSize {
		height = r.MinSize
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	for _, s := range group.Strokes {
		thickness := s.Thickness * r.Scale
		if thickness < 1 {
			thickness = 1
		}
		for i := 1; i < len(s.Points); i++ {
			x0 := (s.Points[i-1].X - bounds.MinX + r.Padding) * r.Scale
			y0 := (s.Points[i-1].Y - bounds.MinY + r.Padding) * r.Scale
			x1 := (s.Points[i].X - bounds.MinX + r.Padding) * r.Scale
			y1 := (s.Points[i].Y - bounds.MinY + r.Padding) * r.Scale
			drawSegment(canvas, x0, y0, x1, y1, thickness)
		}
		if len(s.Points) == 1 {
			x := (s.Points[0].X - bounds.MinX + r.Padding) * r.Scale
			y := (s.Points[0].Y - bounds.MinY + r.Padding) * r.Scale
			drawDot(canvas, x, y, thickness)
		}
	}

	return imaging.Grayscale(canvas)
}

// drawSegment stamps dots along the segment at sub-thickness intervals.
func drawSegment(canvas *image.NRGBA, x0, y0, x1, y1, thickness float64) {
	dx := x1 - x0
	dy := y1 - y0
	length := math.Hypot(dx, dy)
	steps := int(length/(thickness/2)) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		drawDot(canvas, x0+dx*t, y0+dy*t, thickness)
	}
}

func drawDot(canvas *image.NRGBA, cx, cy, thickness float64) {
	radius := thickness / 2
	minX := int(math.Floor(cx - radius))
	maxX := int(math.Ceil(cx + radius))
	minY := int(math.Floor(cy - radius))
	maxY := int(math.Ceil(cy + radius))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			ddx := float64(x) - cx
			ddy := float64(y) - cy
			if ddx*ddx+ddy*ddy <= radius*radius {
				canvas.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}
}
