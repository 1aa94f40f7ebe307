package models

import (
	"github.com/inkleaf/inkleaf/internal/uuid"
)

// ElementType discriminates the PageElement variants.
type ElementType string

const (
	TypeStroke    ElementType = "stroke"
	TypeText      ElementType = "text"
	TypeImage     ElementType = "image"
	TypeVideo     ElementType = "video"
	TypeVoiceMemo ElementType = "voice_memo"
)

// Element is the tagged union of everything that can live on a page.
// Serialization dispatches on Type; equality of identity is by ID.
type Element interface {
	ID() string
	Type() ElementType

	// Intersects reports whether the element is hit by a circular probe
	// of the given radius centered at p.
	Intersects(p Point, radius float64) bool
}

// SameIdentity reports whether two elements are the same element: both carry
// a non-empty id and the ids match. Field differences are irrelevant.
func SameIdentity(a, b Element) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() != "" && a.ID() == b.ID()
}

// Stroke is a single continuous ink trace.
type Stroke struct {
	ElementID string
	Points    []Point
	Color     string
	Thickness float64
	Tool      string
}

// NewStroke creates a stroke with a fresh element id.
func NewStroke(points []Point, color string, thickness float64, tool string) *Stroke {
	return &Stroke{
		ElementID: uuid.New(),
		Points:    points,
		Color:     color,
		Thickness: thickness,
		Tool:      tool,
	}
}

func (s *Stroke) ID() string        { return s.ElementID }
func (s *Stroke) Type() ElementType { return TypeStroke }

// Intersects reports whether any stroke point falls within the probe,
// widened by half the stroke thickness.
func (s *Stroke) Intersects(p Point, radius float64) bool {
	reach := radius + s.Thickness/2
	for _, pt := range s.Points {
		if pt.Distance(p) <= reach {
			return true
		}
	}
	return false
}

// Text is a typed text block anchored at a position.
type Text struct {
	ElementID string
	Position  Point
	Content   string
	Color     string
	SizePx    float64
}

// NewText creates a text element with a fresh element id.
func NewText(pos Point, content string, color string, sizePx float64) *Text {
	return &Text{
		ElementID: uuid.New(),
		Position:  pos,
		Content:   content,
		Color:     color,
		SizePx:    sizePx,
	}
}

func (t *Text) ID() string        { return t.ElementID }
func (t *Text) Type() ElementType { return TypeText }

func (t *Text) Intersects(p Point, radius float64) bool {
	return t.Position.Distance(p) <= radius
}

// Image is a raster image placed on the page. It holds either inline Data
// or an AssetID reference; migration tolerates both transiently.
type Image struct {
	ElementID string
	Position  Point
	Width     float64
	Height    float64
	Rotation  float64
	Path      string
	Data      []byte
	AssetID   string
}

// NewImage creates an image element with a fresh element id.
func NewImage(pos Point, width, height float64) *Image {
	return &Image{
		ElementID: uuid.New(),
		Position:  pos,
		Width:     width,
		Height:    height,
	}
}

func (i *Image) ID() string        { return i.ElementID }
func (i *Image) Type() ElementType { return TypeImage }

func (i *Image) Intersects(p Point, radius float64) bool {
	return boxIntersects(i.Position, i.Width, i.Height, p, radius)
}

// Video is a video clip placed on the page. Thumbnail bytes migrate into a
// separate asset referenced by ThumbAssetID.
type Video struct {
	ElementID    string
	Position     Point
	Width        float64
	Height       float64
	Duration     float64
	Path         string
	Data         []byte
	Thumbnail    []byte
	AssetID      string
	ThumbAssetID string
}

// NewVideo creates a video element with a fresh element id.
func NewVideo(pos Point, width, height float64) *Video {
	return &Video{
		ElementID: uuid.New(),
		Position:  pos,
		Width:     width,
		Height:    height,
	}
}

func (v *Video) ID() string        { return v.ElementID }
func (v *Video) Type() ElementType { return TypeVideo }

func (v *Video) Intersects(p Point, radius float64) bool {
	return boxIntersects(v.Position, v.Width, v.Height, p, radius)
}

// VoiceMemo is a recorded audio note, optionally carrying a transcript that
// feeds the search index.
type VoiceMemo struct {
	ElementID  string
	Position   Point
	Duration   float64
	CreatedAt  float64
	Path       string
	Data       []byte
	Transcript string
	AssetID    string
}

// NewVoiceMemo creates a voice memo element with a fresh element id.
func NewVoiceMemo(pos Point, duration float64, createdAt float64) *VoiceMemo {
	return &VoiceMemo{
		ElementID: uuid.New(),
		Position:  pos,
		Duration:  duration,
		CreatedAt: createdAt,
	}
}

func (m *VoiceMemo) ID() string        { return m.ElementID }
func (m *VoiceMemo) Type() ElementType { return TypeVoiceMemo }

func (m *VoiceMemo) Intersects(p Point, radius float64) bool {
	return m.Position.Distance(p) <= radius
}

func boxIntersects(pos Point, width, height float64, p Point, radius float64) bool {
	return p.X >= pos.X-radius && p.X <= pos.X+width+radius &&
		p.Y >= pos.Y-radius && p.Y <= pos.Y+height+radius
}
