package models

import (
	"time"

	"github.com/inkleaf/inkleaf/internal/uuid"
)

// Page is one page of a notebook: an ordered list of elements plus metadata.
// StreakLevel is derived from creation timestamps and never persisted.
type Page struct {
	ID          string
	CreatedAt   float64 // unix seconds
	Elements    []Element
	Metadata    map[string]interface{}
	StreakLevel int
}

// NewPage creates an empty page stamped with the current time.
func NewPage() *Page {
	return &Page{
		ID:        uuid.New(),
		CreatedAt: float64(time.Now().UnixNano()) / float64(time.Second),
		Elements:  []Element{},
		Metadata:  map[string]interface{}{},
	}
}

// AddElement appends an element to the page.
func (p *Page) AddElement(el Element) {
	p.Elements = append(p.Elements, el)
}

// RemoveElement removes the element with the same identity, if present.
func (p *Page) RemoveElement(el Element) {
	for i, existing := range p.Elements {
		if SameIdentity(existing, el) {
			p.Elements = append(p.Elements[:i], p.Elements[i+1:]...)
			return
		}
	}
}

// ClearElements drops every element from the page.
func (p *Page) ClearElements() {
	p.Elements = p.Elements[:0]
}

// Strokes returns only the stroke elements, in page order.
func (p *Page) Strokes() []*Stroke {
	var strokes []*Stroke
	for _, el := range p.Elements {
		if s, ok := el.(*Stroke); ok {
			strokes = append(strokes, s)
		}
	}
	return strokes
}

// CreatedAtTime returns the creation timestamp as time.Time.
func (p *Page) CreatedAtTime() time.Time {
	sec := int64(p.CreatedAt)
	nsec := int64((p.CreatedAt - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
