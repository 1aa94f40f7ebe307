package models

import (
	"time"

	"github.com/inkleaf/inkleaf/internal/uuid"
)

// Notebook owns an ordered sequence of pages plus free-form metadata.
type Notebook struct {
	ID       string
	Pages    []*Page
	Metadata map[string]interface{}
}

// NewNotebook creates a notebook with one empty page.
func NewNotebook() *Notebook {
	return &Notebook{
		ID:       uuid.New(),
		Pages:    []*Page{NewPage()},
		Metadata: map[string]interface{}{},
	}
}

// AddPage appends a page and recomputes streak levels.
func (n *Notebook) AddPage(p *Page) {
	n.Pages = append(n.Pages, p)
	n.RecomputeStreaks()
}

// RemovePage removes the page with the given id and recomputes streaks.
func (n *Notebook) RemovePage(pageID string) bool {
	for i, p := range n.Pages {
		if p.ID == pageID {
			n.Pages = append(n.Pages[:i], n.Pages[i+1:]...)
			n.RecomputeStreaks()
			return true
		}
	}
	return false
}

// Page returns the page with the given id, or nil.
func (n *Notebook) Page(pageID string) *Page {
	for _, p := range n.Pages {
		if p.ID == pageID {
			return p
		}
	}
	return nil
}

// Name returns the notebook's display name from metadata, if set.
func (n *Notebook) Name() string {
	if v, ok := n.Metadata["name"].(string); ok {
		return v
	}
	return ""
}

// RecomputeStreaks rederives every page's streak level from creation dates:
// the first page is level 0, a page created the same calendar day as its
// predecessor keeps the predecessor's level, the next calendar day increments
// it, and any gap resets to 0.
func (n *Notebook) RecomputeStreaks() {
	var prev *Page
	for _, p := range n.Pages {
		if prev == nil {
			p.StreakLevel = 0
		} else {
			day := calendarDay(p.CreatedAtTime())
			prevDay := calendarDay(prev.CreatedAtTime())
			switch {
			case day.Equal(prevDay):
				p.StreakLevel = prev.StreakLevel
			case day.Equal(prevDay.AddDate(0, 0, 1)):
				p.StreakLevel = prev.StreakLevel + 1
			default:
				p.StreakLevel = 0
			}
		}
		prev = p
	}
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
