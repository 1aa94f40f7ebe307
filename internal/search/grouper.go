package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/inkleaf/inkleaf/internal/models"
)

// BoundingBox is an axis-aligned rectangle in page coordinates.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns the box width.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Merge returns the union of two boxes.
func (b BoundingBox) Merge(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: min(b.MinX, o.MinX),
		MinY: min(b.MinY, o.MinY),
		MaxX: max(b.MaxX, o.MaxX),
		MaxY: max(b.MaxY, o.MaxY),
	}
}

// WithinGap reports whether two boxes are at most gap apart on both axes.
// Boxes exactly gap apart count as within.
func (b BoundingBox) WithinGap(o BoundingBox, gap float64) bool {
	if b.MaxX+gap < o.MinX || o.MaxX+gap < b.MinX {
		return false
	}
	if b.MaxY+gap < o.MinY || o.MaxY+gap < b.MinY {
		return false
	}
	return true
}

// JSON renders the box as a JSON object string for storage in a SearchEntry.
func (b BoundingBox) JSON() string {
	data, _ := json.Marshal(b)
	return string(data)
}

// ParseBoundingBox decodes a box stored by JSON.
func ParseBoundingBox(s string) (BoundingBox, bool) {
	var b BoundingBox
	if s == "" || json.Unmarshal([]byte(s), &b) != nil {
		return BoundingBox{}, false
	}
	return b, true
}

// StrokeBounds computes a stroke's bounding box. Strokes without points have
// no box.
func StrokeBounds(s *models.Stroke) (BoundingBox, bool) {
	if len(s.Points) == 0 {
		return BoundingBox{}, false
	}
	b := BoundingBox{
		MinX: s.Points[0].X, MinY: s.Points[0].Y,
		MaxX: s.Points[0].X, MaxY: s.Points[0].Y,
	}
	for _, p := range s.Points[1:] {
		b.MinX = min(b.MinX, p.X)
		b.MinY = min(b.MinY, p.Y)
		b.MaxX = max(b.MaxX, p.X)
		b.MaxY = max(b.MaxY, p.Y)
	}
	return b, true
}

// StrokeGroup is a set of strokes whose bounding boxes are transitively
// within the grouping gap, plus the merged box. Transient indexing unit,
// never persisted.
type StrokeGroup struct {
	Strokes []*models.Stroke
	Bounds  BoundingBox
}

// StrokeIDs returns the member ids in sorted order.
func (g StrokeGroup) StrokeIDs() []string {
	ids := make([]string, 0, len(g.Strokes))
	for _, s := range g.Strokes {
		ids = append(ids, s.ElementID)
	}
	sort.Strings(ids)
	return ids
}

// GroupID derives a stable group identifier from the sorted member ids.
func (g StrokeGroup) GroupID() string {
	joined := strings.Join(g.StrokeIDs(), ",")
	sum := sha256.Sum256([]byte(joined))
	return "grp_" + hex.EncodeToString(sum[:])[:16]
}

// ContentHash derives a stable hash over every member stroke's points and
// style, sorted by stroke id. Identical input always yields an identical
// hash; any changed point, color, thickness or tool changes it.
func (g StrokeGroup) ContentHash() string {
	strokes := make([]*models.Stroke, len(g.Strokes))
	copy(strokes, g.Strokes)
	sort.Slice(strokes, func(i, j int) bool {
		return strokes[i].ElementID < strokes[j].ElementID
	})

	var sb strings.Builder
	for _, s := range strokes {
		fmt.Fprintf(&sb, "%s|%s|%.3f|%s|", s.ElementID, s.Color, s.Thickness, s.Tool)
		for _, p := range s.Points {
			fmt.Fprintf(&sb, "%.4f:%.4f:%.4f;", p.X, p.Y, p.Pressure)
		}
		sb.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// GroupStrokes clusters strokes whose padded bounding boxes are within gap
// of each other, transitively, using union-find. Strokes without points are
// skipped. O(n^2) pairwise box checks, fine for per-page stroke counts.
func GroupStrokes(strokes []*models.Stroke, gap float64) []StrokeGroup {
	type boxed struct {
		stroke *models.Stroke
		bounds BoundingBox
	}
	var items []boxed
	for _, s := range strokes {
		if b, ok := StrokeBounds(s); ok {
			items = append(items, boxed{stroke: s, bounds: b})
		}
	}
	if len(items) == 0 {
		return nil
	}

	uf := newUnionFind(len(items))
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[i].bounds.WithinGap(items[j].bounds, gap) {
				uf.union(i, j)
			}
		}
	}

	byRoot := map[int]*StrokeGroup{}
	var roots []int
	for i, item := range items {
		root := uf.find(i)
		g, ok := byRoot[root]
		if !ok {
			g = &StrokeGroup{Bounds: item.bounds}
			byRoot[root] = g
			roots = append(roots, root)
		}
		g.Strokes = append(g.Strokes, item.stroke)
		g.Bounds = g.Bounds.Merge(item.bounds)
	}

	groups := make([]StrokeGroup, 0, len(roots))
	for _, root := range roots {
		groups = append(groups, *byRoot[root])
	}
	// Deterministic output order regardless of union-find internals.
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].StrokeIDs()[0] < groups[j].StrokeIDs()[0]
	})
	return groups
}

// unionFind with path compression and union by rank.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
